package opaqued

// LoginStartResult is the outcome of the first login round: the protocol
// response to relay to the client and the one-time session token referencing
// the server-side handshake state. The result has the same shape whether or
// not the identifier is registered.
type LoginStartResult struct {
	Response     []byte
	SessionToken string
}

// LoginFinishResult is the outcome of a successful login: the derived
// session key and, when the account stored one, the client-encrypted bundle
// returned verbatim.
type LoginFinishResult struct {
	SessionKey []byte
	Bundle     []byte
	HasBundle  bool
}

// Endpoint names used as rate-limit keys.
const (
	EndpointRegisterStart  = "register-start"
	EndpointRegisterFinish = "register-finish"
	EndpointLoginStart     = "login-start"
	EndpointLoginFinish    = "login-finish"
)

// idPrefix returns the loggable prefix of a client identifier. Full
// identifiers never reach logs.
func idPrefix(identifier string) string {
	if len(identifier) <= 8 {
		return identifier
	}
	return identifier[:8] + "..."
}
