package httpapi

// Wire DTOs. []byte fields marshal as standard base64.

type registerStartRequest struct {
	ClientIdentifier    string `json:"clientIdentifier"`
	RegistrationRequest []byte `json:"registrationRequest"`
}

type registerStartResponse struct {
	RegistrationResponse []byte `json:"registrationResponse"`
}

type registerFinishRequest struct {
	ClientIdentifier   string `json:"clientIdentifier"`
	RegistrationRecord []byte `json:"registrationRecord"`
	EncryptedBundle    []byte `json:"encryptedBundle,omitempty"`
}

type registerFinishResponse struct {
	Success bool `json:"success"`
}

type loginStartRequest struct {
	ClientIdentifier  string `json:"clientIdentifier"`
	StartLoginRequest []byte `json:"startLoginRequest"`
}

type loginStartResponse struct {
	LoginResponse []byte `json:"loginResponse"`
	StateKey      string `json:"stateKey"`
}

type loginFinishRequest struct {
	ClientIdentifier   string `json:"clientIdentifier"`
	StateKey           string `json:"stateKey"`
	FinishLoginRequest []byte `json:"finishLoginRequest"`
}

type loginFinishResponse struct {
	Success         bool   `json:"success"`
	SessionKey      []byte `json:"sessionKey"`
	EncryptedBundle []byte `json:"encryptedBundle,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
