package pake

import "errors"

// SessionKeyLen is the length in bytes of the session key returned by a
// successful LoginFinish.
const SessionKeyLen = 64

var (
	// ErrInvalidMessage is returned when a protocol message cannot be decoded.
	ErrInvalidMessage = errors.New("invalid protocol message")
	// ErrInvalidRecord is returned when a stored credential record cannot be decoded.
	ErrInvalidRecord = errors.New("invalid credential record")
	// ErrInvalidState is returned when serialized server login state cannot be decoded.
	ErrInvalidState = errors.New("invalid server login state")
	// ErrInvalidSetup is returned when serialized server setup cannot be decoded.
	ErrInvalidSetup = errors.New("invalid server setup")
	// ErrVerificationFailed is returned when the client's finalization does not verify.
	ErrVerificationFailed = errors.New("login verification failed")
)

// Suite is the PAKE primitive boundary consumed by the orchestration layer.
// All payloads are opaque byte strings; implementations own their encoding.
//
// A Suite holds only long-term key material. Per-handshake state crosses the
// boundary as the serialized state blob returned by LoginStart, never as
// receiver state, so every call is safe for concurrent use.
type Suite interface {
	// RegistrationStart processes the client's registration request and
	// returns the server's registration response. It has no side effects and
	// requires no server-held state between start and finish.
	RegistrationStart(identifier string, request []byte) ([]byte, error)

	// RegistrationFinish transforms the client's registration upload into the
	// credential record to persist. Pure transform.
	RegistrationFinish(upload []byte) ([]byte, error)

	// LoginStart processes the client's credential request against the stored
	// record and returns the login response plus serialized server state for
	// the finish round. A nil record selects the fake-record branch: the
	// response is structurally indistinguishable from the genuine path.
	LoginStart(identifier string, record []byte, request []byte) (response []byte, state []byte, err error)

	// LoginFinish verifies the client's finalization against the serialized
	// server state and returns the session key of length SessionKeyLen.
	// Verification failure is reported as ErrVerificationFailed.
	LoginFinish(state []byte, finalization []byte) ([]byte, error)
}
