package flows

import (
	"context"
	"errors"
	"time"

	"github.com/sealbox/opaqued/internal/stores"
	"github.com/sealbox/opaqued/pake"
)

// Flow-local sentinel errors. The Engine maps these onto the public
// taxonomy; handlers map those onto coarse HTTP responses.
var (
	// ErrInvalidIdentifier covers malformed client identifiers.
	ErrInvalidIdentifier = errors.New("invalid client identifier")
	// ErrInvalidPayload covers protocol messages the primitive rejects,
	// whether structurally malformed or cryptographically unusable.
	ErrInvalidPayload = errors.New("invalid protocol payload")
	// ErrAlreadyRegistered covers a registration finish for an identifier
	// that already holds a record.
	ErrAlreadyRegistered = errors.New("identifier already registered")
	// ErrSessionExpired covers absent, consumed, or expired login state.
	ErrSessionExpired = errors.New("login session expired")
	// ErrAuthenticationFailed covers verification failure, the fake-record
	// branch, and corrupt stored state, all indistinguishable outward.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrBackend covers store unavailability on fail-closed paths.
	ErrBackend = errors.New("backend unavailable")
)

// CredentialStore is the credential persistence consumed by the flows.
type CredentialStore interface {
	GetRecord(ctx context.Context, identifier string) ([]byte, error)
	PutRecord(ctx context.Context, identifier string, record []byte) error
	GetBundle(ctx context.Context, identifier string) ([]byte, bool, error)
	PutBundle(ctx context.Context, identifier string, bundle []byte) error
}

// LoginStateStore is the ephemeral handshake-state persistence consumed by
// the login flow.
type LoginStateStore interface {
	NewToken(identifier string, now time.Time, fake bool) string
	Save(ctx context.Context, token string, state *stores.LoginState, ttl time.Duration) error
	Consume(ctx context.Context, token string) (*stores.LoginState, error)
}

// RegisterDeps captures registration flow dependencies.
type RegisterDeps struct {
	Suite       pake.Suite
	Credentials CredentialStore
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Suite       pake.Suite
	Credentials CredentialStore
	States      LoginStateStore
	StateTTL    time.Duration
	Now         func() time.Time
}
