package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sealbox/opaqued/internal/stores"
)

// LoginStartResult carries the first-round response. Fake is for server-side
// logging only and must never influence the response shape.
type LoginStartResult struct {
	Response []byte
	Token    string
	Fake     bool
}

// LoginFinishResult carries the outcome of a verified login.
type LoginFinishResult struct {
	Identifier string
	SessionKey []byte
	Bundle     []byte
	HasBundle  bool
}

// RunLoginStart executes the first login round. Unknown identifiers take the
// fake-record branch: the primitive is driven with a synthetic record and
// the result is persisted and returned exactly like a genuine session, so
// the only divergence between the branches is inside the primitive itself.
func RunLoginStart(ctx context.Context, deps LoginDeps, identifier string, request []byte) (*LoginStartResult, error) {
	if !ValidIdentifier(identifier) {
		return nil, ErrInvalidIdentifier
	}

	fake := false
	record, err := deps.Credentials.GetRecord(ctx, identifier)
	if err != nil {
		if !errors.Is(err, stores.ErrCredentialNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrBackend, err)
		}
		record = nil
		fake = true
	}

	response, state, err := deps.Suite.LoginStart(identifier, record, request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	token := deps.States.NewToken(identifier, deps.Now(), fake)
	if err := deps.States.Save(ctx, token, &stores.LoginState{Fake: fake, State: state}, deps.StateTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	return &LoginStartResult{Response: response, Token: token, Fake: fake}, nil
}

// RunLoginFinish executes the second login round. The state machine is:
// consume the one-time state (delete before verify), verify the
// finalization, reject fake sessions even on primitive success, then read
// the bundle. A consumed, expired, or never-written token is reported as
// ErrSessionExpired; every verification-path failure is reported as
// ErrAuthenticationFailed with no further distinction.
func RunLoginFinish(ctx context.Context, deps LoginDeps, token string, finalization []byte) (*LoginFinishResult, error) {
	// The suffix tag is advisory; the consumed record carries the
	// authoritative flag and both are honored below.
	tagFake, tagOK := stores.TokenTag(token)
	if !tagOK {
		return nil, ErrSessionExpired
	}

	state, err := deps.States.Consume(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrLoginStateNotFound):
			return nil, ErrSessionExpired
		case errors.Is(err, stores.ErrLoginStateCorrupt):
			return nil, ErrAuthenticationFailed
		default:
			return nil, fmt.Errorf("%w: %v", ErrBackend, err)
		}
	}

	sessionKey, err := deps.Suite.LoginFinish(state.State, finalization)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}

	// A fake session must never authenticate. Cryptographically the
	// primitive cannot verify a synthetic record, but a bug in fake-record
	// construction must not silently grant access.
	if state.Fake || tagFake {
		return nil, ErrAuthenticationFailed
	}

	identifier, ok := identifierFromToken(token)
	if !ok {
		return nil, ErrAuthenticationFailed
	}

	bundle, hasBundle, err := deps.Credentials.GetBundle(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	return &LoginFinishResult{
		Identifier: identifier,
		SessionKey: sessionKey,
		Bundle:     bundle,
		HasBundle:  hasBundle,
	}, nil
}

// identifierFromToken recovers the client identifier from a session token of
// the form state:{identifier}:{millis}:{tag}.
func identifierFromToken(token string) (string, bool) {
	parts := strings.Split(token, ":")
	if len(parts) != 4 {
		return "", false
	}
	if !ValidIdentifier(parts[1]) {
		return "", false
	}
	return parts[1], true
}
