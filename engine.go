package opaqued

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sealbox/opaqued/internal/flows"
	"github.com/sealbox/opaqued/internal/rate"
	"github.com/sealbox/opaqued/internal/stores"
	"github.com/sealbox/opaqued/logging"
	"github.com/sealbox/opaqued/pake"
)

// Engine orchestrates the registration and login handshakes. All state
// lives in Redis; the Engine itself holds only immutable wiring and is safe
// for concurrent use.
type Engine struct {
	config      Config
	redis       redis.UniversalClient
	suite       pake.Suite
	credentials *stores.CredentialStore
	states      *stores.LoginStateStore
	limiter     *rate.Limiter
	log         logging.Logger
	now         func() time.Time
}

// RegisterStart runs the first registration round. Stateless: no store
// side effects.
func (e *Engine) RegisterStart(ctx context.Context, identifier string, request []byte) ([]byte, error) {
	if err := e.guard(ctx, identifier, EndpointRegisterStart); err != nil {
		return nil, err
	}

	response, err := flows.RunRegisterStart(ctx, e.registerDeps(), identifier, request)
	if err != nil {
		e.log.Warn(ctx, "register start rejected", "client", idPrefix(identifier), "err", err)
		return nil, e.mapError(err)
	}

	e.log.Info(ctx, "register start", "client", idPrefix(identifier), "response_bytes", len(response))
	return response, nil
}

// RegisterFinish persists the client's registration upload as a write-once
// credential record, with the optional encrypted bundle alongside it.
func (e *Engine) RegisterFinish(ctx context.Context, identifier string, upload, bundle []byte) error {
	if err := e.guard(ctx, identifier, EndpointRegisterFinish); err != nil {
		return err
	}

	if err := flows.RunRegisterFinish(ctx, e.registerDeps(), identifier, upload, bundle); err != nil {
		e.log.Warn(ctx, "register finish rejected", "client", idPrefix(identifier), "err", err)
		return e.mapError(err)
	}

	e.log.Info(ctx, "registered", "client", idPrefix(identifier), "bundle", bundle != nil)
	return nil
}

// LoginStart runs the first login round. Unknown identifiers are served
// through the fake-record branch; the result shape never varies with
// account existence.
func (e *Engine) LoginStart(ctx context.Context, identifier string, request []byte) (*LoginStartResult, error) {
	if err := e.guard(ctx, identifier, EndpointLoginStart); err != nil {
		return nil, err
	}

	result, err := flows.RunLoginStart(ctx, e.loginDeps(), identifier, request)
	if err != nil {
		e.log.Warn(ctx, "login start rejected", "client", idPrefix(identifier), "err", err)
		return nil, e.mapError(err)
	}

	e.log.Info(ctx, "login start", "client", idPrefix(identifier), "fake", result.Fake)
	return &LoginStartResult{Response: result.Response, SessionToken: result.Token}, nil
}

// LoginFinish runs the second login round: consume the one-time state,
// verify, and on success return the session key and stored bundle. The
// identifier parameter is used for validation and rate limiting; the token
// alone drives the handshake.
func (e *Engine) LoginFinish(ctx context.Context, identifier, token string, finalization []byte) (*LoginFinishResult, error) {
	if err := e.guard(ctx, identifier, EndpointLoginFinish); err != nil {
		return nil, err
	}

	result, err := flows.RunLoginFinish(ctx, e.loginDeps(), token, finalization)
	if err != nil {
		e.log.Warn(ctx, "login finish rejected", "client", idPrefix(identifier), "err", err)
		return nil, e.mapError(err)
	}

	e.log.Info(ctx, "login", "client", idPrefix(result.Identifier), "bundle", result.HasBundle)
	return &LoginFinishResult{
		SessionKey: result.SessionKey,
		Bundle:     result.Bundle,
		HasBundle:  result.HasBundle,
	}, nil
}

// Ready probes every dependency with a harmless read and reports a
// per-check status map. ok is false when any check fails.
func (e *Engine) Ready(ctx context.Context) (map[string]string, bool) {
	checks := map[string]string{"pake_suite": "ok"}
	ok := true

	probes := map[string]string{
		"kv_credentials":  "cred:__healthcheck__",
		"kv_bundles":      "bundle:__healthcheck__",
		"kv_login_states": "state:__healthcheck__",
		"kv_rate_limits":  "rate:__healthcheck__",
	}
	for keyspace, key := range probes {
		err := e.redis.Get(ctx, key).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			checks[keyspace] = "error"
			ok = false
			continue
		}
		checks[keyspace] = "ok"
	}

	return checks, ok
}

// guard applies the readiness check, identifier validation, and the advisory
// rate limit shared by every endpoint. Limiter backend failures are logged
// and allowed through.
func (e *Engine) guard(ctx context.Context, identifier, endpoint string) error {
	if e.suite == nil || e.redis == nil {
		return ErrEngineNotReady
	}
	if !flows.ValidIdentifier(identifier) {
		return ErrInvalidInput
	}

	result, err := e.limiter.Check(ctx, identifier, endpoint)
	if err != nil {
		e.log.Warn(ctx, "rate limiter unavailable, failing open",
			"client", idPrefix(identifier), "endpoint", endpoint, "err", err)
	}
	if !result.Allowed {
		e.log.Info(ctx, "rate limited",
			"client", idPrefix(identifier), "endpoint", endpoint, "retry_after", result.RetryAfter)
		return &RateLimitError{RetryAfter: result.RetryAfter}
	}
	return nil
}

func (e *Engine) registerDeps() flows.RegisterDeps {
	return flows.RegisterDeps{
		Suite:       e.suite,
		Credentials: e.credentials,
	}
}

func (e *Engine) loginDeps() flows.LoginDeps {
	return flows.LoginDeps{
		Suite:       e.suite,
		Credentials: e.credentials,
		States:      e.states,
		StateTTL:    e.config.LoginStateTTL,
		Now:         e.now,
	}
}

// mapError translates flow-local classifications onto the public taxonomy.
func (e *Engine) mapError(err error) error {
	switch {
	case errors.Is(err, flows.ErrInvalidIdentifier):
		return ErrInvalidInput
	case errors.Is(err, flows.ErrInvalidPayload):
		return fmt.Errorf("%w: %v", ErrProtocolFailure, err)
	case errors.Is(err, flows.ErrAlreadyRegistered):
		return ErrRegistrationFailed
	case errors.Is(err, flows.ErrSessionExpired):
		return ErrSessionExpired
	case errors.Is(err, flows.ErrAuthenticationFailed):
		return ErrAuthenticationFailed
	case errors.Is(err, flows.ErrBackend):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}
