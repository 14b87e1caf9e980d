package opaqued

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sealbox/opaqued/pake"
)

const testIdentifier = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// stubSuite is a minimal protocol primitive for engine-level tests. The
// real primitive has its own tests; here only plumbing and error mapping
// are under test.
type stubSuite struct {
	finishErr error
}

func (s *stubSuite) RegistrationStart(identifier string, request []byte) ([]byte, error) {
	if len(request) == 0 {
		return nil, pake.ErrInvalidMessage
	}
	return []byte("reg-response"), nil
}

func (s *stubSuite) RegistrationFinish(upload []byte) ([]byte, error) {
	if len(upload) == 0 {
		return nil, pake.ErrInvalidMessage
	}
	return []byte("record"), nil
}

func (s *stubSuite) LoginStart(identifier string, record []byte, request []byte) ([]byte, []byte, error) {
	if len(request) == 0 {
		return nil, nil, pake.ErrInvalidMessage
	}
	return []byte("login-response"), []byte("state"), nil
}

func (s *stubSuite) LoginFinish(state []byte, finalization []byte) ([]byte, error) {
	if s.finishErr != nil {
		return nil, s.finishErr
	}
	return []byte("session-key"), nil
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	engine, err := New().WithConfig(cfg).WithRedis(rdb).WithSuite(&stubSuite{}).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return engine, mr
}

func TestBuildRequiresRedisAndSuite(t *testing.T) {
	if _, err := New().WithSuite(&stubSuite{}).Build(); err == nil {
		t.Fatal("expected error without redis")
	}

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	if _, err := New().WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without suite")
	}

	b := New().WithRedis(rdb).WithSuite(&stubSuite{})
	if _, err := b.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected error on second Build")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := DefaultConfig()
	cfg.LoginStateTTL = time.Hour

	if _, err := New().WithConfig(cfg).WithRedis(rdb).WithSuite(&stubSuite{}).Build(); err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestEngineRejectsMalformedIdentifiers(t *testing.T) {
	engine, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	for _, id := range []string{"", "short", strings.Repeat("g", 64)} {
		if _, err := engine.RegisterStart(ctx, id, []byte("x")); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("RegisterStart(%q): expected ErrInvalidInput, got %v", id, err)
		}
		if err := engine.RegisterFinish(ctx, id, []byte("x"), nil); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("RegisterFinish(%q): expected ErrInvalidInput, got %v", id, err)
		}
		if _, err := engine.LoginStart(ctx, id, []byte("x")); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("LoginStart(%q): expected ErrInvalidInput, got %v", id, err)
		}
		if _, err := engine.LoginFinish(ctx, id, "state:x:1:r", []byte("x")); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("LoginFinish(%q): expected ErrInvalidInput, got %v", id, err)
		}
	}
}

func TestZeroValueEngineIsNotReady(t *testing.T) {
	var engine Engine
	ctx := context.Background()

	if _, err := engine.RegisterStart(ctx, testIdentifier, []byte("x")); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("RegisterStart: expected ErrEngineNotReady, got %v", err)
	}
	if err := engine.RegisterFinish(ctx, testIdentifier, []byte("x"), nil); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("RegisterFinish: expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.LoginStart(ctx, testIdentifier, []byte("x")); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("LoginStart: expected ErrEngineNotReady, got %v", err)
	}
	if _, err := engine.LoginFinish(ctx, testIdentifier, "state:x:1:r", []byte("x")); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("LoginFinish: expected ErrEngineNotReady, got %v", err)
	}
}

func TestEngineMapsProtocolFailures(t *testing.T) {
	engine, _ := newTestEngine(t, DefaultConfig())

	if _, err := engine.RegisterStart(context.Background(), testIdentifier, nil); !errors.Is(err, ErrProtocolFailure) {
		t.Fatalf("expected ErrProtocolFailure, got %v", err)
	}
}

func TestEngineFullFlow(t *testing.T) {
	engine, _ := newTestEngine(t, DefaultConfig())
	ctx := context.Background()

	if _, err := engine.RegisterStart(ctx, testIdentifier, []byte("req")); err != nil {
		t.Fatalf("RegisterStart failed: %v", err)
	}
	if err := engine.RegisterFinish(ctx, testIdentifier, []byte("upload"), []byte("bundle")); err != nil {
		t.Fatalf("RegisterFinish failed: %v", err)
	}
	if err := engine.RegisterFinish(ctx, testIdentifier, []byte("upload"), nil); !errors.Is(err, ErrRegistrationFailed) {
		t.Fatalf("expected ErrRegistrationFailed on duplicate, got %v", err)
	}

	start, err := engine.LoginStart(ctx, testIdentifier, []byte("req"))
	if err != nil {
		t.Fatalf("LoginStart failed: %v", err)
	}
	if start.SessionToken == "" {
		t.Fatal("empty session token")
	}

	result, err := engine.LoginFinish(ctx, testIdentifier, start.SessionToken, []byte("fin"))
	if err != nil {
		t.Fatalf("LoginFinish failed: %v", err)
	}
	if string(result.SessionKey) != "session-key" {
		t.Fatalf("session key %q", result.SessionKey)
	}
	if !result.HasBundle || string(result.Bundle) != "bundle" {
		t.Fatalf("bundle = %q, has = %v", result.Bundle, result.HasBundle)
	}

	if _, err := engine.LoginFinish(ctx, testIdentifier, start.SessionToken, []byte("fin")); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired on replay, got %v", err)
	}
}

func TestEngineRateLimitDenial(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit.MaxRequests = 1
	engine, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	if _, err := engine.LoginStart(ctx, testIdentifier, []byte("req")); err != nil {
		t.Fatalf("first LoginStart failed: %v", err)
	}

	_, err := engine.LoginStart(ctx, testIdentifier, []byte("req"))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected *RateLimitError, got %T", err)
	}
	if rateErr.RetryAfter <= 0 {
		t.Fatalf("RetryAfter = %v", rateErr.RetryAfter)
	}
}

// Stateless operations must survive a limiter backend outage: the limiter
// fails open and registration start touches no store.
func TestEngineFailsOpenWhenLimiterBackendIsDown(t *testing.T) {
	engine, mr := newTestEngine(t, DefaultConfig())
	mr.Close()

	if _, err := engine.RegisterStart(context.Background(), testIdentifier, []byte("req")); err != nil {
		t.Fatalf("RegisterStart failed during backend outage: %v", err)
	}
}

func TestEngineReadyReportsPerKeyspaceChecks(t *testing.T) {
	engine, mr := newTestEngine(t, DefaultConfig())

	checks, ok := engine.Ready(context.Background())
	if !ok {
		t.Fatalf("expected ready, checks = %v", checks)
	}
	for _, keyspace := range []string{"kv_credentials", "kv_bundles", "kv_login_states", "kv_rate_limits"} {
		if checks[keyspace] != "ok" {
			t.Fatalf("check %s = %q", keyspace, checks[keyspace])
		}
	}

	mr.Close()
	checks, ok = engine.Ready(context.Background())
	if ok {
		t.Fatal("expected degraded after backend loss")
	}
	if checks["kv_credentials"] != "error" {
		t.Fatalf("check kv_credentials = %q", checks["kv_credentials"])
	}
}
