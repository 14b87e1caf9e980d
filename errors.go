package opaqued

import (
	"errors"
	"time"
)

var (
	// ErrInvalidInput is returned for malformed identifiers, undecodable
	// payloads, and failed preconditions. It is deliberately coarse.
	ErrInvalidInput = errors.New("invalid input")
	// ErrProtocolFailure is returned when the PAKE primitive rejects a
	// message. Outwardly it must be indistinguishable from ErrInvalidInput.
	ErrProtocolFailure = errors.New("protocol failure")
	// ErrRegistrationFailed is returned for every registration-finish
	// failure, including duplicate identifiers, under one message so the
	// endpoint cannot confirm account existence.
	ErrRegistrationFailed = errors.New("registration failed")
	// ErrAuthenticationFailed is returned for login verification failure,
	// the fake-record branch, and the post-hoc fake-record rejection, all
	// collapsed to one outward message.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrSessionExpired is returned when login state is missing, expired,
	// or already consumed.
	ErrSessionExpired = errors.New("session expired")
	// ErrRateLimited is returned when the sliding window denies a request.
	// The concrete error is a *RateLimitError carrying the retry-after hint.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable is returned when a fail-closed store operation
	// cannot reach Redis.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEngineNotReady is returned when the engine was not built correctly.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// RateLimitError is the concrete denial returned by rate-limited
// operations. errors.Is(err, ErrRateLimited) matches it.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return ErrRateLimited.Error() }

// Is lets the sentinel match through errors.Is.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }
