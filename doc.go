// Package opaqued is the session orchestration engine for OPAQUE
// password-authenticated key exchange. It sits between the PAKE primitive
// (package pake) and the transport (package httpapi), managing the two-round
// registration and login handshakes across stateless request cycles on top
// of a Redis substrate.
//
// The engine owns the anti-enumeration discipline: unknown users are served
// through a fake-record branch indistinguishable from the genuine path,
// ephemeral handshake state is one-time-use and TTL-bounded, and every
// user-facing failure collapses into a coarse sentinel from the taxonomy in
// errors.go. A sliding-window rate limiter (advisory, fail-open) throttles
// abuse per identifier and endpoint.
//
// Construction follows the builder pattern:
//
//	engine, err := opaqued.New().
//		WithConfig(opaqued.DefaultConfig()).
//		WithRedis(rdb).
//		WithServerSetup(setup).
//		Build()
//
// Engines are stateless between requests: all cross-request state lives in
// Redis, and every method is safe for concurrent use.
package opaqued
