// Package rate provides the Redis-backed sliding-window rate limiter keyed
// by (client identifier, endpoint).
//
// # Window semantics
//
// Each key holds a JSON entry {count, windowStart}. The first request in a
// window writes count=1; requests inside the window increment; at the
// maximum the request is denied with the seconds remaining until the window
// ends. Entries expire via TTL, so an elapsed window resets instead of
// accumulating. The read-then-write pattern may under- or over-count under
// concurrent bursts; this is accepted, not corrected.
//
// # Failure policy
//
// The limiter is defense-in-depth behind an edge throttle, so it fails open:
// backend errors allow the request and are surfaced only for logging.
//
// # What this package must NOT do
//
//   - Deny requests because Redis is down.
//   - Be imported outside this module.
package rate
