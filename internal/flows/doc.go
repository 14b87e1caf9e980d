// Package flows contains the pure-function orchestrators for the
// registration and login handshakes: the session state machine between the
// PAKE primitive and the transport.
//
// Each flow function accepts a typed dependency struct and performs no I/O
// except through those dependencies, so the state machine is exhaustively
// testable with a fake Suite and in-memory stores.
//
// # Ordering invariant
//
// RunLoginFinish consumes (reads and deletes) the ephemeral handshake state
// before invoking cryptographic verification. Verification failures must not
// leave a token replayable.
//
// # Anti-enumeration
//
// Every failure on the authentication path collapses into one of a small set
// of sentinel errors. Unknown identifiers take the fake-record branch through
// the same code path as genuine ones; nothing here may early-return on user
// existence.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root package (avoids import cycles).
//   - Log. Classification is returned to the Engine, which owns logging.
package flows
