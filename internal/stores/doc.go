// Package stores provides the Redis-backed persistence for credential
// records, encrypted bundles, and ephemeral login handshake state.
//
// # Design
//
// CredentialStore maps a client identifier to its write-once registration
// record and optional client-encrypted bundle. LoginStateStore holds the
// serialized server-side handshake state between the two login rounds under
// a short TTL; records are single-use and deleted on first read, before the
// caller runs cryptographic verification, so a replayed finish observes
// absence.
//
// The substrate offers no cross-key transactions. Write-once semantics use
// SET NX where Redis provides it; the surrounding design still tolerates the
// eventual-consistency races documented on each method.
//
// # What this package must NOT do
//
//   - Import the root package or any sibling internal package.
//   - Inspect protocol payloads; everything stored here is an opaque blob.
//   - Make authentication decisions.
package stores
