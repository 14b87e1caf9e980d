// Package pake wraps the OPAQUE password-authenticated key exchange behind a
// narrow, byte-oriented boundary. The orchestration layer consumes protocol
// messages as opaque blobs; this package is the only place that understands
// their structure.
//
// # Design
//
// Suite is the abstraction: four operations covering the two-round
// registration and login handshakes. Opaque is the production implementation
// built on github.com/cretz/gopaque with the SIGMA-I key exchange. Server-side
// login state is fully serializable, so a login can start on one process and
// finish on another with nothing held in memory between rounds.
//
// OPRF keys are derived per identifier from the ServerSetup seed rather than
// generated per registration. This keeps registration start stateless: the
// finish step is a pure transform of the client's upload.
//
// # Fake records
//
// LoginStart accepts a nil credential record and then drives the protocol
// with a synthetic record derived deterministically from the setup's fake
// seed and the identifier. The resulting response is structurally identical
// to a genuine one and stable across calls for the same identifier, so an
// observer cannot separate unknown users from wrong passwords.
//
// # What this package must NOT do
//
//   - Touch Redis or any other store.
//   - Log identifiers, keys, or protocol payloads.
//   - Make authentication decisions beyond cryptographic verification.
package pake
