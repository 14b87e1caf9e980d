// Package httpapi exposes the handshake engine over a minimal JSON HTTP
// surface.
//
// # Design
//
// Four POST endpoints map one-to-one onto the engine operations, plus
// liveness and readiness probes. Binary protocol messages travel as
// standard base64 inside camelCase JSON bodies. Error responses are
// deliberately coarse: every failure collapses to one of a handful of
// generic messages so that response text never distinguishes an unknown
// account from a wrong password.
//
// # What this package must NOT do
//
//   - Leak error detail. Internal errors are logged server-side with a
//     request ID; clients only ever see the generic message for the
//     status class.
//   - Log full client identifiers. Only the 8-character prefix appears
//     in log output.
//   - Hold handshake state. Everything between rounds lives in the
//     engine's stores, keyed by the opaque session token.
package httpapi
