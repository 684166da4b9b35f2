// Package protocol defines the wire format exchanged with the
// coordinator: the JSON message envelope, the closed set of type tags,
// typed per-type decoders with required-field validation, and builders
// for every outbound frame.
//
// Decoders produce tagged payload values rather than raising on unknown
// types; the dispatcher treats unknown tags as a logged no-op.
package protocol
