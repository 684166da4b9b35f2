// Package events defines the SDK event enumeration and a synchronous
// typed emitter.
//
// Listeners are invoked in registration order during Emit and run to
// completion before Emit returns; panics in listeners are contained and
// logged. This keeps handler-driven state updates and their event
// notifications strictly ordered with frame processing.
package events
