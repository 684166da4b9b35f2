// Package transport owns the WebSocket session: the socket lifecycle,
// the challenge–response authentication state machine, heartbeat and
// liveness, automatic reconnection with backoff, reply correlation for
// sends that await a response, and the validate-then-dispatch pipeline
// routing inbound frames to per-type handlers.
//
// Inbound frames are processed strictly in arrival order; a handler runs
// to completion before the next frame is read. Outbound writes are
// serialized, and the public send paths are guarded by the configured
// rate limiter.
package transport
