// Package backoff provides pluggable retry-delay strategies shared by the
// reconnection loop and the webhook dispatcher: exponential, linear, and
// constant, each with a cap and optional additive jitter.
package backoff
