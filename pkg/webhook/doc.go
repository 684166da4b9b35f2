// Package webhook mirrors selected session events to a configured HTTP
// endpoint.
//
// Deliveries flow through a bounded drop-oldest queue consumed by a
// single worker, guarded by a three-state circuit breaker and retried
// with capped exponential backoff. Target URLs are validated against
// SSRF vectors (private ranges, loopback, link-local, cloud metadata
// names, Kubernetes service names, dangerous well-known ports) before
// configuration and again before every attempt; a failed validation
// permanently disables the dispatcher until it is reconfigured.
package webhook
