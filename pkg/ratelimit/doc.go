// Package ratelimit implements the non-blocking token bucket that guards
// outbound sends. A bucket starts full, refills continuously at the
// configured rate, and refuses acquisitions once empty; callers surface
// the refusal as a rate-limit error rather than queueing.
package ratelimit
