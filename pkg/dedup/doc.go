// Package dedup provides a bounded, TTL-limited set of recently observed
// message ids, used to suppress repeated deliveries of the same inbound
// frame. Eviction prefers entries past their TTL, then the oldest
// insertion, and the set never exceeds its configured capacity.
package dedup
