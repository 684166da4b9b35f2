// Package queue provides the bounded FIFO used for pending webhook
// deliveries. Overflow discards the oldest element rather than blocking
// the producer, and drops are counted for observability.
package queue
