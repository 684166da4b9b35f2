// Package registry holds the evented in-memory catalogs kept in sync with
// authoritative server updates: the agent registry with its capability,
// name-token, and status indexes, and the room registry with the
// subscribed-room set.
package registry
