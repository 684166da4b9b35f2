package protocol

import "errors"

// ErrSchema marks a frame that failed validation against the schema for
// its type tag. Schema failures are contained: they are reported but do
// not affect session state.
var ErrSchema = errors.New("message schema violation")
