package dispatch

import "errors"

// Errors returned synchronously for programmer mistakes. Remote failures are
// never returned; they are reported through the Logger and Recorder.
var (
	// ErrInvalidConfig is returned when an engine or adapter is constructed
	// with an unusable configuration.
	ErrInvalidConfig = errors.New("dispatch: invalid configuration")

	// ErrMissingField is returned when a submitted record lacks a field the
	// adapter needs, such as a partition key.
	ErrMissingField = errors.New("dispatch: missing required field")

	// ErrPayloadTooLarge is returned when a single item exceeds the
	// service's per-item byte limit.
	ErrPayloadTooLarge = errors.New("dispatch: payload too large")
)
