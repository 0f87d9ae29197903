package bulkhead

import "errors"

// ErrRejected is returned when a task's backlog is full, or when a size-0 (synchronous handoff) bulkhead has no
// permit available at the moment Execute is called.
var ErrRejected = errors.New("climiter/bulkhead: rejected, backlog is full")

// ErrCancelled is returned when a task's context was already done by the time drain reached it, before dispatch.
var ErrCancelled = errors.New("climiter/bulkhead: task cancelled before dispatch")

// ConfigError is returned by a Builder's Build method when the builder's configuration is invalid.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "climiter/bulkhead: invalid " + e.Field + ": " + e.Message
}
