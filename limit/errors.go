package limit

import "fmt"

// ConfigError is returned by a Builder's Build method when the builder's configuration is invalid. Build never
// panics on bad input; callers that want panic-on-misconfiguration semantics can wrap Build themselves.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("climiter/limit: invalid %s: %s", e.Field, e.Message)
}
