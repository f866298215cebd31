package simulation

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by every ConfigurationError
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrNotInitialized is returned by Start and Continue before the first Init
	ErrNotInitialized = errors.New("simulation not initialized")
)

// ConfigurationError reports an init parameter outside its allowed range.
// The engine state is unchanged when Init returns one.
type ConfigurationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets callers match with errors.Is(err, ErrInvalidConfig)
func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfig
}

func outOfRange(field string, value interface{}, min, max interface{}) *ConfigurationError {
	return &ConfigurationError{
		Field:  field,
		Value:  value,
		Reason: fmt.Sprintf("must be between %v and %v", min, max),
	}
}
