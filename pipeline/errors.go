package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingType means a pipeline section is absent or has no type.
	ErrMissingType = errors.New("missing component type")

	// ErrUnknownType means no constructor is registered for the type.
	ErrUnknownType = errors.New("unknown component type")

	// ErrMissingDependency means a constructor needs a shared service
	// (LLM client, NATS connection) that the app did not provide.
	ErrMissingDependency = errors.New("missing dependency")
)

// ConfigError reports a pipeline section that could not be resolved or
// constructed. It is the only error that aborts a run.
type ConfigError struct {
	Kind Kind
	Type string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Type, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is, or wraps, a ConfigError.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
