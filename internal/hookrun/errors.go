package hookrun

import (
	"errors"
	"fmt"
)

// ConfigError reports a configuration problem the run cannot proceed with:
// malformed ACL syntax, an undefined group reference, an invalid boolean or
// integer value, mixed deprecated and modern vote-label options, missing
// remote-review credentials. Configuration errors are always fatal and are
// never aggregated as faults.
type ConfigError struct {
	// Option is the dotted configuration key the problem was found under,
	// when one applies.
	Option string

	// Message is a human-readable description.
	Message string
}

func (e *ConfigError) Error() string {
	if e.Option != "" {
		return fmt.Sprintf("invalid configuration: %s: %s", e.Option, e.Message)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Message)
}

// NewConfigError creates a ConfigError for the given option.
func NewConfigError(option, format string, args ...any) *ConfigError {
	return &ConfigError{Option: option, Message: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// FaultsError is the fatal termination carrying the aggregate fault report.
// Its message is the formatted report itself, so printing the error shows
// the user everything the checks found.
type FaultsError struct {
	Report string
	Count  int
}

func (e *FaultsError) Error() string { return e.Report }

// IsFaultsError reports whether err is (or wraps) a FaultsError.
func IsFaultsError(err error) bool {
	var fe *FaultsError
	return errors.As(err, &fe)
}
