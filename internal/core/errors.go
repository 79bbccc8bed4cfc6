package core

import (
	"errors"

	"github.com/coregx/mohair/internal/dialects"
)

// Predefined errors returned by mohair operations.
var (
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("query is not fully configured")
	// ErrUnsupportedDialect is returned when no dialect is registered for a driver name.
	ErrUnsupportedDialect = dialects.ErrUnsupportedDialect
)

// ValidationError reports a malformed argument passed to a mutator.
// It is returned before any new query state is produced.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return "mohair: " + e.Op + ": " + e.Reason
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ConfigurationError reports a terminal operation called on an incomplete query,
// e.g. SQL() without a table or Exec() without a connection.
type ConfigurationError struct {
	Op     string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "mohair: " + e.Op + ": " + e.Reason
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func validationErr(op, reason string) error {
	return &ValidationError{Op: op, Reason: reason}
}

func configurationErr(op, reason string) error {
	return &ConfigurationError{Op: op, Reason: reason}
}
