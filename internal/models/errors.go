package models

import (
	"errors"
	"fmt"
)

// ErrBotNotFound is returned by stores when no identity matches the id.
var ErrBotNotFound = errors.New("bot not found")

// ConfigurationError is fatal: the run aborts before any action.
type ConfigurationError struct {
	Msg string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Err)
	}
	return "configuration error: " + e.Msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Configurationf builds a ConfigurationError.
func Configurationf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// IsConfigurationError reports whether err is, or wraps, a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// ExternalServiceError is a per-item failure of a collaborator. The run
// converts it into an external_error skip and continues.
type ExternalServiceError struct {
	Op  string
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// External wraps err as an ExternalServiceError. A nil err stays nil.
func External(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalServiceError{Op: op, Err: err}
}

// ValidationError marks malformed post or reply content.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}
