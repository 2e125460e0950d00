package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions
var (
	// Command errors
	ErrScriptNotFound   = errors.New("script not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrBadRequest       = errors.New("missing required argument")

	// Execution errors
	ErrRunFailed = errors.New("script execution failed")

	// Delivery errors
	ErrDeliveryFailed = errors.New("message delivery failed")

	// Configuration errors
	ErrConfigNotFound = errors.New("configuration not found")
	ErrReloadFailed   = errors.New("configuration reload failed")
	ErrMissingToken   = errors.New("bot token is required")
)

// Wrap wraps an error with additional context
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is checks if the error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As checks if the error can be unwrapped to the target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
