package errors

import (
	"errors"
	"fmt"
)

// Exit codes for envctl
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitConfigError      = 2
	ExitSourceMissing    = 3
	ExitTemplateMissing  = 4
	ExitAuthError        = 5
	ExitNetworkOpError   = 6
	ExitDirectoryRemoval = 7
	ExitRuntimeCommand   = 8
)

// Kind classifies an EnvError.
type Kind string

const (
	KindGeneral          Kind = "general"
	KindConfig           Kind = "config"
	KindSourceMissing    Kind = "source-missing"
	KindTemplateMissing  Kind = "template-missing"
	KindAuth             Kind = "auth"
	KindNetworkOp        Kind = "network-op"
	KindDirectoryRemoval Kind = "directory-removal"
	KindRuntimeCommand   Kind = "runtime-command"
)

// EnvError is the base error type for envctl
type EnvError struct {
	Code    int
	Kind    Kind
	Message string
	Cause   error
}

func (e *EnvError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *EnvError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *EnvError) ExitCode() int {
	return e.Code
}

// New creates a new EnvError
func New(code int, message string) *EnvError {
	return &EnvError{
		Code:    code,
		Kind:    kindForCode(code),
		Message: message,
	}
}

// Wrap wraps an existing error with an EnvError
func Wrap(code int, message string, cause error) *EnvError {
	return &EnvError{
		Code:    code,
		Kind:    kindForCode(code),
		Message: message,
		Cause:   cause,
	}
}

func kindForCode(code int) Kind {
	switch code {
	case ExitConfigError:
		return KindConfig
	case ExitSourceMissing:
		return KindSourceMissing
	case ExitTemplateMissing:
		return KindTemplateMissing
	case ExitAuthError:
		return KindAuth
	case ExitNetworkOpError:
		return KindNetworkOp
	case ExitDirectoryRemoval:
		return KindDirectoryRemoval
	case ExitRuntimeCommand:
		return KindRuntimeCommand
	default:
		return KindGeneral
	}
}

// Common error constructors

// ConfigError returns an error for invalid environment or project input
func ConfigError(message string, cause error) *EnvError {
	return Wrap(ExitConfigError, message, cause)
}

// SourceMissing returns an error for an absent upstream checkout
func SourceMissing(component, path string) *EnvError {
	return New(ExitSourceMissing, fmt.Sprintf("source checkout for %s not found at %s", component, path))
}

// TemplateMissing returns an error when no env template exists in the search chain
func TemplateMissing(component string) *EnvError {
	return New(ExitTemplateMissing, fmt.Sprintf("no env template found for %s", component))
}

// AuthError returns an error for a failed control-plane login
func AuthError(message string, cause error) *EnvError {
	return Wrap(ExitAuthError, message, cause)
}

// NetworkOpError returns an error for network create/connect/remove failures
func NetworkOpError(op, network string, cause error) *EnvError {
	return Wrap(ExitNetworkOpError, fmt.Sprintf("network %s %s failed", op, network), cause)
}

// DirectoryRemovalError returns an error for a directory that could not be removed
func DirectoryRemovalError(path string, attempts int, cause error) *EnvError {
	return Wrap(ExitDirectoryRemoval, fmt.Sprintf("failed to remove %s after %d attempts", path, attempts), cause)
}

// RuntimeCommandError returns an error for a failed runtime command
func RuntimeCommandError(op string, cause error) *EnvError {
	return Wrap(ExitRuntimeCommand, fmt.Sprintf("runtime %s failed", op), cause)
}

// ValidationError returns an error for input validation failures
func ValidationError(message string) *EnvError {
	return New(ExitConfigError, message)
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var envErr *EnvError
	if errors.As(err, &envErr) {
		return envErr.ExitCode()
	}
	return ExitGeneralError
}

// IsKind reports whether any EnvError in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	var envErr *EnvError
	for err != nil {
		if !errors.As(err, &envErr) {
			return false
		}
		if envErr.Kind == kind {
			return true
		}
		err = envErr.Cause
	}
	return false
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join wraps errors.Join
func Join(errs ...error) error {
	return errors.Join(errs...)
}
