package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Recognition and refinement errors.
var (
	// ErrUnavailable means a backend is not configured. Expected, not an error condition.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrProvider means a configured backend failed or answered with an unexpected shape.
	ErrProvider = errors.New("provider error")
	// ErrParse means a refinement answer carried no usable structured JSON.
	ErrParse = errors.New("parse error")
	// ErrNotMatched means no stored template is close enough to the page.
	ErrNotMatched = errors.New("no matching template")
	// ErrNoEngine means every recognition attempt for a request failed.
	ErrNoEngine = errors.New("no recognition engine could produce a result")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Unavailable reports that the named backend has no configuration.
func Unavailable(provider string) error {
	return NewAppError("UNAVAILABLE", provider+" not configured", ErrUnavailable)
}

// ProviderError wraps a backend failure so callers can match ErrProvider.
func ProviderError(provider string, cause error) error {
	return NewAppError("PROVIDER_ERROR", provider, fmt.Errorf("%w: %w", ErrProvider, cause))
}

// ParseError wraps a refinement decoding failure so callers can match ErrParse.
func ParseError(cause error) error {
	return NewAppError("PARSE_ERROR", "refinement response", fmt.Errorf("%w: %w", ErrParse, cause))
}

// IsUnavailable reports whether err only signals a missing configuration.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

// ToStatus maps an application error onto a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNotMatched):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrNoEngine):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
