package errors

import "fmt"

// Category represents the type of error.
type Category string

const (
	CategoryRuntime  Category = "runtime"
	CategoryContract Category = "contract"
	CategoryProtocol Category = "protocol"
	CategoryConfig   Category = "config"
	CategoryStorage  Category = "storage"
	CategoryCLI      Category = "cli"
)

// LitheError is a structured error with a stable code, suggestions, and documentation.
type LitheError struct {
	// Code is a unique error identifier (e.g., "E001").
	Code string

	// Category is the error type (runtime, protocol, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *LitheError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *LitheError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *LitheError) WithSuggestion(s string) *LitheError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *LitheError) WithDetail(format string, args ...any) *LitheError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// WithMessagef replaces the template message with a formatted one.
func (e *LitheError) WithMessagef(format string, args ...any) *LitheError {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *LitheError) Wrap(err error) *LitheError {
	e.Wrapped = err
	return e
}

// New creates a LitheError from a registered error code.
func New(code string) *LitheError {
	template, ok := registry[code]
	if !ok {
		return &LitheError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &LitheError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a new LitheError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *LitheError {
	return &LitheError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a LitheError.
func FromError(err error, code string) *LitheError {
	if err == nil {
		return nil
	}
	if le, ok := err.(*LitheError); ok {
		return le
	}
	return New(code).Wrap(err)
}

// AsLitheError returns the first LitheError in err's chain, or nil.
func AsLitheError(err error) *LitheError {
	for err != nil {
		if le, ok := err.(*LitheError); ok {
			return le
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil
		}
		err = u.Unwrap()
	}
	return nil
}

// Is reports whether err carries the given registered code.
func Is(err error, code string) bool {
	for err != nil {
		if le, ok := err.(*LitheError); ok && le.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
