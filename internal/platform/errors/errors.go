package errors

import (
	stderrors "errors"

	"github.com/leximpact/socio-fiscal-api/internal/platform/errors/i18n"
)

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs/telemetry)
	Metadata map[string]string // Additional context for templating
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates a domain error with metadata for i18n templating.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithMetadata creates a domain error with both metadata and a cause.
func WrapWithMetadata(code Code, message string, metadata map[string]string, cause error) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
		Cause:    cause,
	}
}

// CodeOf returns the code of the first domain error in err's chain.
func CodeOf(err error) Code {
	var domainErr *Error
	if stderrors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeUnknown
}

// Body is the JSON error envelope returned by the HTTP surface.
type Body struct {
	Error BodyError `json:"error"`
}

// BodyError carries the code and the user-facing message.
type BodyError struct {
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Render resolves the HTTP status and the localized envelope for err.
// Errors outside the domain render as CodeUnknown with a generic message.
func Render(err error, locale string) (int, Body) {
	var domainErr *Error
	if !stderrors.As(err, &domainErr) {
		domainErr = New(CodeUnknown, "unexpected error")
	}
	message := i18n.GetCatalog(locale).Format(string(domainErr.Code), domainErr.Metadata)
	return domainErr.Code.HTTPStatus(), Body{
		Error: BodyError{
			Code:    domainErr.Code,
			Message: message,
			Details: domainErr.Metadata,
		},
	}
}
