package shared

import "errors"

// DomainError is a coded business error. The code is stable and maps to API
// error codes; the message is for humans.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *DomainError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return e.Message + ": " + e.Detail
}

// Is matches any DomainError with the same code, so a copy made by With still
// satisfies errors.Is against its sentinel.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// With returns a copy carrying detail, e.g. the id that was not found
func (e *DomainError) With(detail string) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, Detail: detail}
}

// NewDomainError creates a sentinel
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrUnavailable         = NewDomainError("UNAVAILABLE", "Dependency temporarily unavailable")
)

// ErrorCode returns the code of the first DomainError in err's chain, or "".
func ErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}
