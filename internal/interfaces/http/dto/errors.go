package dto

import "net/http"

// API error codes. Domain error codes are passed through prefixed with ERR_.
const (
	ErrCodeInternal     = "ERR_INTERNAL"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
	ErrCodeTokenRevoked = "ERR_TOKEN_REVOKED"
	ErrCodeNotFound     = "ERR_NOT_FOUND"
	ErrCodeConflict     = "ERR_CONFLICT"
	ErrCodeRateLimited  = "ERR_RATE_LIMITED"
	ErrCodeUnavailable  = "ERR_UNAVAILABLE"
)

// Billing error codes, derived from the domain error codes.
const (
	ErrCodeInvoiceNotFound  = "ERR_INVOICE_NOT_FOUND"
	ErrCodeCustomerNotFound = "ERR_CUSTOMER_NOT_FOUND"
	ErrCodeCurrencyMismatch = "ERR_CURRENCY_MISMATCH"
	ErrCodePaymentDeclined  = "ERR_PAYMENT_DECLINED"
	ErrCodePaymentDown      = "ERR_PAYMENT_UNAVAILABLE"
	ErrCodeConcurrentUpdate = "ERR_CONCURRENT_UPDATE"
	ErrCodeInvalidInvoice   = "ERR_INVALID_INVOICE"

	ErrCodeInvalidInput        = "ERR_INVALID_INPUT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:     http.StatusInternalServerError,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,
	ErrCodeTokenRevoked: http.StatusUnauthorized,
	ErrCodeNotFound:     http.StatusNotFound,
	ErrCodeConflict:     http.StatusConflict,
	ErrCodeRateLimited:  http.StatusTooManyRequests,
	ErrCodeUnavailable:  http.StatusServiceUnavailable,

	ErrCodeInvoiceNotFound:  http.StatusNotFound,
	ErrCodeCustomerNotFound: http.StatusNotFound,
	ErrCodeCurrencyMismatch: http.StatusUnprocessableEntity,
	ErrCodePaymentDeclined:  http.StatusUnprocessableEntity,
	ErrCodePaymentDown:      http.StatusServiceUnavailable,
	ErrCodeConcurrentUpdate: http.StatusConflict,
	ErrCodeInvalidInvoice:   http.StatusBadRequest,

	ErrCodeInvalidInput:        http.StatusBadRequest,
	ErrCodeInvalidState:        http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
}

// GetHTTPStatus returns the status for code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// APICode turns a domain error code into an API error code.
func APICode(domainCode string) string {
	if domainCode == "" {
		return ErrCodeInternal
	}
	return "ERR_" + domainCode
}
