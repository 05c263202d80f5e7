package payment

import "errors"

var (
	// ErrMissingEndpoint is returned when the HTTP provider has no base URL
	ErrMissingEndpoint = errors.New("payment: missing provider endpoint")
	// ErrInvalidEndpoint is returned for a base URL that is not http(s)
	ErrInvalidEndpoint = errors.New("payment: invalid provider endpoint")
	// ErrInvalidTimeout is returned for a non-positive request timeout
	ErrInvalidTimeout = errors.New("payment: timeout must be positive")
	// ErrInvalidSuccessRate is returned when the simulated success rate is outside [0, 1]
	ErrInvalidSuccessRate = errors.New("payment: success rate must be between 0 and 1")
	// ErrUnknownMode is returned by NewProvider for an unsupported mode
	ErrUnknownMode = errors.New("payment: unknown provider mode")

	// ErrProviderUnavailable wraps transport failures reaching the provider
	ErrProviderUnavailable = errors.New("payment: provider unavailable")
	// ErrProviderRejected wraps non-success provider responses
	ErrProviderRejected = errors.New("payment: provider rejected request")
	// ErrMalformedResponse is returned when a success response cannot be decoded
	ErrMalformedResponse = errors.New("payment: malformed provider response")
)
