package billing

import "context"

// ChargeStatus is the top-level result of a provider call
type ChargeStatus int

const (
	// ChargeAccepted means the provider took the money
	ChargeAccepted ChargeStatus = iota
	// ChargeDeclined is a definite business rejection. Never retried.
	ChargeDeclined
	// ChargeFailed means the call did not produce a decision; see FailureKind
	ChargeFailed
)

// String returns a readable name for the status
func (s ChargeStatus) String() string {
	switch s {
	case ChargeAccepted:
		return "accepted"
	case ChargeDeclined:
		return "declined"
	case ChargeFailed:
		return "failed"
	}
	return "unknown"
}

// FailureKind classifies a failed provider call
type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureCustomerNotFound is a late, provider-side customer validation failure
	FailureCustomerNotFound
	// FailureCurrencyMismatch is a late, provider-side currency validation failure
	FailureCurrencyMismatch
	// FailureTransient is an infrastructure failure that may succeed if retried
	FailureTransient
)

// String returns a readable name for the failure kind
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureCustomerNotFound:
		return "customer_not_found"
	case FailureCurrencyMismatch:
		return "currency_mismatch"
	case FailureTransient:
		return "transient"
	}
	return "unknown"
}

// ChargeResult is the typed outcome of PaymentProvider.Charge
type ChargeResult struct {
	Status  ChargeStatus
	Failure FailureKind
	// Err carries the underlying cause for failed calls, for logging only
	Err error
}

// Accepted builds an accepted result
func Accepted() ChargeResult {
	return ChargeResult{Status: ChargeAccepted}
}

// Declined builds a declined result
func Declined() ChargeResult {
	return ChargeResult{Status: ChargeDeclined}
}

// Failed builds a failed result of the given kind
func Failed(kind FailureKind, err error) ChargeResult {
	return ChargeResult{Status: ChargeFailed, Failure: kind, Err: err}
}

// IsTransient reports whether the call may be retried
func (r ChargeResult) IsTransient() bool {
	return r.Status == ChargeFailed && r.Failure == FailureTransient
}

// PaymentProvider charges an invoice against an external payment system
type PaymentProvider interface {
	Charge(ctx context.Context, invoice Invoice) ChargeResult
}
