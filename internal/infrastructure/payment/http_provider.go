package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/antaeus/billing/internal/domain/billing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	chargePath = "/v1/charges"

	headerTimestamp = "X-Billing-Timestamp"
	headerSignature = "X-Billing-Signature"

	// Response codes understood in the provider's error body
	codeDeclined         = "declined"
	codeCustomerNotFound = "customer_not_found"
	codeCurrencyMismatch = "currency_mismatch"

	maxResponseBytes = 1 << 20
)

// HTTPProviderConfig configures the HTTP payment provider
type HTTPProviderConfig struct {
	// Endpoint is the provider's base URL
	Endpoint string
	// APIKey signs every request; empty disables signing
	APIKey  string
	Timeout time.Duration
}

// Validate validates the configuration
func (c HTTPProviderConfig) Validate() error {
	if c.Endpoint == "" {
		return ErrMissingEndpoint
	}
	if !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.Endpoint)
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	return nil
}

type chargeRequest struct {
	InvoiceID  int64  `json:"invoice_id"`
	CustomerID int64  `json:"customer_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

type chargeResponse struct {
	Charged bool   `json:"charged"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// HTTPProvider charges invoices against a remote payment API.
// Every outcome is reported as a billing.ChargeResult; the call never panics or returns an error.
type HTTPProvider struct {
	config     HTTPProviderConfig
	httpClient *http.Client
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// HTTPProviderOption configures an HTTPProvider
type HTTPProviderOption func(*HTTPProvider)

// WithHTTPClient replaces the default client
func WithHTTPClient(client *http.Client) HTTPProviderOption {
	return func(p *HTTPProvider) {
		p.httpClient = client
	}
}

// WithProviderLogger sets the logger
func WithProviderLogger(logger *zap.Logger) HTTPProviderOption {
	return func(p *HTTPProvider) {
		p.logger = logger
	}
}

// NewHTTPProvider creates a new HTTP payment provider
func NewHTTPProvider(config HTTPProviderConfig, opts ...HTTPProviderOption) (*HTTPProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &HTTPProvider{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     zap.NewNop(),
		tracer:     otel.Tracer("github.com/antaeus/billing/payment"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Charge submits the invoice to the provider and classifies the response
func (p *HTTPProvider) Charge(ctx context.Context, invoice billing.Invoice) billing.ChargeResult {
	ctx, span := p.tracer.Start(ctx, "payment.charge",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int64("invoice.id", invoice.ID),
			attribute.Int64("customer.id", invoice.CustomerID),
			attribute.String("invoice.currency", invoice.Currency().String()),
		),
	)
	defer span.End()

	result := p.charge(ctx, invoice)

	span.SetAttributes(
		attribute.String("charge.status", result.Status.String()),
		attribute.String("charge.failure", result.Failure.String()),
	)
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	}
	return result
}

func (p *HTTPProvider) charge(ctx context.Context, invoice billing.Invoice) billing.ChargeResult {
	body, err := json.Marshal(chargeRequest{
		InvoiceID:  invoice.ID,
		CustomerID: invoice.CustomerID,
		Amount:     invoice.Amount.Amount().String(),
		Currency:   invoice.Currency().String(),
	})
	if err != nil {
		return billing.Failed(billing.FailureTransient, fmt.Errorf("payment: failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(p.config.Endpoint, "/")+chargePath, bytes.NewReader(body))
	if err != nil {
		return billing.Failed(billing.FailureTransient, fmt.Errorf("payment: failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	p.sign(req, body)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return billing.Failed(billing.FailureTransient, fmt.Errorf("%w: %v", ErrProviderUnavailable, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return billing.Failed(billing.FailureTransient, fmt.Errorf("payment: failed to read response: %w", err))
	}

	result := classify(resp.StatusCode, respBody)
	p.logger.Debug("Payment provider responded",
		zap.Int64("invoice_id", invoice.ID),
		zap.Int("http_status", resp.StatusCode),
		zap.Stringer("charge_status", result.Status),
		zap.Stringer("failure", result.Failure),
	)
	return result
}

// sign adds an HMAC-SHA256 signature over the timestamp and body
func (p *HTTPProvider) sign(req *http.Request, body []byte) {
	if p.config.APIKey == "" {
		return
	}
	timestamp := strconv.FormatInt(p.now().Unix(), 10)

	mac := hmac.New(sha256.New, []byte(p.config.APIKey))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("\n"))
	mac.Write(body)

	req.Header.Set(headerTimestamp, timestamp)
	req.Header.Set(headerSignature, hex.EncodeToString(mac.Sum(nil)))
}

// classify maps a provider response onto a charge result.
// An error code in the body wins over the HTTP status.
func classify(status int, body []byte) billing.ChargeResult {
	var parsed chargeResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if decodeErr == nil {
		switch parsed.Code {
		case codeCustomerNotFound:
			return billing.Failed(billing.FailureCustomerNotFound, providerError(status, parsed))
		case codeCurrencyMismatch:
			return billing.Failed(billing.FailureCurrencyMismatch, providerError(status, parsed))
		case codeDeclined:
			return billing.Declined()
		}
	}

	switch {
	case status >= 200 && status < 300:
		if decodeErr != nil {
			return billing.Failed(billing.FailureTransient, fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr))
		}
		if parsed.Charged {
			return billing.Accepted()
		}
		return billing.Declined()
	case status == http.StatusPaymentRequired:
		return billing.Declined()
	case status == http.StatusNotFound:
		return billing.Failed(billing.FailureCustomerNotFound, providerError(status, parsed))
	case status == http.StatusConflict || status == http.StatusUnprocessableEntity:
		return billing.Failed(billing.FailureCurrencyMismatch, providerError(status, parsed))
	}
	return billing.Failed(billing.FailureTransient, providerError(status, parsed))
}

func providerError(status int, resp chargeResponse) error {
	if resp.Code != "" || resp.Message != "" {
		return fmt.Errorf("%w: HTTP %d: %s %s", ErrProviderRejected, status, resp.Code, resp.Message)
	}
	return fmt.Errorf("%w: HTTP %d", ErrProviderRejected, status)
}

var _ billing.PaymentProvider = (*HTTPProvider)(nil)
