package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	appbilling "github.com/antaeus/billing/internal/application/billing"
	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/domain/shared/valueobject"
	"github.com/antaeus/billing/internal/infrastructure/auth"
	"github.com/antaeus/billing/internal/infrastructure/logger"
	"github.com/antaeus/billing/internal/infrastructure/scheduler"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubInvoices struct{}

func (stubInvoices) FetchAll(context.Context) ([]billing.Invoice, error) {
	return []billing.Invoice{{ID: 1, CustomerID: 1, Amount: valueobject.MustNewMoney("10", valueobject.EUR), Status: billing.InvoiceStatusPending}}, nil
}

func (stubInvoices) FetchByStatus(context.Context, billing.InvoiceStatus) ([]billing.Invoice, error) {
	return nil, nil
}

func (stubInvoices) Fetch(_ context.Context, id int64) (billing.Invoice, error) {
	return billing.Invoice{}, billing.ErrInvoiceNotFound
}

type stubCharger struct{}

func (stubCharger) ChargeWithOutcome(_ context.Context, inv billing.Invoice) (billing.Invoice, appbilling.ChargeOutcome) {
	return inv, appbilling.ChargeOutcome{Result: appbilling.ResultSkipped}
}

type stubCustomers struct{}

func (stubCustomers) FetchAll(context.Context) ([]billing.Customer, error) { return nil, nil }
func (stubCustomers) Fetch(context.Context, int64) (billing.Customer, error) {
	return billing.Customer{}, billing.ErrCustomerNotFound
}

type stubScheduler struct{ runs int }

func (s *stubScheduler) StartScheduled(context.Context) error { return nil }
func (s *stubScheduler) StartNow(context.Context) (string, error) {
	s.runs++
	return "now_invoice_payment_job", nil
}
func (s *stubScheduler) Stop(context.Context) error { return nil }
func (s *stubScheduler) Status() scheduler.Status   { return scheduler.Status{State: "stopped"} }

type stubDB struct{}

func (stubDB) PingContext(context.Context) error { return nil }

func newTestEngine(t *testing.T, tokens *auth.TokenService) (*gin.Engine, *stubScheduler) {
	t.Helper()
	sched := &stubScheduler{}
	engine := New(Config{
		ServiceName:     "billing-test",
		ProfileRequests: true,
		TokenRatePerMin: 60,
		TokenRateBurst:  2,
	}, Dependencies{
		Invoices:    stubInvoices{},
		Charger:     stubCharger{},
		Customers:   stubCustomers{},
		Scheduler:   sched,
		Database:    stubDB{},
		Tokens:      tokens,
		Revocations: auth.NewMemoryRevocations(),
		Logger:      zaptest.NewLogger(t),
	})
	return engine, sched
}

func serve(engine http.Handler, method, path, body, bearer string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	req.RemoteAddr = "198.51.100.7:4000"
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestNew_Routes(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	registered := map[string]bool{}
	for _, route := range engine.Routes() {
		registered[route.Method+" "+route.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /api/v1/invoices",
		"GET /api/v1/invoices/:id",
		"POST /api/v1/invoices/:id/charge",
		"GET /api/v1/invoices/:id/events",
		"GET /api/v1/customers",
		"GET /api/v1/customers/:id",
		"POST /api/v1/billing/run",
		"GET /api/v1/billing/status",
		"POST /api/v1/billing/schedule",
		"DELETE /api/v1/billing/schedule",
		"POST /api/v1/auth/token",
		"POST /api/v1/auth/revoke",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}

func TestNew_OpenWithoutSecret(t *testing.T) {
	engine, sched := newTestEngine(t, nil)

	w := serve(engine, http.MethodGet, "/api/v1/invoices", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(logger.HeaderRequestID))

	w = serve(engine, http.MethodPost, "/api/v1/billing/run", "", "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, 1, sched.runs)
}

func TestNew_AdminFlow(t *testing.T) {
	engine, _ := newTestEngine(t, auth.NewTokenService("admin-secret", "", time.Minute))

	w := serve(engine, http.MethodGet, "/api/v1/billing/status", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(engine, http.MethodPost, "/api/v1/auth/token", `{"secret":"admin-secret"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data auth.Token `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	token := resp.Data.AccessToken

	w = serve(engine, http.MethodGet, "/api/v1/billing/status", "", token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(engine, http.MethodGet, "/api/v1/invoices/4", "", token)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_INVOICE_NOT_FOUND")

	w = serve(engine, http.MethodPost, "/api/v1/auth/revoke", "", token)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = serve(engine, http.MethodGet, "/api/v1/billing/status", "", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_TOKEN_REVOKED")
}

func TestNew_TokenEndpointIsRateLimited(t *testing.T) {
	engine, _ := newTestEngine(t, auth.NewTokenService("admin-secret", "", time.Minute))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, serve(engine, http.MethodPost, "/api/v1/auth/token", `{"secret":"wrong"}`, "").Code)
	}
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized, http.StatusTooManyRequests}, codes)
}

func TestNew_Fallbacks(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	w := serve(engine, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_NOT_FOUND")

	w = serve(engine, http.MethodPut, "/api/v1/billing/run", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = serve(engine, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
