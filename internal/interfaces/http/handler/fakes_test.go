package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"

	appbilling "github.com/antaeus/billing/internal/application/billing"
	"github.com/antaeus/billing/internal/domain/billing"
	"github.com/antaeus/billing/internal/domain/shared/valueobject"
	"github.com/antaeus/billing/internal/infrastructure/persistence"
	"github.com/antaeus/billing/internal/infrastructure/scheduler"
	"github.com/antaeus/billing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakeInvoices struct {
	invoices map[int64]billing.Invoice
	err      error
}

func newFakeInvoices(invoices ...billing.Invoice) *fakeInvoices {
	f := &fakeInvoices{invoices: make(map[int64]billing.Invoice)}
	for _, inv := range invoices {
		f.invoices[inv.ID] = inv
	}
	return f
}

func (f *fakeInvoices) sorted(keep func(billing.Invoice) bool) []billing.Invoice {
	out := make([]billing.Invoice, 0, len(f.invoices))
	for _, inv := range f.invoices {
		if keep(inv) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeInvoices) FetchAll(context.Context) ([]billing.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sorted(func(billing.Invoice) bool { return true }), nil
}

func (f *fakeInvoices) FetchByStatus(_ context.Context, status billing.InvoiceStatus) ([]billing.Invoice, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sorted(func(inv billing.Invoice) bool { return inv.Status == status }), nil
}

func (f *fakeInvoices) Fetch(_ context.Context, id int64) (billing.Invoice, error) {
	inv, ok := f.invoices[id]
	if !ok {
		return billing.Invoice{}, billing.ErrInvoiceNotFound
	}
	return inv, nil
}

type fakeCharger struct {
	calls   []int64
	result  appbilling.Result
	attempt int
	err     error
}

func (f *fakeCharger) ChargeWithOutcome(_ context.Context, inv billing.Invoice) (billing.Invoice, appbilling.ChargeOutcome) {
	f.calls = append(f.calls, inv.ID)
	if f.result == appbilling.ResultPaid {
		inv.Status = billing.InvoiceStatusPaid
	}
	return inv, appbilling.ChargeOutcome{Result: f.result, Attempts: f.attempt, Err: f.err}
}

type fakeEvents struct {
	records []persistence.EventRecord
	err     error
	asked   string
}

func (f *fakeEvents) FindByAggregate(_ context.Context, aggregateType string, _ int64) ([]persistence.EventRecord, error) {
	f.asked = aggregateType
	return f.records, f.err
}

type fakeCustomers struct {
	customers []billing.Customer
	err       error
}

func (f *fakeCustomers) FetchAll(context.Context) ([]billing.Customer, error) {
	return f.customers, f.err
}

func (f *fakeCustomers) Fetch(_ context.Context, id int64) (billing.Customer, error) {
	for _, c := range f.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return billing.Customer{}, billing.ErrCustomerNotFound
}

type fakeScheduler struct {
	status     scheduler.Status
	startErr   error
	nowCalls   int
	stopCalled bool
}

func (f *fakeScheduler) StartScheduled(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.status.State = scheduler.StateScheduled.String()
	f.status.Jobs = append(f.status.Jobs, scheduler.RecurringJobName)
	return nil
}

func (f *fakeScheduler) StartNow(context.Context) (string, error) {
	f.nowCalls++
	return "2026-10-01T00:00:00Z-1_invoice_payment_job", nil
}

func (f *fakeScheduler) Stop(context.Context) error {
	f.stopCalled = true
	f.status.State = scheduler.StateStopped.String()
	f.status.Jobs = nil
	return nil
}

func (f *fakeScheduler) Status() scheduler.Status { return f.status }

type fakeBatches struct {
	running int
	last    *appbilling.BatchReport
}

func (f *fakeBatches) Running() int { return f.running }

func (f *fakeBatches) LastReport() (appbilling.BatchReport, bool) {
	if f.last == nil {
		return appbilling.BatchReport{}, false
	}
	return *f.last, true
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

var errBoom = errors.New("boom")

func invoice(id int64, status billing.InvoiceStatus) billing.Invoice {
	return billing.Invoice{
		ID:         id,
		CustomerID: 1,
		Amount:     valueobject.MustNewMoney("42.10", valueobject.DKK),
		Status:     status,
	}
}

func perform(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decode unmarshals the envelope, decoding data into out when given
func decode(t *testing.T, w *httptest.ResponseRecorder, out any) dto.Response {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *dto.ErrorInfo  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw), w.Body.String())
	if out != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return dto.Response{Success: raw.Success, Error: raw.Error}
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	return gin.New()
}
