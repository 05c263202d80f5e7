package telemetry

import (
	"context"
	"maps"
	"runtime/pprof"
	"slices"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys.
const (
	ProfilingLabelOperation = "operation"
	ProfilingLabelCurrency  = "currency"
	ProfilingLabelTrigger   = "trigger"
	ProfilingLabelRoute     = "route"
	ProfilingLabelMethod    = "method"
)

// Billing operations used as the operation label.
const (
	OperationCharge       = "charge"
	OperationPendingBatch = "pending_batch"
)

// MaxLabelValueLength caps label values.
const MaxLabelValueLength = 128

// HighCardinalityLabels are dropped from profiling labels; per-entity ids
// would create one series per invoice. Read-only.
var HighCardinalityLabels = map[string]bool{
	"invoice_id":  true,
	"customer_id": true,
	"batch_id":    true,
	"request_id":  true,
	"trace_id":    true,
	"span_id":     true,
}

// WithProfilingLabels runs fn with labels attached to its goroutine, so CPU
// samples taken inside fn can be filtered by them in Pyroscope.
// The map is copied; the caller may reuse it.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(maps.Clone(labels))
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// WithPprofLabels is WithProfilingLabels on the plain runtime/pprof API.
func WithPprofLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(maps.Clone(labels))
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pprof.Do(ctx, pprof.Labels(pairs...), fn)
}

// sanitizeLabels returns sorted key/value pairs with empty, high-cardinality
// and non snake_case-able keys removed and long values truncated.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range slices.Sorted(maps.Keys(labels)) {
		value := labels[key]
		if key == "" || value == "" || HighCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		sanitized := sanitizeLabelKey(key)
		if sanitized == "" || HighCardinalityLabels[sanitized] {
			continue
		}
		pairs = append(pairs, sanitized, value)
	}
	return pairs
}

// sanitizeLabelKey lowercases key, turns spaces and dashes into underscores
// and drops anything else that is not [a-z0-9_].
func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)

	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// BillingLabels labels a billing operation, optionally with the invoice currency.
func BillingLabels(operation, currency string) map[string]string {
	labels := map[string]string{ProfilingLabelOperation: operation}
	if currency != "" {
		labels[ProfilingLabelCurrency] = currency
	}
	return labels
}

// BatchLabels labels a pending-invoice run by what started it (cron, api, startup).
func BatchLabels(trigger string) map[string]string {
	labels := map[string]string{ProfilingLabelOperation: OperationPendingBatch}
	if trigger != "" {
		labels[ProfilingLabelTrigger] = trigger
	}
	return labels
}

// HTTPRequestLabels labels an admin API request.
func HTTPRequestLabels(route, method string) map[string]string {
	labels := make(map[string]string, 2)
	if route != "" {
		labels[ProfilingLabelRoute] = route
	}
	if method != "" {
		labels[ProfilingLabelMethod] = method
	}
	return labels
}
