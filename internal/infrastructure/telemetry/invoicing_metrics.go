package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// InvoicingMetrics records the relay business metrics
type InvoicingMetrics struct {
	invoicesCreated    *Counter
	invoiceAmount      *Histogram
	submissionAttempts *Counter
	idempotentReplays  *Counter
	tokenRefreshes     *Counter
	catalogFetches     *Counter
	creditNotes        *Counter
	providerDuration   *Histogram
}

// NewInvoicingMetrics registers the relay instruments on meter
func NewInvoicingMetrics(meter metric.Meter) (*InvoicingMetrics, error) {
	var errs []error
	counter := func(name, description, unit string) *Counter {
		c, err := NewCounter(meter, name, description, unit)
		errs = append(errs, err)
		return c
	}
	histogram := func(opts HistogramOpts) *Histogram {
		h, err := NewHistogram(meter, opts)
		errs = append(errs, err)
		return h
	}

	m := &InvoicingMetrics{
		invoicesCreated:    counter("relay_invoices_created_total", "Invoices accepted by the provider", "{invoice}"),
		submissionAttempts: counter("relay_submission_attempts_total", "Invoice submission attempts by payload variant and outcome", "{attempt}"),
		idempotentReplays:  counter("relay_idempotent_replays_total", "Invoice requests served from the idempotency cache", "{request}"),
		tokenRefreshes:     counter("relay_token_refreshes_total", "Provider access token fetches", "{token}"),
		catalogFetches:     counter("relay_catalog_fetches_total", "Catalog lookups by kind and cache result", "{lookup}"),
		creditNotes:        counter("relay_credit_notes_total", "Credit note issuance results", "{credit_note}"),
		invoiceAmount: histogram(HistogramOpts{
			Name:        "relay_invoice_amount",
			Description: "Invoice totals",
			Unit:        "1",
			Boundaries:  AmountBuckets,
		}),
		providerDuration: histogram(HistogramOpts{
			Name:        "relay_provider_request_duration_seconds",
			Description: "Provider request duration",
			Unit:        "s",
			Boundaries:  ProviderDurationBuckets,
		}),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *InvoicingMetrics) RecordInvoiceCreated(ctx context.Context, variant string, total float64) {
	m.invoicesCreated.Inc(ctx, AttrVariant.String(variant))
	m.invoiceAmount.Record(ctx, total, AttrVariant.String(variant))
}

func (m *InvoicingMetrics) RecordSubmissionAttempt(ctx context.Context, variant, outcome string) {
	m.submissionAttempts.Inc(ctx, AttrVariant.String(variant), AttrOutcome.String(outcome))
}

func (m *InvoicingMetrics) RecordIdempotentReplay(ctx context.Context) {
	m.idempotentReplays.Inc(ctx)
}

func (m *InvoicingMetrics) RecordTokenRefresh(ctx context.Context, reason string) {
	m.tokenRefreshes.Inc(ctx, AttrReason.String(reason))
}

func (m *InvoicingMetrics) RecordCatalogFetch(ctx context.Context, kind string, cached bool) {
	m.catalogFetches.Inc(ctx, AttrCatalog.String(kind), AttrCached.Bool(cached))
}

func (m *InvoicingMetrics) RecordCreditNote(ctx context.Context, success bool) {
	result := "success"
	if !success {
		result = "failed"
	}
	m.creditNotes.Inc(ctx, AttrResult.String(result))
}

// RecordProviderRequest records the duration of one provider call
func (m *InvoicingMetrics) RecordProviderRequest(ctx context.Context, operation string, status int, d time.Duration) {
	m.providerDuration.RecordDuration(ctx, d, AttrOperation.String(operation), AttrStatus.Int(status))
}
