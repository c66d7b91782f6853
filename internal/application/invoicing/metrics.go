package invoicing

import "context"

// Metrics records invoicing business metrics
type Metrics interface {
	RecordInvoiceCreated(ctx context.Context, variant string, total float64)
	RecordSubmissionAttempt(ctx context.Context, variant, outcome string)
	RecordIdempotentReplay(ctx context.Context)
	RecordTokenRefresh(ctx context.Context, reason string)
	RecordCatalogFetch(ctx context.Context, kind string, cached bool)
	RecordCreditNote(ctx context.Context, success bool)
}

// Submission attempt outcomes
const (
	OutcomeSuccess        = "success"
	OutcomeIdempotencyKey = "idempotency_key_rejected"
	OutcomeInvalidTax     = "invalid_tax"
	OutcomeSellerParam    = "seller_parameter"
	OutcomeFailed         = "failed"
)

type noopMetrics struct{}

func (noopMetrics) RecordInvoiceCreated(context.Context, string, float64)   {}
func (noopMetrics) RecordSubmissionAttempt(context.Context, string, string) {}
func (noopMetrics) RecordIdempotentReplay(context.Context)                  {}
func (noopMetrics) RecordTokenRefresh(context.Context, string)              {}
func (noopMetrics) RecordCatalogFetch(context.Context, string, bool)        {}
func (noopMetrics) RecordCreditNote(context.Context, bool)                  {}

// NoopMetrics returns a Metrics that discards everything
func NoopMetrics() Metrics { return noopMetrics{} }
