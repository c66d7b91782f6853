package invoicing

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/erp/invoice-relay/internal/infrastructure/cache"
)

// CreditNoteIssuer cancels invoices by issuing a credit note against them
type CreditNoteIssuer struct {
	provider invoicing.InvoicingProvider
	auth     HeaderSource
	cfg      Config
	clock    cache.Clock
	metrics  Metrics
	logger   *zap.Logger
}

// NewCreditNoteIssuer creates a CreditNoteIssuer
func NewCreditNoteIssuer(provider invoicing.InvoicingProvider, auth HeaderSource, cfg Config, clock cache.Clock, metrics Metrics, logger *zap.Logger) *CreditNoteIssuer {
	if metrics == nil {
		metrics = NoopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreditNoteIssuer{
		provider: provider,
		auth:     auth,
		cfg:      cfg.withDefaults(),
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
	}
}

// InvoiceName returns the provider name of invoice number in serie
func InvoiceName(serie string, number int64) string {
	return strings.TrimSpace(serie) + "-" + strconv.FormatInt(number, 10)
}

// Cancel issues a credit note for invoice <serie>-<number>. The credit note
// is submitted once; there is no payload variant retry.
func (i *CreditNoteIssuer) Cancel(ctx context.Context, serie string, number int64, cred invoicing.Credential, reason string) (*invoicing.CreditNoteResult, error) {
	if strings.TrimSpace(serie) == "" {
		return nil, invoicing.NewValidationError("serie", "invoice serie is required")
	}
	if number <= 0 {
		return nil, invoicing.NewValidationError("number", "invoice number must be positive")
	}
	name := InvoiceName(serie, number)

	result, err := WithAuthRetry(ctx, i.auth, cred, func(ctx context.Context, h invoicing.AuthHeaders) (*invoicing.CreditNoteResult, error) {
		invoice, err := i.provider.FindInvoiceByName(ctx, h, name)
		if err != nil {
			return nil, err
		}
		if invoice == nil {
			return nil, &invoicing.NotFoundError{Resource: "invoice", Key: name}
		}

		note, err := i.provider.CreateCreditNote(ctx, h, i.payload(invoice, reason))
		if err != nil {
			return nil, err
		}
		note.InvoiceID = invoice.ID
		return note, nil
	})
	i.metrics.RecordCreditNote(ctx, err == nil)
	if err != nil {
		return nil, err
	}

	i.logger.Info("credit note issued",
		zap.String("invoice", name),
		zap.String("credit_note_id", result.ID),
		zap.String("credit_note", result.Name),
	)
	return result, nil
}

func (i *CreditNoteIssuer) payload(invoice *invoicing.InvoiceRecord, reason string) map[string]any {
	observations := strings.TrimSpace(reason)
	if observations == "" {
		observations = i.cfg.CreditNoteObservation
	}

	documentID := i.cfg.CreditNoteDocumentID
	payload := map[string]any{
		"document": map[string]any{"id": documentID},
		"date":     i.clock.Now().Format(invoicing.DateLayout),
		"invoice":  invoice.ID,
		"reason":   i.cfg.CreditNoteReason,
		"customer": map[string]any{
			"identification": invoice.Customer.Identification,
			"branch_office":  invoice.Customer.BranchOffice,
		},
		"items":        copyEntries(invoice.Items),
		"observations": observations,
	}
	if len(invoice.Payments) > 0 {
		payload["payments"] = copyEntries(invoice.Payments)
	}
	return payload
}

// copyEntries shallow-copies provider line entries
func copyEntries(entries []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		c := make(map[string]any, len(e))
		for k, v := range e {
			c[k] = v
		}
		out = append(out, c)
	}
	return out
}
