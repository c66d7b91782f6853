package invoicing

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/erp/invoice-relay/internal/infrastructure/cache"
)

// InvoiceSubmitter creates invoices in the provider at most once per
// idempotency key
type InvoiceSubmitter struct {
	provider invoicing.InvoicingProvider
	auth     HeaderSource
	catalogs *CatalogCache
	store    *cache.IdempotencyStore
	variants []PayloadVariant
	cfg      Config
	clock    cache.Clock
	group    singleflight.Group
	metrics  Metrics
	logger   *zap.Logger
}

// NewInvoiceSubmitter creates an InvoiceSubmitter
func NewInvoiceSubmitter(
	provider invoicing.InvoicingProvider,
	auth HeaderSource,
	catalogs *CatalogCache,
	store *cache.IdempotencyStore,
	cfg Config,
	clock cache.Clock,
	metrics Metrics,
	logger *zap.Logger,
) *InvoiceSubmitter {
	if metrics == nil {
		metrics = NoopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceSubmitter{
		provider: provider,
		auth:     auth,
		catalogs: catalogs,
		store:    store,
		variants: DefaultVariants,
		cfg:      cfg.withDefaults(),
		clock:    clock,
		metrics:  metrics,
		logger:   logger,
	}
}

// CreateInvoice submits data unless idempotencyKey already produced an
// invoice, in which case the cached result is returned without any provider
// call. Invalid or missing keys are replaced by a generated one. Concurrent
// calls with the same key share a single submission.
func (s *InvoiceSubmitter) CreateInvoice(ctx context.Context, data invoicing.InvoiceSubmission, cred invoicing.Credential, idempotencyKey string) (*invoicing.InvoiceResult, error) {
	key, ok := cache.NormalizeIdempotencyKey(idempotencyKey)
	if !ok {
		if idempotencyKey != "" {
			s.logger.Warn("invalid idempotency key replaced", zap.String("idempotency_key", idempotencyKey))
		}
		key = cache.GenerateIdempotencyKey()
	}

	if cached, ok := s.replay(ctx, key); ok {
		return cached, nil
	}

	if err := data.Validate(); err != nil {
		return nil, err
	}

	// Coalesced callers share the submission; it is not cut short by the
	// caller that started it going away.
	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (any, error) {
		ctx := flightCtx
		if cached, ok := s.replay(ctx, key); ok {
			return cached, nil
		}

		result, err := WithAuthRetry(ctx, s.auth, cred, func(ctx context.Context, h invoicing.AuthHeaders) (*invoicing.InvoiceResult, error) {
			return s.submit(ctx, h, data, key)
		})
		if err != nil {
			return nil, err
		}
		s.store.Set(key, *result)
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	result := *v.(*invoicing.InvoiceResult)
	return &result, nil
}

func (s *InvoiceSubmitter) replay(ctx context.Context, key string) (*invoicing.InvoiceResult, bool) {
	cached, ok := s.store.Get(key)
	if !ok {
		return nil, false
	}
	s.metrics.RecordIdempotentReplay(ctx)
	s.logger.Info("idempotent replay",
		zap.String("idempotency_key", key),
		zap.String("invoice_id", cached.ID),
	)
	cached.Replayed = true
	return cached, true
}

// submit runs one full submission with fixed auth headers
func (s *InvoiceSubmitter) submit(ctx context.Context, h invoicing.AuthHeaders, data invoicing.InvoiceSubmission, key string) (*invoicing.InvoiceResult, error) {
	if err := s.ensureCustomer(ctx, h, data.Customer); err != nil {
		return nil, err
	}

	sellerID := data.SellerID
	if sellerID <= 0 {
		var err error
		if sellerID, err = s.catalogs.ResolveSeller(ctx, h, data.SellerEmail); err != nil {
			return nil, err
		}
	}

	items, totals, err := priceItems(ctx, s.catalogs, h, data.Items, s.cfg.DefaultTaxID)
	if err != nil {
		return nil, err
	}

	date := data.DateString(s.clock.Now())
	payments, err := s.payments(ctx, h, data.Payments, totals, date)
	if err != nil {
		return nil, err
	}

	documentID := data.DocumentTypeID
	if documentID <= 0 {
		documentID = s.cfg.InvoiceDocumentID
	}

	base := basePayload{
		documentID:   documentID,
		date:         date,
		customer:     data.Customer,
		items:        items,
		payments:     payments,
		observations: data.Observations,
	}

	result, err := s.submitVariants(ctx, h, base, sellerID, key)
	if err != nil {
		return nil, err
	}

	result.SellerID = sellerID
	result.IdempotencyKey = key
	if result.Total.IsZero() {
		result.Total = totals.Total
	}
	if result.Date == "" {
		result.Date = date
	}
	return result, nil
}

// ensureCustomer creates the customer when a full profile is supplied and the
// provider does not know it yet. A duplicate conflict counts as success.
func (s *InvoiceSubmitter) ensureCustomer(ctx context.Context, h invoicing.AuthHeaders, customer invoicing.Customer) error {
	if !customer.HasProfile() {
		return nil
	}

	found, err := s.provider.FindCustomer(ctx, h, customer.Identification)
	switch {
	case invoicing.IsUnauthorized(err):
		return err
	case err != nil:
		s.logger.Warn("customer lookup failed, attempting creation",
			zap.String("identification", customer.Identification),
			zap.Error(err),
		)
	case found:
		return nil
	}

	err = s.provider.CreateCustomer(ctx, h, customer)
	switch {
	case err == nil:
		s.logger.Info("customer created", zap.String("identification", customer.Identification))
		return nil
	case invoicing.IsUnauthorized(err):
		return err
	case isCustomerConflict(err):
		s.logger.Info("customer already exists", zap.String("identification", customer.Identification))
		return nil
	default:
		return &invoicing.CustomerCreateError{Identification: customer.Identification, Err: err}
	}
}

// payments returns the caller payments, or a single payment of the total on
// the resolved payment method. Payments without id get the resolved method.
func (s *InvoiceSubmitter) payments(ctx context.Context, h invoicing.AuthHeaders, given []invoicing.Payment, totals invoicing.Totals, date string) ([]invoicing.Payment, error) {
	needsMethod := len(given) == 0
	for _, p := range given {
		if p.ID <= 0 {
			needsMethod = true
		}
	}
	if !needsMethod {
		return given, nil
	}

	methodID, err := s.catalogs.ResolvePaymentMethod(ctx, h, s.cfg.PaymentDocumentType)
	if err != nil {
		return nil, err
	}

	if len(given) == 0 {
		return []invoicing.Payment{{ID: methodID, Value: totals.Total, DueDate: date}}, nil
	}
	out := make([]invoicing.Payment, len(given))
	for i, p := range given {
		if p.ID <= 0 {
			p.ID = methodID
		}
		if p.DueDate == "" {
			p.DueDate = date
		}
		out[i] = p
	}
	return out, nil
}

// submitVariants walks the seller encodings in order. Each variant may be
// retried once without the idempotency header or once without item taxes;
// a seller parameter error moves on to the next variant. Attempts are
// strictly sequential.
func (s *InvoiceSubmitter) submitVariants(ctx context.Context, h invoicing.AuthHeaders, base basePayload, sellerID int64, key string) (*invoicing.InvoiceResult, error) {
	var lastErr error

	for _, variant := range s.variants {
		payload := variant.encode(base, sellerID)
		sendKey := key
		retried := false

		for {
			result, err := s.provider.CreateInvoice(ctx, h, payload, sendKey)
			if err == nil {
				s.metrics.RecordSubmissionAttempt(ctx, variant.Name, OutcomeSuccess)
				s.logger.Info("invoice accepted",
					zap.String("variant", variant.Name),
					zap.String("invoice_id", result.ID),
					zap.String("name", result.Name),
				)
				result.Variant = variant.Name
				return result, nil
			}

			var apiErr *invoicing.ExternalAPIError
			if invoicing.IsUnauthorized(err) || !errors.As(err, &apiErr) {
				s.metrics.RecordSubmissionAttempt(ctx, variant.Name, OutcomeFailed)
				return nil, err
			}
			annotated := annotate(apiErr, variant, payload)

			kind := classifySubmission(apiErr)
			if retried {
				s.metrics.RecordSubmissionAttempt(ctx, variant.Name, OutcomeFailed)
				return nil, annotated
			}

			switch kind {
			case failureIdempotencyKey:
				s.metrics.RecordSubmissionAttempt(ctx, variant.Name, OutcomeIdempotencyKey)
				s.logger.Warn("idempotency key rejected, retrying without it",
					zap.String("variant", variant.Name),
					zap.String("code", apiErr.Code()),
				)
				sendKey = ""
				retried = true
				continue
			case failureInvalidTax:
				s.metrics.RecordSubmissionAttempt(ctx, variant.Name, OutcomeInvalidTax)
				s.logger.Warn("tax reference rejected, retrying without taxes",
					zap.String("variant", variant.Name),
					zap.String("code", apiErr.Code()),
				)
				stripTaxes(payload)
				retried = true
				continue
			case failureSellerParam:
				s.metrics.RecordSubmissionAttempt(ctx, variant.Name, OutcomeSellerParam)
				s.logger.Info("seller encoding rejected, trying next variant",
					zap.String("variant", variant.Name),
					zap.String("code", apiErr.Code()),
				)
				lastErr = annotated
			default:
				s.metrics.RecordSubmissionAttempt(ctx, variant.Name, OutcomeFailed)
				return nil, annotated
			}
			break
		}
	}

	if lastErr == nil {
		lastErr = &invoicing.ExternalAPIError{Operation: "create_invoice", Body: "no payload variants configured"}
	}
	return nil, lastErr
}

// annotate copies apiErr with the request shape that produced it
func annotate(apiErr *invoicing.ExternalAPIError, variant PayloadVariant, payload map[string]any) *invoicing.ExternalAPIError {
	annotated := *apiErr
	annotated.Variant = variant.Name
	annotated.SellerShape = variant.SellerShape
	annotated.TaxShape = taxShape(payload)
	return &annotated
}
