package invoicing

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/erp/invoice-relay/internal/infrastructure/cache"
	"github.com/erp/invoice-relay/internal/infrastructure/telemetry"
)

// Service is the entry point of the invoicing engine. It owns the
// process-lifetime caches and wires the collaborators together.
type Service struct {
	cfg        Config
	tokens     *cache.TokenCache
	store      *cache.IdempotencyStore
	catalogs   *CatalogCache
	auth       *AuthResolver
	submitter  *InvoiceSubmitter
	creditNote *CreditNoteIssuer
	metrics    Metrics
	logger     *zap.Logger
}

// Option configures a Service
type Option func(*serviceOptions)

type serviceOptions struct {
	clock   cache.Clock
	metrics Metrics
	logger  *zap.Logger
}

// WithClock overrides the clock used by every cache
func WithClock(clock cache.Clock) Option {
	return func(o *serviceOptions) { o.clock = clock }
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) Option {
	return func(o *serviceOptions) { o.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *serviceOptions) { o.logger = l }
}

// NewService creates a Service backed by provider
func NewService(provider invoicing.InvoicingProvider, cfg Config, opts ...Option) *Service {
	o := serviceOptions{metrics: NoopMetrics(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	cfg = cfg.withDefaults()
	logger := o.logger.Named("invoicing")

	tokens := cache.NewTokenCache(cfg.TokenTTL, cfg.TokenSafetyMargin, o.clock)
	store := cache.NewIdempotencyStore(cfg.IdempotencyTTL, o.clock)
	catalogs := NewCatalogCache(provider, cfg, o.clock, o.metrics, logger)
	auth := NewAuthResolver(provider, tokens, cfg, o.metrics, logger)

	return &Service{
		cfg:        cfg,
		tokens:     tokens,
		store:      store,
		catalogs:   catalogs,
		auth:       auth,
		submitter:  NewInvoiceSubmitter(provider, auth, catalogs, store, cfg, o.clock, o.metrics, logger),
		creditNote: NewCreditNoteIssuer(provider, auth, cfg, o.clock, o.metrics, logger),
		metrics:    o.metrics,
		logger:     logger,
	}
}

// Close releases the background cache sweepers
func (s *Service) Close() error {
	return errors.Join(s.store.Close(), s.catalogs.Close())
}

// CreateInvoice creates an invoice at most once per idempotency key
func (s *Service) CreateInvoice(ctx context.Context, data invoicing.InvoiceSubmission, cred invoicing.Credential, idempotencyKey string) (*invoicing.InvoiceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerIdentification, data.Customer.Identification,
		telemetry.SpanAttrItemsCount, len(data.Items),
	)

	result, err := s.submitter.CreateInvoice(ctx, data, cred, idempotencyKey)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("invoice creation failed",
			zap.String("identification", data.Customer.Identification),
			zap.Error(err),
		)
		return nil, err
	}

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, result.ID,
		telemetry.SpanAttrVariant, result.Variant,
		telemetry.SpanAttrReplayed, result.Replayed,
	)
	telemetry.SetOK(span)
	if !result.Replayed {
		s.metrics.RecordInvoiceCreated(ctx, result.Variant, result.Total.InexactFloat64())
	}
	return result, nil
}

// CancelInvoice issues a credit note for invoice <serie>-<number>
func (s *Service) CancelInvoice(ctx context.Context, serie string, number int64, cred invoicing.Credential, reason string) (*invoicing.CreditNoteResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "cancel")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceName, InvoiceName(serie, number))

	result, err := s.creditNote.Cancel(ctx, serie, number, cred, reason)
	if err != nil {
		telemetry.RecordError(span, err)
		s.logger.Error("invoice cancellation failed",
			zap.String("serie", serie),
			zap.Int64("number", number),
			zap.Error(err),
		)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrCreditNoteID, result.ID)
	telemetry.SetOK(span)
	return result, nil
}

// GetPaymentTypes returns the payment types usable with documentType.
// An empty documentType uses the configured invoice document type.
func (s *Service) GetPaymentTypes(ctx context.Context, cred invoicing.Credential, documentType string) ([]invoicing.PaymentMethod, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "payment_types")
	defer span.End()

	if documentType == "" {
		documentType = s.cfg.PaymentDocumentType
	}
	methods, err := WithAuthRetry(ctx, s.auth, cred, func(ctx context.Context, h invoicing.AuthHeaders) ([]invoicing.PaymentMethod, error) {
		return s.catalogs.PaymentTypes(ctx, h, documentType)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetOK(span)
	return methods, nil
}

// GetSellers returns the active users that can be set as invoice seller,
// seller-flagged users first
func (s *Service) GetSellers(ctx context.Context, cred invoicing.Credential) ([]invoicing.User, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog", "sellers")
	defer span.End()

	users, err := WithAuthRetry(ctx, s.auth, cred, func(ctx context.Context, h invoicing.AuthHeaders) ([]invoicing.User, error) {
		return s.catalogs.Users(ctx, h)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	sellers := make([]invoicing.User, 0, len(users))
	for _, u := range users {
		if u.Active && u.Seller {
			sellers = append(sellers, u)
		}
	}
	for _, u := range users {
		if u.Active && !u.Seller {
			sellers = append(sellers, u)
		}
	}
	telemetry.SetOK(span)
	return sellers, nil
}
