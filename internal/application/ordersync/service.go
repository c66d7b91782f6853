package ordersync

import (
	"context"

	"go.uber.org/zap"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
)

// InvoiceCreator creates invoices at most once per idempotency key
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, data invoicing.InvoiceSubmission, cred invoicing.Credential, idempotencyKey string) (*invoicing.InvoiceResult, error)
}

// Service turns storefront order webhooks into invoices
type Service struct {
	mapper   *Mapper
	invoices InvoiceCreator
	logger   *zap.Logger
}

// NewService creates a Service
func NewService(mapper *Mapper, invoices InvoiceCreator, logger *zap.Logger) *Service {
	if mapper == nil {
		mapper = NewMapper()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{mapper: mapper, invoices: invoices, logger: logger.Named("ordersync")}
}

// HandleOrder invoices a billable order. Orders in any other status are
// acknowledged without an invoice. Redelivered webhooks map to the same
// idempotency key and return the original invoice.
func (s *Service) HandleOrder(ctx context.Context, order *OrderWebhook, cred invoicing.Credential) (*SyncResult, error) {
	if err := s.mapper.Validate(order); err != nil {
		return nil, err
	}

	result := &SyncResult{OrderID: order.OrderID, StoreID: order.StoreID, Status: order.Status}
	if !order.Status.IsBillable() {
		s.logger.Info("order skipped",
			zap.String("order_id", order.OrderID),
			zap.String("store_id", order.StoreID),
			zap.String("status", string(order.Status)),
		)
		return result, nil
	}

	sub, key, err := s.mapper.ToSubmission(order)
	if err != nil {
		return nil, err
	}
	result.IdempotencyKey = key

	invoice, err := s.invoices.CreateInvoice(ctx, sub, cred, key)
	if err != nil {
		s.logger.Error("order invoicing failed",
			zap.String("order_id", order.OrderID),
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
		return nil, err
	}

	result.Invoiced = true
	result.InvoiceID = invoice.ID
	result.InvoiceName = invoice.Name
	result.Replayed = invoice.Replayed
	s.logger.Info("order invoiced",
		zap.String("order_id", order.OrderID),
		zap.String("invoice_id", invoice.ID),
		zap.Bool("replayed", invoice.Replayed),
	)
	return result, nil
}
