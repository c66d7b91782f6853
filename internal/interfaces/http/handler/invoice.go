package handler

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/erp/invoice-relay/internal/infrastructure/logger"
	"github.com/erp/invoice-relay/internal/interfaces/http/dto"
)

const (
	// HeaderIdempotencyKey is the caller supplied idempotency key
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay is set to "true" on responses served from the
	// idempotency cache
	HeaderIdempotentReplay = "Idempotent-Replayed"
)

// InvoiceService is the part of the invoicing service used by the HTTP layer
type InvoiceService interface {
	CreateInvoice(ctx context.Context, data invoicing.InvoiceSubmission, cred invoicing.Credential, idempotencyKey string) (*invoicing.InvoiceResult, error)
	CancelInvoice(ctx context.Context, serie string, number int64, cred invoicing.Credential, reason string) (*invoicing.CreditNoteResult, error)
	GetPaymentTypes(ctx context.Context, cred invoicing.Credential, documentType string) ([]invoicing.PaymentMethod, error)
	GetSellers(ctx context.Context, cred invoicing.Credential) ([]invoicing.User, error)
}

// InvoiceHandler serves the invoice endpoints
type InvoiceHandler struct {
	BaseHandler
	service InvoiceService
}

// NewInvoiceHandler creates an InvoiceHandler
func NewInvoiceHandler(base BaseHandler, service InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{BaseHandler: base, service: service}
}

// Create handles POST /api/v1/invoices. The Idempotency-Key header is
// optional; the key actually used is returned in the body and echoed in the
// Idempotency-Key response header.
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req dto.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	sub, err := req.ToSubmission()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	cred, ok := h.Credential(c)
	if !ok {
		return
	}

	key := c.GetHeader(HeaderIdempotencyKey)
	ctx := c.Request.Context()
	if key != "" {
		ctx = logger.WithIdempotencyKey(ctx, key)
	}

	result, err := h.service.CreateInvoice(ctx, sub, cred, key)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header(HeaderIdempotencyKey, result.IdempotencyKey)
	c.Header(HeaderIdempotentReplay, strconv.FormatBool(result.Replayed))
	logger.L(ctx).Info("invoice created",
		zap.String("invoice_id", result.ID),
		zap.String("invoice_name", result.Name),
		zap.Bool("replayed", result.Replayed),
	)
	h.Created(c, result)
}

// Cancel handles POST /api/v1/invoices/:serie/:number/cancel. The body is
// optional and may carry a cancellation reason.
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	var path dto.InvoicePath
	if err := c.ShouldBindUri(&path); err != nil {
		h.BindError(c, err)
		return
	}
	var req dto.CancelInvoiceRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			h.BindError(c, err)
			return
		}
	}
	cred, ok := h.Credential(c)
	if !ok {
		return
	}

	result, err := h.service.CancelInvoice(c.Request.Context(), path.Serie, path.Number, cred, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, result)
}
