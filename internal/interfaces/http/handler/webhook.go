package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/invoice-relay/internal/application/ordersync"
	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/erp/invoice-relay/internal/infrastructure/logger"
	"github.com/erp/invoice-relay/internal/interfaces/http/middleware"
)

// OrderSyncer invoices storefront orders
type OrderSyncer interface {
	HandleOrder(ctx context.Context, order *ordersync.OrderWebhook, cred invoicing.Credential) (*ordersync.SyncResult, error)
}

// DeliveryTracker remembers processed webhook deliveries
type DeliveryTracker interface {
	MarkProcessed(ctx context.Context, id string) (bool, error)
	Forget(ctx context.Context, id string)
}

// WebhookHandler serves POST /api/v1/webhooks/orders. Webhooks always use
// the configured credential.
type WebhookHandler struct {
	BaseHandler
	orders     OrderSyncer
	deliveries DeliveryTracker
}

// NewWebhookHandler creates a WebhookHandler. deliveries may be nil.
func NewWebhookHandler(cred invoicing.Credential, orders OrderSyncer, deliveries DeliveryTracker) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: NewBaseHandler(cred),
		orders:      orders,
		deliveries:  deliveries,
	}
}

// Orders handles a storefront order notification. A delivery id seen before
// is acknowledged with 200 and no work; failed deliveries are forgotten so
// the storefront retry is processed.
func (h *WebhookHandler) Orders(c *gin.Context) {
	var order ordersync.OrderWebhook
	if err := c.ShouldBindJSON(&order); err != nil {
		h.BindError(c, err)
		return
	}
	if h.defaultCredential.IsZero() {
		h.Error(c, http.StatusServiceUnavailable, "ERR_WEBHOOK_NOT_CONFIGURED", "no provider credential is configured for webhooks")
		return
	}

	ctx := c.Request.Context()
	delivery := c.GetHeader(middleware.HeaderWebhookDelivery)
	if delivery != "" && h.deliveries != nil {
		isNew, err := h.deliveries.MarkProcessed(ctx, delivery)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		if !isNew {
			logger.L(ctx).Info("duplicate webhook delivery",
				zap.String("delivery_id", delivery),
				zap.String("order_id", order.OrderID),
			)
			c.JSON(http.StatusOK, gin.H{"success": true, "duplicate": true})
			return
		}
	}

	result, err := h.orders.HandleOrder(ctx, &order, h.defaultCredential)
	if err != nil {
		if delivery != "" && h.deliveries != nil {
			h.deliveries.Forget(ctx, delivery)
		}
		h.HandleError(c, err)
		return
	}

	if result.Invoiced && !result.Replayed {
		h.Created(c, result)
		return
	}
	h.Success(c, result)
}
