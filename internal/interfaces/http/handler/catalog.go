package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/erp/invoice-relay/internal/interfaces/http/dto"
)

// CatalogHandler serves the provider catalog endpoints
type CatalogHandler struct {
	BaseHandler
	service InvoiceService
}

// NewCatalogHandler creates a CatalogHandler
func NewCatalogHandler(base BaseHandler, service InvoiceService) *CatalogHandler {
	return &CatalogHandler{BaseHandler: base, service: service}
}

// PaymentTypes handles GET /api/v1/catalog/payment-types?document_type=FV
func (h *CatalogHandler) PaymentTypes(c *gin.Context) {
	var q dto.PaymentTypesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	cred, ok := h.Credential(c)
	if !ok {
		return
	}

	methods, err := h.service.GetPaymentTypes(c.Request.Context(), cred, q.DocumentType)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, methods)
}

// Sellers handles GET /api/v1/catalog/sellers
func (h *CatalogHandler) Sellers(c *gin.Context) {
	cred, ok := h.Credential(c)
	if !ok {
		return
	}

	sellers, err := h.service.GetSellers(c.Request.Context(), cred)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, sellers)
}
