package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erp/invoice-relay/internal/interfaces/http/dto"
)

// HealthHandler serves GET /health
type HealthHandler struct {
	service string
	version string
}

// NewHealthHandler creates a HealthHandler
func NewHealthHandler(service, version string) *HealthHandler {
	return &HealthHandler{service: service, version: version}
}

// Health reports liveness. It never calls the provider.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "healthy",
		Service: h.service,
		Version: h.version,
	})
}
