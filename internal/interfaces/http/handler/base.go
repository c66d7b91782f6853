package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/erp/invoice-relay/internal/application/ordersync"
	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/erp/invoice-relay/internal/infrastructure/logger"
	"github.com/erp/invoice-relay/internal/interfaces/http/dto"
	"github.com/erp/invoice-relay/internal/interfaces/http/middleware"
)

// Credential headers. A request carrying neither falls back to the
// configured default credential.
const (
	HeaderProviderUsername  = "X-Provider-Username"
	HeaderProviderAccessKey = "X-Provider-Access-Key"
	HeaderCredentialFormat  = "X-Provider-Credential-Format"
)

// BaseHandler provides common handler utilities
type BaseHandler struct {
	defaultCredential invoicing.Credential
}

// NewBaseHandler creates a BaseHandler falling back to def when a request
// carries no credential headers
func NewBaseHandler(def invoicing.Credential) BaseHandler {
	return BaseHandler{defaultCredential: def}
}

// Credential returns the provider credential of the request. It answers 401
// and returns false when none is available.
func (h *BaseHandler) Credential(c *gin.Context) (invoicing.Credential, bool) {
	username := strings.TrimSpace(c.GetHeader(HeaderProviderUsername))
	accessKey := strings.TrimSpace(c.GetHeader(HeaderProviderAccessKey))

	var cred invoicing.Credential
	switch {
	case username != "" && accessKey != "":
		cred = invoicing.NewCredential(username, accessKey)
		if format := c.GetHeader(HeaderCredentialFormat); format != "" {
			cred.Format = invoicing.CredentialFormat(strings.ToLower(format))
		}
	case username == "" && accessKey == "" && !h.defaultCredential.IsZero():
		cred = h.defaultCredential
	default:
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized,
			"provider credentials are required ("+HeaderProviderUsername+" and "+HeaderProviderAccessKey+")")
		return invoicing.Credential{}, false
	}

	if err := cred.Validate(); err != nil {
		h.HandleError(c, err)
		return invoicing.Credential{}, false
	}
	c.Request = c.Request.WithContext(logger.WithTenantID(c.Request.Context(), cred.Identity))
	return cred, true
}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BindError answers 400 for a request that failed binding or validation
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	_ = c.Error(err)
	middleware.HandleValidationError(c, err)
}

// HandleError converts domain errors to HTTP responses. AuthenticationError
// wraps the provider 401, so it is matched first.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	code, message := classifyError(err)
	if code == dto.ErrCodeValidation {
		var ve *invoicing.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
				"Request validation failed",
				middleware.GetRequestID(c),
				[]dto.ValidationDetail{{Field: ve.Field, Message: ve.Message}},
			))
			return
		}
	}
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

func classifyError(err error) (code, message string) {
	var apiErr *invoicing.ExternalAPIError

	switch {
	case errors.Is(err, invoicing.ErrAuthentication):
		return dto.ErrCodeAuthentication, "provider authentication failed"
	case errors.Is(err, invoicing.ErrUnauthorized):
		return dto.ErrCodeAuthentication, "provider rejected the credentials"
	case errors.Is(err, invoicing.ErrValidation):
		return dto.ErrCodeValidation, err.Error()
	case errors.Is(err, invoicing.ErrNotFound):
		return dto.ErrCodeNotFound, err.Error()
	case errors.Is(err, invoicing.ErrSellerUnresolved):
		return dto.ErrCodeSellerUnresolved, "no seller could be resolved for the provider account"
	case errors.Is(err, invoicing.ErrCustomerCreate):
		return dto.ErrCodeCustomerCreate, err.Error()
	case errors.Is(err, ordersync.ErrUnknownStore):
		return dto.ErrCodeUnknownStore, err.Error()
	case errors.Is(err, invoicing.ErrProviderUnavailable):
		return dto.ErrCodeProviderUnavailable, "invoicing provider is unavailable"
	case errors.As(err, &apiErr):
		msg := apiErr.Message()
		if msg == "" {
			msg = "invoicing provider rejected the request"
		}
		return dto.ErrCodeProviderRejected, msg
	case errors.Is(err, invoicing.ErrExternalAPI):
		return dto.ErrCodeProviderRejected, "invoicing provider rejected the request"
	default:
		return dto.ErrCodeInternal, "An unexpected error occurred"
	}
}
