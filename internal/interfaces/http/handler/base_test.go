package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/invoice-relay/internal/application/ordersync"
	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/erp/invoice-relay/internal/interfaces/http/dto"
)

func TestHandleError_Mapping(t *testing.T) {
	unauthorized := &invoicing.ExternalAPIError{Operation: "create_invoice", Status: http.StatusUnauthorized}
	rejected := &invoicing.ExternalAPIError{
		Operation: "create_invoice",
		Status:    http.StatusBadRequest,
		Details:   []invoicing.ProviderErrorDetail{{Code: "invalid_reference", Message: "The document type does not exist"}},
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"authentication wraps 401", invoicing.NewAuthenticationError("token refresh rejected", unauthorized), http.StatusUnauthorized, dto.ErrCodeAuthentication},
		{"bare 401", unauthorized, http.StatusUnauthorized, dto.ErrCodeAuthentication},
		{"validation", invoicing.NewValidationError("items", "at least one item is required"), http.StatusBadRequest, dto.ErrCodeValidation},
		{"not found", &invoicing.NotFoundError{Resource: "invoice", Key: "FV-1-99"}, http.StatusNotFound, dto.ErrCodeNotFound},
		{"seller", &invoicing.SellerUnresolvedError{TenantID: "acme"}, http.StatusUnprocessableEntity, dto.ErrCodeSellerUnresolved},
		{"customer", &invoicing.CustomerCreateError{Identification: "900", Err: rejected}, http.StatusUnprocessableEntity, dto.ErrCodeCustomerCreate},
		{"unknown store", fmt.Errorf("%w: shop", ordersync.ErrUnknownStore), http.StatusUnprocessableEntity, dto.ErrCodeUnknownStore},
		{"unavailable", fmt.Errorf("list users: %w", invoicing.ErrProviderUnavailable), http.StatusServiceUnavailable, dto.ErrCodeProviderUnavailable},
		{"provider rejection", rejected, http.StatusBadGateway, dto.ErrCodeProviderRejected},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestEngine()
			h := NewBaseHandler(invoicing.Credential{})
			r.GET("/x", func(c *gin.Context) { h.HandleError(c, tt.err) })

			w := doRequest(r, http.MethodGet, "/x", nil, nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}
}

func TestHandleError_ProviderMessageIsSurfaced(t *testing.T) {
	r := newTestEngine()
	h := NewBaseHandler(invoicing.Credential{})
	r.GET("/x", func(c *gin.Context) {
		h.HandleError(c, &invoicing.ExternalAPIError{
			Status:  http.StatusBadRequest,
			Details: []invoicing.ProviderErrorDetail{{Code: "invalid_total_payments", Message: "The payments total does not match"}},
		})
	})

	resp := decodeResponse(t, doRequest(r, http.MethodGet, "/x", nil, nil))
	assert.Equal(t, "The payments total does not match", resp.Error.Message)
}

func TestCredential(t *testing.T) {
	tests := []struct {
		name     string
		def      invoicing.Credential
		headers  map[string]string
		wantOK   bool
		wantCred invoicing.Credential
	}{
		{name: "headers", def: defaultCred, headers: acmeHeaders(), wantOK: true, wantCred: acmeCred},
		{name: "default", def: defaultCred, wantOK: true, wantCred: defaultCred},
		{name: "no default", wantOK: false},
		{name: "partial headers", def: defaultCred, headers: map[string]string{HeaderProviderUsername: "api@acme.co"}, wantOK: false},
		{
			name: "declared format",
			headers: map[string]string{
				HeaderProviderUsername:  "api@acme.co",
				HeaderProviderAccessKey: "acme-key",
				HeaderCredentialFormat:  "PLAIN",
			},
			wantOK:   true,
			wantCred: invoicing.Credential{Identity: "api@acme.co", Secret: "acme-key", Format: invoicing.CredentialFormatPlain},
		},
		{
			name: "unknown format",
			headers: map[string]string{
				HeaderProviderUsername:  "api@acme.co",
				HeaderProviderAccessKey: "acme-key",
				HeaderCredentialFormat:  "rot13",
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestEngine()
			h := NewBaseHandler(tt.def)
			var got invoicing.Credential
			var ok bool
			r.GET("/x", func(c *gin.Context) {
				got, ok = h.Credential(c)
				if ok {
					c.Status(http.StatusNoContent)
				}
			})

			w := doRequest(r, http.MethodGet, "/x", nil, tt.headers)

			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, http.StatusNoContent, w.Code)
				assert.Equal(t, tt.wantCred, got)
			} else {
				assert.Contains(t, []int{http.StatusUnauthorized, http.StatusBadRequest}, w.Code)
			}
		})
	}
}
