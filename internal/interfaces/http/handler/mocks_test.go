package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/invoice-relay/internal/application/ordersync"
	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/erp/invoice-relay/internal/interfaces/http/dto"
	"github.com/erp/invoice-relay/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockInvoiceService struct {
	mock.Mock
}

func (m *MockInvoiceService) CreateInvoice(ctx context.Context, data invoicing.InvoiceSubmission, cred invoicing.Credential, key string) (*invoicing.InvoiceResult, error) {
	args := m.Called(ctx, data, cred, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.InvoiceResult), args.Error(1)
}

func (m *MockInvoiceService) CancelInvoice(ctx context.Context, serie string, number int64, cred invoicing.Credential, reason string) (*invoicing.CreditNoteResult, error) {
	args := m.Called(ctx, serie, number, cred, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.CreditNoteResult), args.Error(1)
}

func (m *MockInvoiceService) GetPaymentTypes(ctx context.Context, cred invoicing.Credential, documentType string) ([]invoicing.PaymentMethod, error) {
	args := m.Called(ctx, cred, documentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.PaymentMethod), args.Error(1)
}

func (m *MockInvoiceService) GetSellers(ctx context.Context, cred invoicing.Credential) ([]invoicing.User, error) {
	args := m.Called(ctx, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.User), args.Error(1)
}

type MockOrderSyncer struct {
	mock.Mock
}

func (m *MockOrderSyncer) HandleOrder(ctx context.Context, order *ordersync.OrderWebhook, cred invoicing.Credential) (*ordersync.SyncResult, error) {
	args := m.Called(ctx, order, cred)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ordersync.SyncResult), args.Error(1)
}

var (
	acmeCred    = invoicing.NewCredential("api@acme.co", "acme-key")
	defaultCred = invoicing.NewCredential("relay@acme.co", "relay-key")
)

// newTestEngine registers the middlewares the handlers rely on
func newTestEngine() *gin.Engine {
	middleware.SetupValidator()
	r := gin.New()
	r.Use(middleware.RequestID())
	return r
}

func doRequest(r http.Handler, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func acmeHeaders() map[string]string {
	return map[string]string{
		HeaderProviderUsername:  acmeCred.Identity,
		HeaderProviderAccessKey: acmeCred.Secret,
	}
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
