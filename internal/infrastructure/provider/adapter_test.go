package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
)

var testHeaders = invoicing.AuthHeaders{Authorization: "Bearer tok", TenantID: "acme"}

func newTestAdapter(t *testing.T, handler http.HandlerFunc) (*RESTAdapter, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := NewConfig(server.URL)
	cfg.RatePerSecond = 0
	cfg.PageSize = 2
	adapter, err := NewRESTAdapter(cfg, nil)
	require.NoError(t, err)
	return adapter, server
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestConfig_Validate(t *testing.T) {
	t.Run("fills defaults", func(t *testing.T) {
		cfg := &Config{BaseURL: "https://api.example.com/"}

		require.NoError(t, cfg.Validate())
		assert.Equal(t, "https://api.example.com", cfg.BaseURL)
		assert.Equal(t, "https://api.example.com/auth", cfg.AuthURL)
		assert.Equal(t, DefaultTenantHeader, cfg.TenantHeader)
		assert.Equal(t, 10, cfg.AuthTimeoutSeconds)
		assert.Equal(t, 30, cfg.TimeoutSeconds)
		assert.Less(t, cfg.AuthTimeout(), cfg.Timeout())
	})

	t.Run("missing base url", func(t *testing.T) {
		assert.ErrorIs(t, (&Config{}).Validate(), ErrConfigMissingBaseURL)
	})

	t.Run("negative timeout", func(t *testing.T) {
		cfg := &Config{BaseURL: "https://api.example.com", TimeoutSeconds: -1}
		assert.ErrorIs(t, cfg.Validate(), ErrConfigInvalidTimeout)
	})
}

// ---------------------------------------------------------------------------
// Authentication Tests
// ---------------------------------------------------------------------------

func TestRESTAdapter_Authenticate(t *testing.T) {
	t.Run("returns access token", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)

			var req authRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "user@acme.com", req.Username)
			assert.Equal(t, "a2V5", req.AccessKey)

			writeJSON(w, http.StatusOK, map[string]any{"access_token": "tok-1", "expires_in": 86400})
		})

		token, err := adapter.Authenticate(context.Background(), "user@acme.com", "a2V5")
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)
	})

	t.Run("missing token", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"token_type": "Bearer"})
		})

		_, err := adapter.Authenticate(context.Background(), "u", "k")
		assert.ErrorIs(t, err, invoicing.ErrAuthentication)
	})

	t.Run("rejected credentials", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"Errors": []map[string]any{{"Code": "invalid_credentials", "Message": "bad key"}},
			})
		})

		_, err := adapter.Authenticate(context.Background(), "u", "k")
		var apiErr *invoicing.ExternalAPIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "invalid_credentials", apiErr.Code())
		assert.Equal(t, "authenticate", apiErr.Operation)
	})
}

// ---------------------------------------------------------------------------
// Transport Tests
// ---------------------------------------------------------------------------

func TestRESTAdapter_SendsAuthAndIdempotencyHeaders(t *testing.T) {
	var gotKey, gotAuth, gotTenant string
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(IdempotencyHeader)
		gotAuth = r.Header.Get("Authorization")
		gotTenant = r.Header.Get(DefaultTenantHeader)
		writeJSON(w, http.StatusCreated, map[string]any{
			"id": "inv-1", "number": 10, "name": "FV-1-10", "date": "2026-03-04", "total": 113050,
		})
	})

	result, err := adapter.CreateInvoice(context.Background(), testHeaders, map[string]any{"document": map[string]any{"id": 1}}, "key-123456789")
	require.NoError(t, err)

	assert.Equal(t, "key-123456789", gotKey)
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "acme", gotTenant)
	assert.Equal(t, "inv-1", result.ID)
	assert.Equal(t, int64(10), result.Number)
	assert.True(t, decimal.NewFromInt(113050).Equal(result.Total))
}

func TestRESTAdapter_OmitsEmptyIdempotencyHeader(t *testing.T) {
	var present bool
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header[IdempotencyHeader]
		writeJSON(w, http.StatusCreated, map[string]any{"id": "inv-1"})
	})

	_, err := adapter.CreateInvoice(context.Background(), testHeaders, map[string]any{}, "")
	require.NoError(t, err)
	assert.False(t, present)
}

func TestRESTAdapter_ErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		unauthorized bool
		code         string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"Errors":[{"Code":"unauthorized","Message":"token expired"}]}`, true, "unauthorized"},
		{"envelope", http.StatusBadRequest, `{"Errors":[{"Code":"parameter_required","Message":"seller required","Params":["seller"]}]}`, false, "parameter_required"},
		{"lowercase envelope", http.StatusBadRequest, `{"errors":[{"code":"invalid_reference","message":"tax"}]}`, false, "invalid_reference"},
		{"single object", http.StatusConflict, `{"Code":"already_exists","Message":"dup"}`, false, "already_exists"},
		{"plain text", http.StatusBadGateway, `upstream down`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := adapter.CreateCustomer(context.Background(), testHeaders, invoicing.Customer{Identification: "900"})
			var apiErr *invoicing.ExternalAPIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.code, apiErr.Code())
			assert.Equal(t, tt.unauthorized, invoicing.IsUnauthorized(err))
		})
	}
}

func TestRESTAdapter_Unavailable(t *testing.T) {
	adapter, server := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	_, err := adapter.ListTaxes(context.Background(), testHeaders)
	assert.True(t, errors.Is(err, invoicing.ErrProviderUnavailable))
}

// ---------------------------------------------------------------------------
// Customer and Invoice Lookup Tests
// ---------------------------------------------------------------------------

func TestRESTAdapter_FindCustomer(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("identification")
		results := []map[string]any{}
		if id == "900" {
			results = append(results, map[string]any{"id": "c-1", "identification": "900"})
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	})

	found, err := adapter.FindCustomer(context.Background(), testHeaders, "900")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = adapter.FindCustomer(context.Background(), testHeaders, "901")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRESTAdapter_CreateCustomerPayload(t *testing.T) {
	var payload customerPayload
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		writeJSON(w, http.StatusCreated, map[string]any{"id": "c-1"})
	})

	err := adapter.CreateCustomer(context.Background(), testHeaders, invoicing.Customer{
		Identification: "900",
		PersonType:     "Person",
		IDType:         "13",
		FirstName:      "Ana",
		LastName:       "Ruiz",
		Email:          "ana@x.com",
		Phone:          "3000000",
	})
	require.NoError(t, err)

	assert.Equal(t, "Customer", payload.Type)
	assert.Equal(t, []string{"Ana", "Ruiz"}, payload.Name)
	require.Len(t, payload.Contacts, 1)
	assert.Equal(t, "ana@x.com", payload.Contacts[0].Email)
	require.Len(t, payload.Phones, 1)
	assert.Nil(t, payload.Address)
}

func TestRESTAdapter_FindInvoiceByName(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "FV-1-10" {
			writeJSON(w, http.StatusOK, map[string]any{"results": []any{}})
			return
		}
		_, _ = w.Write([]byte(`{"results":[{
			"id":"inv-1","number":10,"name":"FV-1-10","date":"2026-03-04",
			"document":{"id":24446},
			"customer":{"identification":"900","branch_office":0},
			"items":[{"code":"SKU-1","quantity":2,"price":47500.5}],
			"payments":[{"id":5636,"value":113050}],
			"total":113050
		}]}`))
	})

	record, err := adapter.FindInvoiceByName(context.Background(), testHeaders, "FV-1-10")
	require.NoError(t, err)
	assert.Equal(t, "inv-1", record.ID)
	assert.Equal(t, int64(24446), record.DocumentID)
	assert.Equal(t, "900", record.Customer.Identification)
	require.Len(t, record.Items, 1)
	assert.Equal(t, json.Number("47500.5"), record.Items[0]["price"])

	_, err = adapter.FindInvoiceByName(context.Background(), testHeaders, "FV-1-11")
	var nf *invoicing.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "FV-1-11", nf.Key)
}

// ---------------------------------------------------------------------------
// Catalog Tests
// ---------------------------------------------------------------------------

func TestRESTAdapter_ListUsersFollowsPagination(t *testing.T) {
	var calls atomic.Int32
	users := []map[string]any{
		{"id": 1, "username": "a", "email": "a@x.com", "active": true},
		{"id": 2, "username": "b", "email": "b@x.com", "active": false},
		{"id": 3, "username": "c", "email": "c@x.com", "active": true, "seller": true},
	}
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		start := (page - 1) * size
		end := min(start+size, len(users))
		writeJSON(w, http.StatusOK, map[string]any{
			"pagination": map[string]any{"page": page, "page_size": size, "total_results": len(users)},
			"results":    users[start:end],
		})
	})

	got, err := adapter.ListUsers(context.Background(), testHeaders)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, got[2].Seller)
	assert.False(t, got[1].Active)
}

func TestRESTAdapter_ListTaxesBareArray(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 13156, "name": "IVA 19%", "type": "IVA", "percentage": 19, "active": true},
			{"id": 13157, "name": "Exento", "type": "IVA", "percentage": 0, "active": true},
		})
	})

	taxes, err := adapter.ListTaxes(context.Background(), testHeaders)
	require.NoError(t, err)
	require.Len(t, taxes, 2)
	assert.True(t, decimal.RequireFromString("0.19").Equal(taxes[0].Rate()))
	assert.True(t, taxes[1].Rate().IsZero())
}

func TestRESTAdapter_ListPaymentTypes(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "FV", r.URL.Query().Get("document_type"))
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": 5636, "name": "Efectivo", "type": "Cartera", "active": true},
		})
	})

	methods, err := adapter.ListPaymentTypes(context.Background(), testHeaders, "FV")
	require.NoError(t, err)
	require.Len(t, methods, 1)
	assert.Equal(t, int64(5636), methods[0].ID)
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses map[string]int
}

func (o *recordingObserver) RecordProviderRequest(_ context.Context, operation string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses[operation] = status
}

func TestRESTAdapter_Observer(t *testing.T) {
	adapter, _ := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"Errors": []map[string]any{{"Code": "not_found", "Message": "x"}}})
	})
	rec := &recordingObserver{statuses: make(map[string]int)}
	adapter.SetObserver(rec)

	_, err := adapter.ListTaxes(context.Background(), testHeaders)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, rec.statuses["list_taxes"])
}

func TestRESTAdapter_RateLimitedIsLogged(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		writeJSON(w, http.StatusTooManyRequests, map[string]any{"Errors": []map[string]any{{"Code": "too_many_requests", "Message": "slow down"}}})
	}))
	t.Cleanup(server.Close)

	core, logs := observer.New(zapcore.WarnLevel)
	cfg := NewConfig(server.URL)
	cfg.RatePerSecond = 0
	adapter, err := NewRESTAdapter(cfg, zap.New(core))
	require.NoError(t, err)

	_, err = adapter.ListUsers(context.Background(), testHeaders)
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))

	entries := logs.FilterMessage("provider rate limit reached").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "3", entries[0].ContextMap()["retry_after"])
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&invoicing.ExternalAPIError{Status: http.StatusTooManyRequests}))
	assert.False(t, IsRateLimited(&invoicing.ExternalAPIError{Status: http.StatusBadRequest}))
	assert.False(t, IsRateLimited(errors.New("other")))
}
