package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/erp/invoice-relay/internal/infrastructure/telemetry"
)

// maxResponseSize is the maximum allowed response size from the provider API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// RESTAdapter implements invoicing.InvoicingProvider over the provider's REST API
type RESTAdapter struct {
	config     *Config
	httpClient *http.Client
	authClient *http.Client
	limiter    *rate.Limiter
	observer   RequestObserver
	logger     *zap.Logger
}

// RequestObserver receives the duration and status of every provider call.
// status is 0 when the call failed before a response arrived.
type RequestObserver interface {
	RecordProviderRequest(ctx context.Context, operation string, status int, d time.Duration)
}

// NewRESTAdapter creates a new REST adapter with the given configuration
func NewRESTAdapter(config *Config, logger *zap.Logger) (*RESTAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if config.RatePerSecond > 0 {
		limit = rate.Limit(config.RatePerSecond)
	}

	return &RESTAdapter{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout()},
		authClient: &http.Client{Timeout: config.AuthTimeout()},
		limiter:    rate.NewLimiter(limit, config.RateBurst),
		logger:     logger.Named("provider"),
	}, nil
}

// SetObserver installs o as the request observer
func (a *RESTAdapter) SetObserver(o RequestObserver) {
	a.observer = o
}

// request describes a single provider call
type request struct {
	operation string
	method    string
	url       string
	query     url.Values
	headers   *invoicing.AuthHeaders
	body      any
	extra     map[string]string
	client    *http.Client
}

// ---------------------------------------------------------------------------
// Authentication
// ---------------------------------------------------------------------------

// Authenticate exchanges an identity and an encoded access key for a token
func (a *RESTAdapter) Authenticate(ctx context.Context, identity, accessKey string) (string, error) {
	body, err := a.doRequest(ctx, request{
		operation: "authenticate",
		method:    http.MethodPost,
		url:       a.config.AuthURL,
		body:      authRequest{Username: identity, AccessKey: accessKey},
		client:    a.authClient,
	})
	if err != nil {
		return "", err
	}

	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("provider: failed to parse auth response: %w", err)
	}
	if strings.TrimSpace(resp.AccessToken) == "" {
		return "", invoicing.NewAuthenticationError("token missing from auth response", nil)
	}
	return resp.AccessToken, nil
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

// FindCustomer reports whether a customer with identification exists
func (a *RESTAdapter) FindCustomer(ctx context.Context, h invoicing.AuthHeaders, identification string) (bool, error) {
	body, err := a.doRequest(ctx, a.apiRequest("find_customer", http.MethodGet, pathCustomers, &h,
		url.Values{"identification": {identification}}, nil))
	if err != nil {
		return false, err
	}

	var resp pagedResponse[customerRecord]
	if err := json.Unmarshal(body, &resp); err != nil {
		return false, fmt.Errorf("provider: failed to parse customers: %w", err)
	}
	for _, c := range resp.Results {
		if c.Identification == identification {
			return true, nil
		}
	}
	return false, nil
}

// CreateCustomer creates a customer. Conflicts surface as *invoicing.ExternalAPIError.
func (a *RESTAdapter) CreateCustomer(ctx context.Context, h invoicing.AuthHeaders, customer invoicing.Customer) error {
	_, err := a.doRequest(ctx, a.apiRequest("create_customer", http.MethodPost, pathCustomers, &h,
		nil, toCustomerPayload(customer)))
	return err
}

// ---------------------------------------------------------------------------
// Documents
// ---------------------------------------------------------------------------

// CreateInvoice submits an encoded invoice payload
func (a *RESTAdapter) CreateInvoice(ctx context.Context, h invoicing.AuthHeaders, payload map[string]any, idempotencyKey string) (*invoicing.InvoiceResult, error) {
	req := a.apiRequest("create_invoice", http.MethodPost, pathInvoices, &h, nil, payload)
	if idempotencyKey != "" {
		req.extra = map[string]string{IdempotencyHeader: idempotencyKey}
	}

	body, err := a.doRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	var resp documentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("provider: failed to parse invoice: %w", err)
	}
	return resp.toInvoiceResult(), nil
}

// FindInvoiceByName looks up an invoice by its "<serie>-<number>" name
func (a *RESTAdapter) FindInvoiceByName(ctx context.Context, h invoicing.AuthHeaders, name string) (*invoicing.InvoiceRecord, error) {
	body, err := a.doRequest(ctx, a.apiRequest("find_invoice", http.MethodGet, pathInvoices, &h,
		url.Values{"name": {name}}, nil))
	if err != nil {
		return nil, err
	}

	var resp pagedResponse[invoiceLookup]
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("provider: failed to parse invoices: %w", err)
	}
	for _, inv := range resp.Results {
		if strings.EqualFold(inv.Name, name) {
			return inv.toRecord(), nil
		}
	}
	return nil, &invoicing.NotFoundError{Resource: "invoice", Key: name}
}

// CreateCreditNote submits a credit note payload
func (a *RESTAdapter) CreateCreditNote(ctx context.Context, h invoicing.AuthHeaders, payload map[string]any) (*invoicing.CreditNoteResult, error) {
	body, err := a.doRequest(ctx, a.apiRequest("create_credit_note", http.MethodPost, pathCreditNotes, &h, nil, payload))
	if err != nil {
		return nil, err
	}

	var resp documentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("provider: failed to parse credit note: %w", err)
	}
	return resp.toCreditNoteResult(), nil
}

// ---------------------------------------------------------------------------
// Catalogs
// ---------------------------------------------------------------------------

// ListPaymentTypes returns the payment types usable with documentType
func (a *RESTAdapter) ListPaymentTypes(ctx context.Context, h invoicing.AuthHeaders, documentType string) ([]invoicing.PaymentMethod, error) {
	query := url.Values{}
	if documentType != "" {
		query.Set("document_type", documentType)
	}
	records, err := listAll[paymentTypeRecord](ctx, a, "list_payment_types", pathPaymentTypes, h, query)
	if err != nil {
		return nil, err
	}
	out := make([]invoicing.PaymentMethod, 0, len(records))
	for _, r := range records {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ListUsers returns every user of the account
func (a *RESTAdapter) ListUsers(ctx context.Context, h invoicing.AuthHeaders) ([]invoicing.User, error) {
	records, err := listAll[userRecord](ctx, a, "list_users", pathUsers, h, nil)
	if err != nil {
		return nil, err
	}
	out := make([]invoicing.User, 0, len(records))
	for _, r := range records {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// ListTaxes returns every tax configured in the account
func (a *RESTAdapter) ListTaxes(ctx context.Context, h invoicing.AuthHeaders) ([]invoicing.Tax, error) {
	records, err := listAll[taxRecord](ctx, a, "list_taxes", pathTaxes, h, nil)
	if err != nil {
		return nil, err
	}
	out := make([]invoicing.Tax, 0, len(records))
	for _, r := range records {
		out = append(out, r.toDomain())
	}
	return out, nil
}

// listAll fetches a catalog. Endpoints answer either with a bare array or
// with a paginated object; pages are followed until total_results is reached.
func listAll[T any](ctx context.Context, a *RESTAdapter, operation, path string, h invoicing.AuthHeaders, query url.Values) ([]T, error) {
	var all []T
	for page := 1; page <= a.config.MaxPages; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(a.config.PageSize))

		body, err := a.doRequest(ctx, a.apiRequest(operation, http.MethodGet, path, &h, q, nil))
		if err != nil {
			return nil, err
		}

		trimmed := bytes.TrimSpace(body)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var items []T
			if err := json.Unmarshal(trimmed, &items); err != nil {
				return nil, fmt.Errorf("provider: failed to parse %s: %w", operation, err)
			}
			return append(all, items...), nil
		}

		var resp pagedResponse[T]
		if err := json.Unmarshal(trimmed, &resp); err != nil {
			return nil, fmt.Errorf("provider: failed to parse %s: %w", operation, err)
		}
		all = append(all, resp.Results...)

		if len(resp.Results) == 0 || len(all) >= resp.Pagination.TotalResults {
			return all, nil
		}
	}

	a.logger.Warn("catalog pagination truncated",
		zap.String("operation", operation),
		zap.Int("max_pages", a.config.MaxPages),
		zap.Int("fetched", len(all)),
	)
	return all, nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (a *RESTAdapter) apiRequest(operation, method, path string, h *invoicing.AuthHeaders, query url.Values, body any) request {
	return request{
		operation: operation,
		method:    method,
		url:       a.config.BaseURL + path,
		query:     query,
		headers:   h,
		body:      body,
		client:    a.httpClient,
	}
}

// doRequest performs an HTTP request to the provider API and maps non-2xx
// responses to *invoicing.ExternalAPIError
func (a *RESTAdapter) doRequest(ctx context.Context, r request) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("provider: rate limiter: %w", err)
	}

	target := r.url
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("provider: failed to encode %s request: %w", r.operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("provider: failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.config.UserAgent != "" {
		req.Header.Set("User-Agent", a.config.UserAgent)
	}
	if r.headers != nil {
		req.Header.Set("Authorization", r.headers.Authorization)
		if r.headers.TenantID != "" {
			req.Header.Set(a.config.TenantHeader, r.headers.TenantID)
		}
	}
	for k, v := range r.extra {
		req.Header.Set(k, v)
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "provider", r.operation, telemetry.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	req = req.WithContext(ctx)

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		a.observe(ctx, r.operation, 0, time.Since(start))
		err = fmt.Errorf("%w: %s: %v", invoicing.ErrProviderUnavailable, r.operation, err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	defer resp.Body.Close()
	a.observe(ctx, r.operation, resp.StatusCode, time.Since(start))
	telemetry.SetAttribute(span, "http.response.status_code", resp.StatusCode)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("provider: failed to read response: %w", err)
	}

	a.logger.Debug("provider request",
		zap.String("operation", r.operation),
		zap.String("method", r.method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(r.operation, resp.StatusCode, body)
		telemetry.RecordError(span, apiErr)
		if IsRateLimited(apiErr) {
			a.logger.Warn("provider rate limit reached",
				zap.String("operation", r.operation),
				zap.String("retry_after", resp.Header.Get("Retry-After")),
			)
		}
		return nil, apiErr
	}
	return body, nil
}

func (a *RESTAdapter) observe(ctx context.Context, operation string, status int, d time.Duration) {
	if a.observer != nil {
		a.observer.RecordProviderRequest(ctx, operation, status, d)
	}
}

// parseAPIError builds an ExternalAPIError from a non-2xx response
func parseAPIError(operation string, status int, body []byte) *invoicing.ExternalAPIError {
	apiErr := &invoicing.ExternalAPIError{
		Operation: operation,
		Status:    status,
		Body:      truncate(string(body), 2048),
	}

	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Errors) > 0 {
		apiErr.Details = envelope.Errors
		return apiErr
	}

	// Some endpoints answer with a single {"Code","Message"} object
	var single invoicing.ProviderErrorDetail
	if err := json.Unmarshal(body, &single); err == nil && (single.Code != "" || single.Message != "") {
		apiErr.Details = []invoicing.ProviderErrorDetail{single}
	}
	return apiErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Ensure RESTAdapter implements invoicing.InvoicingProvider
var _ invoicing.InvoicingProvider = (*RESTAdapter)(nil)

// IsRateLimited reports whether err is a provider 429
func IsRateLimited(err error) bool {
	var apiErr *invoicing.ExternalAPIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}
