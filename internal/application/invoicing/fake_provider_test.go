package invoicing

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
)

type invoiceCall struct {
	headers invoicing.AuthHeaders
	payload map[string]any
	key     string
}

// fakeProvider is an in-memory invoicing.InvoicingProvider
type fakeProvider struct {
	mu sync.Mutex

	authFn    func(identity, accessKey string) (string, error)
	authHook  func(ctx context.Context) error
	authCalls int
	authKeys  []string

	customers           map[string]bool
	findCustomerErr     error
	createCustomerErr   error
	createCustomerCalls int

	invoiceFn    func(call invoiceCall, attempt int) (*invoicing.InvoiceResult, error)
	invoiceHook  func(ctx context.Context) error
	invoiceCalls []invoiceCall

	invoices        map[string]*invoicing.InvoiceRecord
	findInvoiceErr  error
	creditNoteErr   error
	creditNoteCalls []map[string]any

	paymentTypes []invoicing.PaymentMethod
	users        []invoicing.User
	taxes        []invoicing.Tax
	usersErr     error
	paymentErr   error
	taxesErr     error
	listCalls    map[string]int
	listHeaders  []invoicing.AuthHeaders
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		authFn: func(identity, accessKey string) (string, error) {
			return "token-1", nil
		},
		customers: make(map[string]bool),
		invoiceFn: func(call invoiceCall, attempt int) (*invoicing.InvoiceResult, error) {
			return &invoicing.InvoiceResult{ID: fmt.Sprintf("inv-%d", attempt), Number: int64(attempt), Name: fmt.Sprintf("FV-1-%d", attempt)}, nil
		},
		invoices: make(map[string]*invoicing.InvoiceRecord),
		paymentTypes: []invoicing.PaymentMethod{
			{ID: 100, Name: "Credit", Active: true},
			{ID: 200, Name: "CASH", Active: true},
		},
		users: []invoicing.User{
			{ID: 10, Username: "ana", Email: "a@x.com", Active: true},
		},
		taxes: []invoicing.Tax{
			{ID: 19, Name: "IVA 19%", Percentage: decimal.NewFromInt(19), Active: true},
			{ID: 5, Name: "IVA 5%", Percentage: decimal.NewFromInt(5), Active: true},
			{ID: 7, Name: "Retired", Percentage: decimal.NewFromInt(7), Active: false},
		},
		listCalls: make(map[string]int),
	}
}

func (f *fakeProvider) Authenticate(ctx context.Context, identity, accessKey string) (string, error) {
	f.mu.Lock()
	f.authCalls++
	f.authKeys = append(f.authKeys, accessKey)
	fn, hook := f.authFn, f.authHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return "", err
		}
	}
	return fn(identity, accessKey)
}

func (f *fakeProvider) FindCustomer(_ context.Context, _ invoicing.AuthHeaders, identification string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findCustomerErr != nil {
		return false, f.findCustomerErr
	}
	return f.customers[identification], nil
}

func (f *fakeProvider) CreateCustomer(_ context.Context, _ invoicing.AuthHeaders, c invoicing.Customer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCustomerCalls++
	if f.createCustomerErr != nil {
		return f.createCustomerErr
	}
	f.customers[c.Identification] = true
	return nil
}

func (f *fakeProvider) CreateInvoice(ctx context.Context, h invoicing.AuthHeaders, payload map[string]any, key string) (*invoicing.InvoiceResult, error) {
	f.mu.Lock()
	call := invoiceCall{headers: h, payload: payload, key: key}
	f.invoiceCalls = append(f.invoiceCalls, call)
	attempt := len(f.invoiceCalls)
	fn, hook := f.invoiceFn, f.invoiceHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	return fn(call, attempt)
}

func (f *fakeProvider) FindInvoiceByName(_ context.Context, _ invoicing.AuthHeaders, name string) (*invoicing.InvoiceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findInvoiceErr != nil {
		return nil, f.findInvoiceErr
	}
	inv, ok := f.invoices[name]
	if !ok {
		return nil, &invoicing.NotFoundError{Resource: "invoice", Key: name}
	}
	return inv, nil
}

func (f *fakeProvider) CreateCreditNote(_ context.Context, _ invoicing.AuthHeaders, payload map[string]any) (*invoicing.CreditNoteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creditNoteCalls = append(f.creditNoteCalls, payload)
	if f.creditNoteErr != nil {
		return nil, f.creditNoteErr
	}
	return &invoicing.CreditNoteResult{ID: "nc-1", Number: 1, Name: "NC-1-1"}, nil
}

func (f *fakeProvider) ListPaymentTypes(_ context.Context, h invoicing.AuthHeaders, _ string) ([]invoicing.PaymentMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls["payment_types"]++
	f.listHeaders = append(f.listHeaders, h)
	if f.paymentErr != nil {
		return nil, f.paymentErr
	}
	return f.paymentTypes, nil
}

func (f *fakeProvider) ListUsers(_ context.Context, h invoicing.AuthHeaders) ([]invoicing.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls["users"]++
	f.listHeaders = append(f.listHeaders, h)
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return f.users, nil
}

func (f *fakeProvider) ListTaxes(_ context.Context, h invoicing.AuthHeaders) ([]invoicing.Tax, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls["taxes"]++
	f.listHeaders = append(f.listHeaders, h)
	if f.taxesErr != nil {
		return nil, f.taxesErr
	}
	return f.taxes, nil
}

func (f *fakeProvider) calls() []invoiceCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]invoiceCall(nil), f.invoiceCalls...)
}

func (f *fakeProvider) authCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authCalls
}

func (f *fakeProvider) listCount(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[kind]
}

var _ invoicing.InvoicingProvider = (*fakeProvider)(nil)

// apiError builds a provider error with a single envelope entry
func apiError(status int, code, message string, params ...string) *invoicing.ExternalAPIError {
	return &invoicing.ExternalAPIError{
		Operation: "create_invoice",
		Status:    status,
		Details:   []invoicing.ProviderErrorDetail{{Code: code, Message: message, Params: params}},
	}
}

func unauthorized() *invoicing.ExternalAPIError {
	return apiError(http.StatusUnauthorized, "unauthorized", "token expired")
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testCred = invoicing.NewCredential("user@acme.com", "acme:s3cr3t")

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InvoiceDocumentID = 24446
	cfg.CreditNoteDocumentID = 24450
	cfg.DefaultTaxID = 19
	return cfg
}

func newTestService(p *fakeProvider, cfg Config, clock *testClock) *Service {
	return NewService(p, cfg, WithClock(clock.Now))
}

func sampleSubmission() invoicing.InvoiceSubmission {
	return invoicing.InvoiceSubmission{
		Customer: invoicing.Customer{Identification: "900123456"},
		Items: []invoicing.Item{
			{Code: "SKU-1", Description: "Widget", Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(47500)},
		},
	}
}
