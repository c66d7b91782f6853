package invoicing

import "context"

// InvoicingProvider is the port to the external invoicing SaaS.
// Every call except Authenticate carries the auth headers of the caller.
type InvoicingProvider interface {
	// Authenticate exchanges an identity and an encoded access key for a token
	Authenticate(ctx context.Context, identity, accessKey string) (string, error)

	FindCustomer(ctx context.Context, h AuthHeaders, identification string) (bool, error)
	CreateCustomer(ctx context.Context, h AuthHeaders, customer Customer) error

	// CreateInvoice submits an encoded invoice payload. An empty idempotency
	// key means the header is not sent.
	CreateInvoice(ctx context.Context, h AuthHeaders, payload map[string]any, idempotencyKey string) (*InvoiceResult, error)
	// FindInvoiceByName returns a *NotFoundError when no invoice carries name
	FindInvoiceByName(ctx context.Context, h AuthHeaders, name string) (*InvoiceRecord, error)
	CreateCreditNote(ctx context.Context, h AuthHeaders, payload map[string]any) (*CreditNoteResult, error)

	ListPaymentTypes(ctx context.Context, h AuthHeaders, documentType string) ([]PaymentMethod, error)
	ListUsers(ctx context.Context, h AuthHeaders) ([]User, error)
	ListTaxes(ctx context.Context, h AuthHeaders) ([]Tax, error)
}
