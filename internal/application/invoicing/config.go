package invoicing

import (
	"time"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
)

// Config holds the account-specific settings of the invoicing services
type Config struct {
	// InvoiceDocumentID is the provider document type used for invoices
	InvoiceDocumentID int64
	// CreditNoteDocumentID is the provider document type used for credit notes
	CreditNoteDocumentID int64
	// PaymentDocumentType filters the payment types catalog ("FV" for sales invoices)
	PaymentDocumentType string

	// DefaultTaxID is applied to items without explicit taxes when the catalog accepts it
	DefaultTaxID int64
	// PaymentMethodOverride is preferred when active in the catalog
	PaymentMethodOverride int64
	// CashPaymentNames are matched case-insensitively when no override applies
	CashPaymentNames []string
	// DefaultSellerID is the last resort of seller resolution
	DefaultSellerID int64

	// TenantOverride wins over every other tenant id source
	TenantOverride string
	// CredentialFormat applies to credentials that do not declare one
	CredentialFormat invoicing.CredentialFormat

	CatalogTTL        time.Duration
	TokenTTL          time.Duration
	TokenSafetyMargin time.Duration
	IdempotencyTTL    time.Duration

	// CreditNoteReason is the provider reason code for cancellations
	CreditNoteReason string
	// CreditNoteObservation is used when the caller gives no reason
	CreditNoteObservation string
}

// DefaultConfig returns the configuration defaults
func DefaultConfig() Config {
	return Config{
		PaymentDocumentType:   "FV",
		CashPaymentNames:      []string{"cash", "efectivo"},
		CredentialFormat:      invoicing.CredentialFormatAuto,
		CatalogTTL:            10 * time.Minute,
		TokenTTL:              15 * time.Minute,
		TokenSafetyMargin:     2 * time.Minute,
		IdempotencyTTL:        10 * time.Minute,
		CreditNoteReason:      "2",
		CreditNoteObservation: "Invoice cancelled",
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PaymentDocumentType == "" {
		c.PaymentDocumentType = d.PaymentDocumentType
	}
	if len(c.CashPaymentNames) == 0 {
		c.CashPaymentNames = d.CashPaymentNames
	}
	if c.CredentialFormat == "" {
		c.CredentialFormat = d.CredentialFormat
	}
	if c.CatalogTTL <= 0 {
		c.CatalogTTL = d.CatalogTTL
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = d.TokenTTL
	}
	if c.TokenSafetyMargin <= 0 {
		c.TokenSafetyMargin = d.TokenSafetyMargin
	}
	if c.IdempotencyTTL <= 0 {
		c.IdempotencyTTL = d.IdempotencyTTL
	}
	if c.CreditNoteReason == "" {
		c.CreditNoteReason = d.CreditNoteReason
	}
	if c.CreditNoteObservation == "" {
		c.CreditNoteObservation = d.CreditNoteObservation
	}
	return c
}
