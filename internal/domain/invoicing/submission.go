package invoicing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Customer identifies the invoice recipient. The profile fields are optional;
// when present the customer is upserted in the provider before submission.
type Customer struct {
	Identification string `json:"identification" validate:"required,max=32"`
	BranchOffice   int    `json:"branch_office"`

	PersonType  string `json:"person_type,omitempty"`
	IDType      string `json:"id_type,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Address     string `json:"address,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	StateCode   string `json:"state_code,omitempty"`
	CityCode    string `json:"city_code,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
}

// HasProfile reports whether enough data is present to create the customer
func (c Customer) HasProfile() bool {
	if c.IDType == "" || c.PersonType == "" {
		return false
	}
	return c.CompanyName != "" || c.FirstName != "" || c.LastName != ""
}

// Names returns the name list the provider expects for this customer
func (c Customer) Names() []string {
	if strings.EqualFold(c.PersonType, "Company") && c.CompanyName != "" {
		return []string{c.CompanyName}
	}
	names := make([]string, 0, 2)
	if c.FirstName != "" {
		names = append(names, c.FirstName)
	}
	if c.LastName != "" {
		names = append(names, c.LastName)
	}
	if len(names) == 0 && c.CompanyName != "" {
		names = append(names, c.CompanyName)
	}
	return names
}

// Item is one invoice line
type Item struct {
	Code        string          `json:"code" validate:"required"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	Taxes       []int64         `json:"taxes,omitempty"`
}

// Base returns quantity * price - discount
func (i Item) Base() decimal.Decimal {
	return i.Quantity.Mul(i.Price).Sub(i.Discount)
}

// Payment is one payment applied to the invoice
type Payment struct {
	ID      int64           `json:"id"`
	Value   decimal.Decimal `json:"value"`
	DueDate string          `json:"due_date,omitempty"`
}

// InvoiceSubmission is the transient input of an invoice creation
type InvoiceSubmission struct {
	DocumentTypeID int64     `json:"document_type_id,omitempty"`
	Date           time.Time `json:"date"`
	Customer       Customer  `json:"customer"`
	Items          []Item    `json:"items"`
	Payments       []Payment `json:"payments,omitempty"`
	Observations   string    `json:"observations,omitempty"`

	// SellerID overrides catalog seller resolution when positive
	SellerID int64 `json:"seller_id,omitempty"`
	// SellerEmail is a hint used to pick a seller from the users catalog
	SellerEmail string `json:"seller_email,omitempty"`
}

// Validate checks the structural requirements of a submission
func (s *InvoiceSubmission) Validate() error {
	if strings.TrimSpace(s.Customer.Identification) == "" {
		return NewValidationError("customer.identification", "customer identification is required")
	}
	if len(s.Items) == 0 {
		return NewValidationError("items", "at least one item is required")
	}
	for _, item := range s.Items {
		if item.Code == "" {
			return NewValidationError("items.code", "item code is required")
		}
		if !item.Quantity.IsPositive() {
			return NewValidationError("items.quantity", "item quantity must be positive")
		}
		if item.Price.IsNegative() {
			return NewValidationError("items.price", "item price cannot be negative")
		}
		if item.Discount.IsNegative() {
			return NewValidationError("items.discount", "item discount cannot be negative")
		}
	}
	return nil
}

// DateString returns the submission date in the provider format, defaulting to today
func (s *InvoiceSubmission) DateString(now time.Time) string {
	if s.Date.IsZero() {
		return now.Format(DateLayout)
	}
	return s.Date.Format(DateLayout)
}

// DateLayout is the date format used by the provider
const DateLayout = "2006-01-02"

// Totals are the computed amounts of an invoice, each rounded to 2 places
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// InvoiceResult is returned to the caller and cached under the idempotency key
type InvoiceResult struct {
	ID             string          `json:"id"`
	Number         int64           `json:"number"`
	Name           string          `json:"name"`
	Date           string          `json:"date,omitempty"`
	Total          decimal.Decimal `json:"total"`
	SellerID       int64           `json:"seller_id,omitempty"`
	Variant        string          `json:"variant,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`

	// Replayed is set on results served from the idempotency cache
	Replayed bool `json:"-"`
}

// InvoiceRecord is an invoice as returned by a provider lookup
type InvoiceRecord struct {
	ID           string
	Number       int64
	Name         string
	Date         string
	Customer     Customer
	Items        []map[string]any
	Payments     []map[string]any
	Total        decimal.Decimal
	DocumentID   int64
	Observations string
}

// CreditNoteResult is returned after a successful cancellation
type CreditNoteResult struct {
	ID        string          `json:"id"`
	Number    int64           `json:"number"`
	Name      string          `json:"name"`
	InvoiceID string          `json:"invoice_id"`
	Date      string          `json:"date,omitempty"`
	Total     decimal.Decimal `json:"total"`
}
