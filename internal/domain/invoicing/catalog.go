package invoicing

import "github.com/shopspring/decimal"

// CatalogKind identifies one of the catalogs fetched from the provider
type CatalogKind string

const (
	CatalogKindPaymentTypes CatalogKind = "payment_types"
	CatalogKindUsers        CatalogKind = "users"
	CatalogKindTaxes        CatalogKind = "taxes"
)

// String returns the string representation of CatalogKind
func (k CatalogKind) String() string {
	return string(k)
}

// PaymentMethod is a payment type configured in the provider account
type PaymentMethod struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	Active bool   `json:"active"`
}

// User is a provider account user; sellers are users flagged as such
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Active    bool   `json:"active"`
	Seller    bool   `json:"seller"`
}

// Tax is a tax rate configured in the provider account.
// Percentage is expressed in percent (19 means 19%).
type Tax struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Type       string          `json:"type,omitempty"`
	Percentage decimal.Decimal `json:"percentage"`
	Active     bool            `json:"active"`
}

// Rate returns the fractional rate (0.19 for 19%), or zero for non-positive percentages
func (t Tax) Rate() decimal.Decimal {
	if !t.Percentage.IsPositive() {
		return decimal.Zero
	}
	return t.Percentage.Div(decimal.NewFromInt(100))
}
