package invoicing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSubmission() InvoiceSubmission {
	return InvoiceSubmission{
		Customer: Customer{Identification: "900123456"},
		Items: []Item{
			{Code: "SKU-1", Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(47500)},
		},
	}
}

func TestInvoiceSubmission_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *InvoiceSubmission)
		field  string
	}{
		{"valid", func(s *InvoiceSubmission) {}, ""},
		{"missing identification", func(s *InvoiceSubmission) { s.Customer.Identification = "  " }, "customer.identification"},
		{"no items", func(s *InvoiceSubmission) { s.Items = nil }, "items"},
		{"missing code", func(s *InvoiceSubmission) { s.Items[0].Code = "" }, "items.code"},
		{"zero quantity", func(s *InvoiceSubmission) { s.Items[0].Quantity = decimal.Zero }, "items.quantity"},
		{"negative price", func(s *InvoiceSubmission) { s.Items[0].Price = decimal.NewFromInt(-1) }, "items.price"},
		{"negative discount", func(s *InvoiceSubmission) { s.Items[0].Discount = decimal.NewFromInt(-1) }, "items.discount"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSubmission()
			tt.mutate(&s)

			err := s.Validate()
			if tt.field == "" {
				require.NoError(t, err)
				return
			}
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestItem_Base(t *testing.T) {
	item := Item{
		Quantity: decimal.NewFromInt(3),
		Price:    decimal.RequireFromString("10.50"),
		Discount: decimal.NewFromInt(1),
	}

	assert.True(t, decimal.RequireFromString("30.50").Equal(item.Base()))
}

func TestCustomer_HasProfileAndNames(t *testing.T) {
	person := Customer{Identification: "1", PersonType: "Person", IDType: "13", FirstName: "Ana", LastName: "Ruiz"}
	company := Customer{Identification: "2", PersonType: "Company", IDType: "31", CompanyName: "Acme SAS", FirstName: "ignored"}
	bare := Customer{Identification: "3"}

	assert.True(t, person.HasProfile())
	assert.Equal(t, []string{"Ana", "Ruiz"}, person.Names())
	assert.True(t, company.HasProfile())
	assert.Equal(t, []string{"Acme SAS"}, company.Names())
	assert.False(t, bare.HasProfile())
}

func TestInvoiceSubmission_DateString(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	s := validSubmission()

	assert.Equal(t, "2026-03-04", s.DateString(now))

	s.Date = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-01-02", s.DateString(now))
}

func TestTax_Rate(t *testing.T) {
	assert.True(t, decimal.RequireFromString("0.19").Equal(Tax{Percentage: decimal.NewFromInt(19)}.Rate()))
	assert.True(t, decimal.Zero.Equal(Tax{Percentage: decimal.Zero}.Rate()))
	assert.True(t, decimal.Zero.Equal(Tax{Percentage: decimal.NewFromInt(-5)}.Rate()))
}

func TestCredential_Validate(t *testing.T) {
	assert.NoError(t, NewCredential("user@x.com", "abc").Validate())
	assert.ErrorIs(t, NewCredential("", "abc").Validate(), ErrValidation)
	assert.ErrorIs(t, NewCredential("user", "").Validate(), ErrValidation)
	assert.ErrorIs(t, Credential{Identity: "u", Secret: "s", Format: "weird"}.Validate(), ErrValidation)
	assert.True(t, NewCredential(" u ", "s").Equal(Credential{Identity: "u", Secret: "s"}))
}
