package provider

import (
	"github.com/erp/invoice-relay/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// API paths
const (
	pathCustomers    = "/v1/customers"
	pathInvoices     = "/v1/invoices"
	pathCreditNotes  = "/v1/credit-notes"
	pathPaymentTypes = "/v1/payment-types"
	pathUsers        = "/v1/users"
	pathTaxes        = "/v1/taxes"
)

// IdempotencyHeader is the header carrying the submission idempotency key
const IdempotencyHeader = "Idempotency-Key"

type authRequest struct {
	Username  string `json:"username"`
	AccessKey string `json:"access_key"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// errorEnvelope is the error body returned on non-2xx responses
type errorEnvelope struct {
	Errors []invoicing.ProviderErrorDetail `json:"Errors"`
}

type pagination struct {
	Page         int `json:"page"`
	PageSize     int `json:"page_size"`
	TotalResults int `json:"total_results"`
}

type pagedResponse[T any] struct {
	Pagination pagination `json:"pagination"`
	Results    []T        `json:"results"`
}

type customerIDType struct {
	Code string `json:"code"`
}

type customerCity struct {
	CountryCode string `json:"country_code,omitempty"`
	StateCode   string `json:"state_code,omitempty"`
	CityCode    string `json:"city_code,omitempty"`
}

type customerAddress struct {
	Address string       `json:"address"`
	City    customerCity `json:"city"`
}

type customerPhone struct {
	Number string `json:"number"`
}

type customerContact struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

type customerPayload struct {
	Type           string            `json:"type"`
	PersonType     string            `json:"person_type"`
	IDType         string            `json:"id_type"`
	Identification string            `json:"identification"`
	BranchOffice   int               `json:"branch_office"`
	Name           []string          `json:"name"`
	Address        *customerAddress  `json:"address,omitempty"`
	Phones         []customerPhone   `json:"phones,omitempty"`
	Contacts       []customerContact `json:"contacts,omitempty"`
}

type customerRecord struct {
	ID             string `json:"id"`
	Identification string `json:"identification"`
	BranchOffice   int    `json:"branch_office"`
}

type documentRef struct {
	ID int64 `json:"id"`
}

type documentResponse struct {
	ID     string          `json:"id"`
	Number int64           `json:"number"`
	Name   string          `json:"name"`
	Date   string          `json:"date"`
	Total  decimal.Decimal `json:"total"`
}

type invoiceLookup struct {
	ID       string           `json:"id"`
	Number   int64            `json:"number"`
	Name     string           `json:"name"`
	Date     string           `json:"date"`
	Document documentRef      `json:"document"`
	Customer customerRecord   `json:"customer"`
	Items    []map[string]any `json:"items"`
	Payments []map[string]any `json:"payments"`
	Total    decimal.Decimal  `json:"total"`

	Observations string `json:"observations"`
}

type paymentTypeRecord struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

type userRecord struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Active    bool   `json:"active"`
	Seller    bool   `json:"seller"`
	IsSeller  bool   `json:"is_seller"`
}

type taxRecord struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Type       string          `json:"type"`
	Percentage decimal.Decimal `json:"percentage"`
	Active     bool            `json:"active"`
}

func toCustomerPayload(c invoicing.Customer) customerPayload {
	p := customerPayload{
		Type:           "Customer",
		PersonType:     c.PersonType,
		IDType:         c.IDType,
		Identification: c.Identification,
		BranchOffice:   c.BranchOffice,
		Name:           c.Names(),
	}
	if c.Address != "" || c.CityCode != "" {
		p.Address = &customerAddress{
			Address: c.Address,
			City: customerCity{
				CountryCode: c.CountryCode,
				StateCode:   c.StateCode,
				CityCode:    c.CityCode,
			},
		}
	}
	if c.Phone != "" {
		p.Phones = []customerPhone{{Number: c.Phone}}
	}
	if c.Email != "" {
		first, last := c.FirstName, c.LastName
		if first == "" {
			first = c.CompanyName
		}
		p.Contacts = []customerContact{{FirstName: first, LastName: last, Email: c.Email}}
	}
	return p
}

func (d documentResponse) toInvoiceResult() *invoicing.InvoiceResult {
	return &invoicing.InvoiceResult{
		ID:     d.ID,
		Number: d.Number,
		Name:   d.Name,
		Date:   d.Date,
		Total:  d.Total,
	}
}

func (d documentResponse) toCreditNoteResult() *invoicing.CreditNoteResult {
	return &invoicing.CreditNoteResult{
		ID:     d.ID,
		Number: d.Number,
		Name:   d.Name,
		Date:   d.Date,
		Total:  d.Total,
	}
}

func (r invoiceLookup) toRecord() *invoicing.InvoiceRecord {
	return &invoicing.InvoiceRecord{
		ID:     r.ID,
		Number: r.Number,
		Name:   r.Name,
		Date:   r.Date,
		Customer: invoicing.Customer{
			Identification: r.Customer.Identification,
			BranchOffice:   r.Customer.BranchOffice,
		},
		Items:        r.Items,
		Payments:     r.Payments,
		Total:        r.Total,
		DocumentID:   r.Document.ID,
		Observations: r.Observations,
	}
}

func (r paymentTypeRecord) toDomain() invoicing.PaymentMethod {
	return invoicing.PaymentMethod{ID: r.ID, Name: r.Name, Type: r.Type, Active: r.Active}
}

func (r userRecord) toDomain() invoicing.User {
	return invoicing.User{
		ID:        r.ID,
		Username:  r.Username,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Active:    r.Active,
		Seller:    r.Seller || r.IsSeller,
	}
}

func (r taxRecord) toDomain() invoicing.Tax {
	return invoicing.Tax{ID: r.ID, Name: r.Name, Type: r.Type, Percentage: r.Percentage, Active: r.Active}
}
