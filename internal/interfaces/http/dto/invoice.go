package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
)

// CreateInvoiceRequest is the body of POST /api/v1/invoices
type CreateInvoiceRequest struct {
	DocumentTypeID int64            `json:"document_type_id" binding:"omitempty,gt=0"`
	Date           string           `json:"date" binding:"omitempty,datetime=2006-01-02"`
	Customer       CustomerRequest  `json:"customer" binding:"required"`
	Items          []ItemRequest    `json:"items" binding:"required,min=1,dive"`
	Payments       []PaymentRequest `json:"payments" binding:"omitempty,dive"`
	Observations   string           `json:"observations" binding:"max=4000"`
	SellerID       int64            `json:"seller_id" binding:"omitempty,gt=0"`
	SellerEmail    string           `json:"seller_email" binding:"omitempty,email"`
}

// CustomerRequest is the invoice recipient
type CustomerRequest struct {
	Identification string `json:"identification" binding:"required,max=32"`
	BranchOffice   int    `json:"branch_office" binding:"gte=0"`
	PersonType     string `json:"person_type" binding:"omitempty,oneof=Person Company"`
	IDType         string `json:"id_type" binding:"max=10"`
	FirstName      string `json:"first_name" binding:"max=100"`
	LastName       string `json:"last_name" binding:"max=100"`
	CompanyName    string `json:"company_name" binding:"max=200"`
	Address        string `json:"address" binding:"max=200"`
	CountryCode    string `json:"country_code" binding:"omitempty,len=2"`
	StateCode      string `json:"state_code" binding:"max=10"`
	CityCode       string `json:"city_code" binding:"max=10"`
	Phone          string `json:"phone" binding:"max=30"`
	Email          string `json:"email" binding:"omitempty,email"`
}

// ItemRequest is one invoice line
type ItemRequest struct {
	Code        string          `json:"code" binding:"required,max=50"`
	Description string          `json:"description" binding:"max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Discount    decimal.Decimal `json:"discount"`
	Taxes       []int64         `json:"taxes" binding:"omitempty,dive,gt=0"`
}

// PaymentRequest is one payment applied to the invoice
type PaymentRequest struct {
	ID      int64           `json:"id" binding:"required,gt=0"`
	Value   decimal.Decimal `json:"value"`
	DueDate string          `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
}

// ToSubmission converts the request to the domain input. Amount checks are
// left to InvoiceSubmission.Validate.
func (r *CreateInvoiceRequest) ToSubmission() (invoicing.InvoiceSubmission, error) {
	sub := invoicing.InvoiceSubmission{
		DocumentTypeID: r.DocumentTypeID,
		Observations:   strings.TrimSpace(r.Observations),
		SellerID:       r.SellerID,
		SellerEmail:    strings.TrimSpace(r.SellerEmail),
		Customer: invoicing.Customer{
			Identification: strings.TrimSpace(r.Customer.Identification),
			BranchOffice:   r.Customer.BranchOffice,
			PersonType:     r.Customer.PersonType,
			IDType:         r.Customer.IDType,
			FirstName:      r.Customer.FirstName,
			LastName:       r.Customer.LastName,
			CompanyName:    r.Customer.CompanyName,
			Address:        r.Customer.Address,
			CountryCode:    r.Customer.CountryCode,
			StateCode:      r.Customer.StateCode,
			CityCode:       r.Customer.CityCode,
			Phone:          r.Customer.Phone,
			Email:          r.Customer.Email,
		},
	}

	if r.Date != "" {
		date, err := time.Parse(invoicing.DateLayout, r.Date)
		if err != nil {
			return sub, invoicing.NewValidationError("date", "date must be YYYY-MM-DD")
		}
		sub.Date = date
	}

	sub.Items = make([]invoicing.Item, len(r.Items))
	for i, item := range r.Items {
		sub.Items[i] = invoicing.Item{
			Code:        item.Code,
			Description: item.Description,
			Quantity:    item.Quantity,
			Price:       item.Price,
			Discount:    item.Discount,
			Taxes:       item.Taxes,
		}
	}
	for _, p := range r.Payments {
		sub.Payments = append(sub.Payments, invoicing.Payment{ID: p.ID, Value: p.Value, DueDate: p.DueDate})
	}
	return sub, nil
}

// CancelInvoiceRequest is the optional body of the cancel endpoint
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"max=200"`
}

// InvoicePath holds the path parameters of the cancel endpoint
type InvoicePath struct {
	Serie  string `uri:"serie" binding:"required,max=20"`
	Number int64  `uri:"number" binding:"required,gt=0"`
}

// PaymentTypesQuery holds the query of GET /api/v1/catalog/payment-types
type PaymentTypesQuery struct {
	DocumentType string `form:"document_type" binding:"omitempty,alpha,max=5"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version,omitempty"`
}
