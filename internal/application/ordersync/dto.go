package ordersync

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Webhook payload
// ---------------------------------------------------------------------------

// OrderStatus is the storefront order status carried by the webhook
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// IsBillable returns true if an invoice should be issued for the status
func (s OrderStatus) IsBillable() bool {
	return s == OrderStatusPaid || s == OrderStatusCompleted
}

// OrderWebhook is the paid-order notification sent by a storefront
type OrderWebhook struct {
	OrderID     string        `json:"order_id" validate:"required,max=40"`
	StoreID     string        `json:"store_id" validate:"required,max=20"`
	Status      OrderStatus   `json:"status" validate:"required,oneof=pending paid completed cancelled refunded"`
	Currency    string        `json:"currency" validate:"omitempty,len=3"`
	PaidAt      *time.Time    `json:"paid_at"`
	Customer    OrderCustomer `json:"customer" validate:"required"`
	Items       []OrderItem   `json:"items" validate:"required,min=1,dive"`
	Note        string        `json:"note" validate:"max=500"`
	SellerEmail string        `json:"seller_email" validate:"omitempty,email"`
}

// OrderCustomer is the buyer of a storefront order
type OrderCustomer struct {
	Identification string `json:"identification" validate:"required,max=32"`
	IDType         string `json:"id_type"`
	PersonType     string `json:"person_type" validate:"omitempty,oneof=Person Company"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	CompanyName    string `json:"company_name"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone"`
	Address        string `json:"address"`
	CountryCode    string `json:"country_code"`
	StateCode      string `json:"state_code"`
	CityCode       string `json:"city_code"`
}

// OrderItem is one storefront order line
type OrderItem struct {
	SKU       string          `json:"sku" validate:"required,max=50"`
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	TaxIDs    []int64         `json:"tax_ids,omitempty" validate:"omitempty,dive,gt=0"`
}

// StoreMapping holds the invoicing settings of one storefront
type StoreMapping struct {
	DocumentTypeID int64
	SellerID       int64
	BranchOffice   int
}

// SyncResult is returned for every processed webhook
type SyncResult struct {
	OrderID        string      `json:"order_id"`
	StoreID        string      `json:"store_id"`
	Status         OrderStatus `json:"status"`
	Invoiced       bool        `json:"invoiced"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
	InvoiceID      string      `json:"invoice_id,omitempty"`
	InvoiceName    string      `json:"invoice_name,omitempty"`
	Replayed       bool        `json:"replayed"`
}
