package ordersync

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
)

// ErrUnknownStore is returned when strict store mapping is enabled and the
// webhook names a store without mapping
var ErrUnknownStore = errors.New("ordersync: unknown store")

// orderKeyNamespace seeds the derived keys of orders whose readable key does
// not fit the idempotency key format
var orderKeyNamespace = uuid.MustParse("6f1c2a4e-58b0-4d3c-9a57-0d4b1e7c9f21")

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

const (
	minKeyLength = 10
	maxKeyLength = 64
)

// OrderKey returns the idempotency key of an order: order_<store>_<id>.
// Identifiers are reduced to [A-Za-z0-9_-]; when the result does not fit the
// accepted key length a name-based UUID of the pair is used instead, so a
// redelivered webhook always maps to the same key.
func OrderKey(storeID, orderID string) string {
	key := "order_" + unsafeKeyChars.ReplaceAllString(storeID, "-") + "_" + unsafeKeyChars.ReplaceAllString(orderID, "-")
	if len(key) >= minKeyLength && len(key) <= maxKeyLength {
		return key
	}
	id := uuid.NewSHA1(orderKeyNamespace, []byte(storeID+"\x00"+orderID))
	return strings.ReplaceAll(id.String(), "-", "")
}

// Mapper converts storefront orders into invoice submissions
type Mapper struct {
	validate *validator.Validate
	stores   map[string]StoreMapping
	strict   bool
	location *time.Location
}

// MapperOption configures a Mapper
type MapperOption func(*Mapper)

// WithStores sets the per-store invoicing settings. With strict set, orders
// from unmapped stores are rejected.
func WithStores(stores map[string]StoreMapping, strict bool) MapperOption {
	return func(m *Mapper) {
		m.stores = stores
		m.strict = strict
	}
}

// WithLocation sets the time zone used to derive the invoice date
func WithLocation(loc *time.Location) MapperOption {
	return func(m *Mapper) {
		if loc != nil {
			m.location = loc
		}
	}
}

// NewMapper creates a Mapper
func NewMapper(opts ...MapperOption) *Mapper {
	m := &Mapper{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		location: time.UTC,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Validate checks the webhook payload
func (m *Mapper) Validate(order *OrderWebhook) error {
	if err := m.validate.Struct(order); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return invoicing.NewValidationError(verrs[0].Namespace(), verrs[0].Error())
		}
		return invoicing.NewValidationError("order", err.Error())
	}
	for i, item := range order.Items {
		if !item.Quantity.IsPositive() {
			return invoicing.NewValidationError(fmt.Sprintf("items[%d].quantity", i), "quantity must be positive")
		}
		if item.UnitPrice.IsNegative() || item.Discount.IsNegative() {
			return invoicing.NewValidationError(fmt.Sprintf("items[%d]", i), "amounts cannot be negative")
		}
	}
	return nil
}

// ToSubmission maps a validated order to an invoice submission and its
// idempotency key
func (m *Mapper) ToSubmission(order *OrderWebhook) (invoicing.InvoiceSubmission, string, error) {
	store, ok := m.stores[order.StoreID]
	if !ok && m.strict {
		return invoicing.InvoiceSubmission{}, "", fmt.Errorf("%w: %s", ErrUnknownStore, order.StoreID)
	}

	sub := invoicing.InvoiceSubmission{
		DocumentTypeID: store.DocumentTypeID,
		Customer:       mapCustomer(order.Customer, store.BranchOffice),
		Items:          make([]invoicing.Item, 0, len(order.Items)),
		Observations:   observations(order),
		SellerID:       store.SellerID,
		SellerEmail:    order.SellerEmail,
	}
	if order.PaidAt != nil {
		sub.Date = order.PaidAt.In(m.location)
	}
	for _, item := range order.Items {
		sub.Items = append(sub.Items, invoicing.Item{
			Code:        item.SKU,
			Description: item.Name,
			Quantity:    item.Quantity,
			Price:       item.UnitPrice,
			Discount:    item.Discount,
			Taxes:       item.TaxIDs,
		})
	}
	return sub, OrderKey(order.StoreID, order.OrderID), nil
}

func mapCustomer(c OrderCustomer, branch int) invoicing.Customer {
	return invoicing.Customer{
		Identification: strings.TrimSpace(c.Identification),
		BranchOffice:   branch,
		PersonType:     c.PersonType,
		IDType:         c.IDType,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		CompanyName:    c.CompanyName,
		Address:        c.Address,
		CountryCode:    c.CountryCode,
		StateCode:      c.StateCode,
		CityCode:       c.CityCode,
		Phone:          c.Phone,
		Email:          c.Email,
	}
}

func observations(order *OrderWebhook) string {
	text := "Order " + order.OrderID
	if note := strings.TrimSpace(order.Note); note != "" {
		text += " - " + note
	}
	return text
}
