package invoicing

import (
	"github.com/erp/invoice-relay/internal/domain/invoicing"
)

// basePayload is the seller-independent part of an invoice payload
type basePayload struct {
	documentID   int64
	date         string
	customer     invoicing.Customer
	items        []pricedItem
	payments     []invoicing.Payment
	observations string
}

// toMap builds a fresh payload map; callers may mutate the result
func (b basePayload) toMap() map[string]any {
	items := make([]map[string]any, 0, len(b.items))
	for _, p := range b.items {
		item := map[string]any{
			"code":     p.item.Code,
			"quantity": number(p.item.Quantity),
			"price":    number(p.item.Price),
		}
		if p.item.Description != "" {
			item["description"] = p.item.Description
		}
		if !p.item.Discount.IsZero() {
			item["discount"] = number(p.item.Discount)
		}
		if len(p.taxes) > 0 {
			taxes := make([]map[string]any, 0, len(p.taxes))
			for _, id := range p.taxes {
				taxes = append(taxes, map[string]any{"id": id})
			}
			item["taxes"] = taxes
		}
		items = append(items, item)
	}

	payments := make([]map[string]any, 0, len(b.payments))
	for _, p := range b.payments {
		payment := map[string]any{
			"id":    p.ID,
			"value": number(p.Value),
		}
		if p.DueDate != "" {
			payment["due_date"] = p.DueDate
		}
		payments = append(payments, payment)
	}

	payload := map[string]any{
		"document": map[string]any{"id": b.documentID},
		"date":     b.date,
		"customer": map[string]any{
			"identification": b.customer.Identification,
			"branch_office":  b.customer.BranchOffice,
		},
		"items":    items,
		"payments": payments,
	}
	if b.observations != "" {
		payload["observations"] = b.observations
	}
	return payload
}

// PayloadVariant is one way of encoding the seller reference. The provider
// schema has accepted several over time, so submissions walk the list in
// order until one is accepted.
type PayloadVariant struct {
	Name        string
	SellerShape string
	encode      func(b basePayload, sellerID int64) map[string]any
}

// DefaultVariants is the ordered list of seller encodings
var DefaultVariants = []PayloadVariant{
	{
		Name:        "seller_root",
		SellerShape: "seller:number",
		encode: func(b basePayload, sellerID int64) map[string]any {
			m := b.toMap()
			m["seller"] = sellerID
			return m
		},
	},
	{
		Name:        "seller_object_root",
		SellerShape: "seller:{id}",
		encode: func(b basePayload, sellerID int64) map[string]any {
			m := b.toMap()
			m["seller"] = map[string]any{"id": sellerID}
			return m
		},
	},
	{
		Name:        "document_seller",
		SellerShape: "document.seller:number",
		encode: func(b basePayload, sellerID int64) map[string]any {
			m := b.toMap()
			m["document"] = map[string]any{"id": b.documentID, "seller": sellerID}
			return m
		},
	},
	{
		Name:        "document_seller_object",
		SellerShape: "document.seller:{id}",
		encode: func(b basePayload, sellerID int64) map[string]any {
			m := b.toMap()
			m["document"] = map[string]any{"id": b.documentID, "seller": map[string]any{"id": sellerID}}
			return m
		},
	},
	{
		Name:        "seller_id_root",
		SellerShape: "seller_id:number",
		encode: func(b basePayload, sellerID int64) map[string]any {
			m := b.toMap()
			m["seller_id"] = sellerID
			return m
		},
	},
	{
		Name:        "salesperson_root",
		SellerShape: "salesperson:number",
		encode: func(b basePayload, sellerID int64) map[string]any {
			m := b.toMap()
			m["salesperson"] = sellerID
			return m
		},
	},
}

// stripTaxes removes the taxes field from every item of payload
func stripTaxes(payload map[string]any) {
	items, ok := payload["items"].([]map[string]any)
	if !ok {
		return
	}
	for _, item := range items {
		delete(item, "taxes")
	}
}

// taxShape describes the tax fields of payload for diagnostics
func taxShape(payload map[string]any) string {
	items, _ := payload["items"].([]map[string]any)
	for _, item := range items {
		if _, ok := item["taxes"]; ok {
			return "items.taxes:present"
		}
	}
	return "items.taxes:absent"
}
