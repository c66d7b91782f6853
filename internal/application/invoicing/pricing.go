package invoicing

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/erp/invoice-relay/internal/domain/invoicing"
)

// moneyPlaces is the rounding precision of every computed amount
const moneyPlaces = 2

// pricedItem is an item with its resolved taxes and amounts
type pricedItem struct {
	item  invoicing.Item
	taxes []int64
	base  decimal.Decimal
	tax   decimal.Decimal
}

// TaxRates resolves tax validity and rates for a tenant
type TaxRates interface {
	IsValidTax(ctx context.Context, h invoicing.AuthHeaders, taxID int64) (bool, error)
	TaxRate(ctx context.Context, h invoicing.AuthHeaders, taxID int64) (decimal.Decimal, error)
}

// priceItems resolves the taxes of every item and computes the totals.
// Items without explicit taxes get defaultTaxID when the catalog accepts it;
// otherwise they carry no taxes and a zero rate.
func priceItems(ctx context.Context, rates TaxRates, h invoicing.AuthHeaders, items []invoicing.Item, defaultTaxID int64) ([]pricedItem, invoicing.Totals, error) {
	var defaultTaxes []int64
	if defaultTaxID > 0 {
		valid, err := rates.IsValidTax(ctx, h, defaultTaxID)
		if err != nil {
			return nil, invoicing.Totals{}, err
		}
		if valid {
			defaultTaxes = []int64{defaultTaxID}
		}
	}

	priced := make([]pricedItem, 0, len(items))
	for _, item := range items {
		p := pricedItem{item: item, base: item.Base(), taxes: item.Taxes}
		if len(p.taxes) == 0 {
			p.taxes = defaultTaxes
		}

		rate := decimal.Zero
		for _, id := range p.taxes {
			r, err := rates.TaxRate(ctx, h, id)
			if err != nil {
				return nil, invoicing.Totals{}, err
			}
			rate = rate.Add(r)
		}
		p.tax = p.base.Mul(rate)
		priced = append(priced, p)
	}

	return priced, computeTotals(priced), nil
}

// computeTotals sums the priced items, rounding each amount to two places
func computeTotals(items []pricedItem) invoicing.Totals {
	subtotal, tax := decimal.Zero, decimal.Zero
	for _, p := range items {
		subtotal = subtotal.Add(p.base)
		tax = tax.Add(p.tax)
	}
	subtotal = subtotal.Round(moneyPlaces)
	tax = tax.Round(moneyPlaces)
	return invoicing.Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax).Round(moneyPlaces),
	}
}

// number encodes d as a JSON number instead of decimal's default string form
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
