package checkout

import (
	"fmt"

	"github.com/shopspring/decimal"

	"academy-storefront/internal/config"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Breakdown holds unrounded amounts. Total always equals Subtotal + Tax.
type Breakdown struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
	Rate        decimal.Decimal
	VATIncluded bool
}

// Compute splits a list price into net, tax and total. With vatIncluded the
// list price already contains tax; otherwise tax is added on top.
func Compute(price, rate decimal.Decimal, vatIncluded bool) Breakdown {
	if vatIncluded {
		net := price.Div(one.Add(rate.Div(hundred)))
		return Breakdown{
			Subtotal:    net,
			Tax:         price.Sub(net),
			Total:       price,
			Rate:        rate,
			VATIncluded: true,
		}
	}

	tax := price.Mul(rate.Div(hundred))
	return Breakdown{
		Subtotal: price,
		Tax:      tax,
		Total:    price.Add(tax),
		Rate:     rate,
	}
}

type DisplayBreakdown struct {
	Subtotal    string `json:"subtotal"`
	Tax         string `json:"tax_amount"`
	Total       string `json:"total_amount"`
	Rate        string `json:"tax_rate"`
	VATIncluded bool   `json:"vat_included"`
	Currency    string `json:"currency"`
}

// Display rounds to two decimals for presentation.
func (b Breakdown) Display(currency string) DisplayBreakdown {
	return DisplayBreakdown{
		Subtotal:    b.Subtotal.StringFixed(2),
		Tax:         b.Tax.StringFixed(2),
		Total:       b.Total.StringFixed(2),
		Rate:        b.Rate.String(),
		VATIncluded: b.VATIncluded,
		Currency:    currency,
	}
}

// Pricing is the active tax configuration.
type Pricing struct {
	Rate        decimal.Decimal
	VATIncluded bool
	Currency    string
}

func NewPricing(cfg *config.Checkout) (Pricing, error) {
	rate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return Pricing{}, fmt.Errorf("parse tax rate %q: %w", cfg.TaxRate, err)
	}
	if rate.IsNegative() {
		return Pricing{}, fmt.Errorf("tax rate must not be negative")
	}
	return Pricing{
		Rate:        rate,
		VATIncluded: cfg.PricesIncludeVAT,
		Currency:    cfg.Currency,
	}, nil
}

func (p Pricing) Compute(price decimal.Decimal) Breakdown {
	return Compute(price, p.Rate, p.VATIncluded)
}
