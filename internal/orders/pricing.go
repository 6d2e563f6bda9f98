package orders

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Pricing is the policy checkout quotes with. It is injected, never read from
// globals, so tests and deployments can carry different rates.
type Pricing struct {
	Currency              string
	TaxRate               decimal.Decimal
	Shipping              map[string]decimal.Decimal
	DefaultMethod         string
	FreeShippingThreshold decimal.Decimal // zero disables
}

const (
	ShippingStandard  = "standard"
	ShippingExpress   = "express"
	ShippingOvernight = "overnight"
)

func DefaultPricing() Pricing {
	return Pricing{
		Currency: "USD",
		TaxRate:  decimal.RequireFromString("0.10"),
		Shipping: map[string]decimal.Decimal{
			ShippingStandard:  decimal.RequireFromString("5.99"),
			ShippingExpress:   decimal.RequireFromString("12.99"),
			ShippingOvernight: decimal.RequireFromString("24.99"),
		},
		DefaultMethod: ShippingStandard,
	}
}

// Totals are the money columns of an order header.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping_cost"`
	Tax      decimal.Decimal `json:"tax_amount"`
	Total    decimal.Decimal `json:"total_amount"`
}

// Sum is the only place the order total is derived.
func (t Totals) Sum() decimal.Decimal {
	return t.Subtotal.Add(t.Shipping).Add(t.Tax)
}

func (t Totals) Consistent() bool {
	return t.Total.Equal(t.Sum())
}

// ResolveMethod maps an empty method to the default and rejects unknown ones.
func (p Pricing) ResolveMethod(method string) (string, error) {
	m := strings.ToLower(strings.TrimSpace(method))
	if m == "" {
		m = p.DefaultMethod
	}
	if _, ok := p.Shipping[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidShippingMethod, method)
	}
	return m, nil
}

// Quote prices a subtotal. Tax is applied to the subtotal only and rounded
// half-up to cents.
func (p Pricing) Quote(subtotal decimal.Decimal, method string) (Totals, error) {
	m, err := p.ResolveMethod(method)
	if err != nil {
		return Totals{}, err
	}
	t := Totals{
		Subtotal: subtotal.Round(2),
		Shipping: p.Shipping[m].Round(2),
	}
	if p.FreeShippingThreshold.IsPositive() && t.Subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		t.Shipping = decimal.Zero
	}
	t.Tax = t.Subtotal.Mul(p.TaxRate).Round(2)
	t.Total = t.Sum()
	return t, nil
}

func (p Pricing) Validate() error {
	if p.TaxRate.IsNegative() {
		return fmt.Errorf("pricing: negative tax rate %s", p.TaxRate)
	}
	if len(p.Shipping) == 0 {
		return fmt.Errorf("pricing: no shipping methods")
	}
	for m, rate := range p.Shipping {
		if rate.IsNegative() {
			return fmt.Errorf("pricing: negative rate for %s", m)
		}
	}
	if _, ok := p.Shipping[p.DefaultMethod]; !ok {
		return fmt.Errorf("pricing: default method %q not in shipping table", p.DefaultMethod)
	}
	if len(p.Currency) != 3 {
		return fmt.Errorf("pricing: bad currency %q", p.Currency)
	}
	return nil
}
