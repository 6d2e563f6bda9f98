package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// pricingFile mirrors the YAML layout. Money stays as strings so that
// "5.99" never goes through a float.
type pricingFile struct {
	Currency              string            `yaml:"currency"`
	TaxRate               string            `yaml:"tax_rate"`
	DefaultMethod         string            `yaml:"default_shipping_method"`
	FreeShippingThreshold string            `yaml:"free_shipping_threshold"`
	Shipping              map[string]string `yaml:"shipping"`
}

// LoadPricing reads the pricing policy. An empty path returns the defaults.
// Keys missing from the file keep their default value.
func LoadPricing(path string) (orders.Pricing, error) {
	p := orders.DefaultPricing()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read pricing file: %w", err)
	}
	var raw pricingFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return p, fmt.Errorf("failed to unmarshal pricing file: %w", err)
	}

	if raw.Currency != "" {
		p.Currency = strings.ToUpper(raw.Currency)
	}
	if raw.TaxRate != "" {
		if p.TaxRate, err = decimal.NewFromString(raw.TaxRate); err != nil {
			return p, fmt.Errorf("tax_rate: %w", err)
		}
	}
	if raw.FreeShippingThreshold != "" {
		if p.FreeShippingThreshold, err = decimal.NewFromString(raw.FreeShippingThreshold); err != nil {
			return p, fmt.Errorf("free_shipping_threshold: %w", err)
		}
	}
	if len(raw.Shipping) > 0 {
		p.Shipping = make(map[string]decimal.Decimal, len(raw.Shipping))
		for method, rate := range raw.Shipping {
			d, err := decimal.NewFromString(rate)
			if err != nil {
				return p, fmt.Errorf("shipping.%s: %w", method, err)
			}
			p.Shipping[strings.ToLower(method)] = d
		}
	}
	if raw.DefaultMethod != "" {
		p.DefaultMethod = strings.ToLower(raw.DefaultMethod)
	}

	return p, p.Validate()
}
