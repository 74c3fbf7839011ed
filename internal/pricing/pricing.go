// Package pricing provides the checkout rate table: shipping method rates,
// the flat tax rate, and order numbering settings, loaded from pricing.yaml.
package pricing

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ShippingStandard  = "standard"
	ShippingExpress   = "express"
	ShippingOvernight = "overnight"
)

type Table struct {
	Currency          string         `yaml:"currency"`
	TaxRate           float64        `yaml:"tax_rate"`
	OrderNumberPrefix string         `yaml:"order_number_prefix"`
	ShippingRates     map[string]int `yaml:"shipping_rates_cents"`
}

// Default is the table applied when no pricing.yaml is configured.
func Default() *Table {
	return &Table{
		Currency:          "usd",
		TaxRate:           0.08,
		OrderNumberPrefix: "ORD",
		ShippingRates: map[string]int{
			ShippingStandard:  1500,
			ShippingExpress:   3000,
			ShippingOvernight: 5000,
		},
	}
}

func Parse(content []byte) (*Table, error) {
	table := Default()
	if err := yaml.Unmarshal(content, table); err != nil {
		return nil, fmt.Errorf("failed to parse pricing YAML: %w", err)
	}
	if err := table.validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// LoadFile reads the table from path, or returns defaults when path is empty.
func LoadFile(path string) (*Table, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pricing file: %w", err)
	}
	return Parse(content)
}

func (t *Table) validate() error {
	if t.Currency != "usd" {
		return fmt.Errorf("only USD currency is supported")
	}
	if t.TaxRate < 0 || t.TaxRate >= 1 {
		return fmt.Errorf("tax rate must be in [0, 1)")
	}
	if strings.TrimSpace(t.OrderNumberPrefix) == "" {
		return fmt.Errorf("order number prefix is required")
	}
	if _, ok := t.ShippingRates[ShippingStandard]; !ok {
		return fmt.Errorf("shipping rates must include %q", ShippingStandard)
	}
	for method, cents := range t.ShippingRates {
		if cents < 0 {
			return fmt.Errorf("shipping rate for %q must not be negative", method)
		}
	}
	return nil
}

// ShippingCents returns the rate for a shipping method. Unrecognized methods
// fall back to the standard rate.
func (t *Table) ShippingCents(method string) int {
	normalized := strings.ToLower(strings.TrimSpace(method))
	if cents, ok := t.ShippingRates[normalized]; ok {
		return cents
	}
	return t.ShippingRates[ShippingStandard]
}

// NormalizeShippingMethod maps arbitrary input to the method actually charged.
func (t *Table) NormalizeShippingMethod(method string) string {
	normalized := strings.ToLower(strings.TrimSpace(method))
	if _, ok := t.ShippingRates[normalized]; ok {
		return normalized
	}
	return ShippingStandard
}

// TaxCents computes the flat-rate tax on a subtotal, rounded to the cent.
func (t *Table) TaxCents(subtotalCents int) int {
	return int(math.Round(float64(subtotalCents) * t.TaxRate))
}
