package vat

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Rate is one per-country VAT registry entry. Rates are fractions in
// [0,1], e.g. 0.20 for the French standard rate.
type Rate struct {
	CountryCode string          `json:"country_code"`
	CountryName string          `json:"country_name"`
	Rate        decimal.Decimal `json:"rate"`
	IsEUMember  bool            `json:"is_eu_member"`
	IsActive    bool            `json:"is_active"`
}

// Registry is a static table of per-country VAT rates. It is baked into
// the deployed artifact and updated only by redeploying; tax law changes
// infrequently and staleness is an accepted tradeoff. Read-only after
// construction, safe for concurrent use.
type Registry struct {
	rates map[string]Rate
}

// NewRegistry builds the registry with the standard VAT rates of all EU
// member states plus the non-EU destinations the storefront ships to.
// Non-EU entries are zero-rated under this table (export, no French VAT).
func NewRegistry() *Registry {
	entries := []struct {
		code string
		name string
		rate string
		eu   bool
	}{
		{"AT", "Austria", "0.20", true},
		{"BE", "Belgium", "0.21", true},
		{"BG", "Bulgaria", "0.20", true},
		{"HR", "Croatia", "0.25", true},
		{"CY", "Cyprus", "0.19", true},
		{"CZ", "Czechia", "0.21", true},
		{"DK", "Denmark", "0.25", true},
		{"EE", "Estonia", "0.22", true},
		{"FI", "Finland", "0.24", true},
		{"FR", "France", "0.20", true},
		{"DE", "Germany", "0.19", true},
		{"GR", "Greece", "0.24", true},
		{"HU", "Hungary", "0.27", true},
		{"IE", "Ireland", "0.23", true},
		{"IT", "Italy", "0.22", true},
		{"LV", "Latvia", "0.21", true},
		{"LT", "Lithuania", "0.21", true},
		{"LU", "Luxembourg", "0.17", true},
		{"MT", "Malta", "0.18", true},
		{"NL", "Netherlands", "0.21", true},
		{"PL", "Poland", "0.23", true},
		{"PT", "Portugal", "0.23", true},
		{"RO", "Romania", "0.19", true},
		{"SK", "Slovakia", "0.20", true},
		{"SI", "Slovenia", "0.22", true},
		{"ES", "Spain", "0.21", true},
		{"SE", "Sweden", "0.25", true},
		{"GB", "United Kingdom", "0", false},
		{"CH", "Switzerland", "0", false},
		{"NO", "Norway", "0", false},
		{"US", "United States", "0", false},
	}

	rates := make(map[string]Rate, len(entries))
	for _, e := range entries {
		rates[e.code] = Rate{
			CountryCode: e.code,
			CountryName: e.name,
			Rate:        decimal.RequireFromString(e.rate),
			IsEUMember:  e.eu,
			IsActive:    true,
		}
	}

	return &Registry{rates: rates}
}

// RateFor looks up the VAT rate for a 2-letter country code. Lookup is
// case-insensitive.
func (r *Registry) RateFor(countryCode string) (Rate, bool) {
	rate, ok := r.rates[strings.ToUpper(countryCode)]
	if !ok || !rate.IsActive {
		return Rate{}, false
	}
	return rate, true
}
