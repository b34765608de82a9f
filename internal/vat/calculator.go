package vat

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// UnknownCountry is the country name reported when the destination is not
// in the registry. Callers that care must check for it; the calculation
// itself degrades to a zero rate rather than failing the checkout.
const UnknownCountry = "Unknown"

// Structural check only: two letters followed by 2-12 alphanumerics. A real
// registry lookup (VIES) is deliberately out of scope; upgrading this would
// change audited tax behavior.
var vatNumberPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{2,12}$`)

// Breakdown splits the VAT amount between products and shipping.
type Breakdown struct {
	ProductVatCents  int64 `json:"product_vat_cents"`
	ShippingVatCents int64 `json:"shipping_vat_cents"`
}

// Result is the outcome of a VAT calculation. It is a value object: it is
// consumed by the order builder and never persisted on its own. All
// amounts are integer euro cents.
type Result struct {
	BaseAmountCents     int64           `json:"base_amount_cents"`
	ShippingAmountCents int64           `json:"shipping_amount_cents"`
	VatRate             decimal.Decimal `json:"vat_rate"`
	VatAmountCents      int64           `json:"vat_amount_cents"`
	TotalAmountCents    int64           `json:"total_amount_cents"`
	CountryCode         string          `json:"country_code"`
	CountryName         string          `json:"country"`
	IsReverseCharge     bool            `json:"is_reverse_charge"`
	Breakdown           Breakdown       `json:"breakdown"`
}

// Calculator computes VAT for a destination country and buyer type. It is
// pure and deterministic: the reconciliation validator depends on replayed
// calls producing bit-identical results.
type Calculator struct {
	registry      *Registry
	sellerCountry string
}

// NewCalculator creates a calculator for a seller established in
// sellerCountry (2-letter code).
func NewCalculator(registry *Registry, sellerCountry string) *Calculator {
	return &Calculator{
		registry:      registry,
		sellerCountry: strings.ToUpper(sellerCountry),
	}
}

// Compute calculates VAT on a base amount plus shipping.
//
// Destination countries missing from the registry are zero-rated with
// CountryName set to UnknownCountry instead of failing; availability over
// strictness. Reverse charge applies only to business buyers in another
// EU member state that supply a structurally valid VAT number.
//
// Product and shipping VAT are each rounded half-to-even on the cent
// boundary, then summed.
func (c *Calculator) Compute(baseCents, shippingCents int64, countryCode, buyerType, vatNumber string) Result {
	code := strings.ToUpper(countryCode)

	result := Result{
		BaseAmountCents:     baseCents,
		ShippingAmountCents: shippingCents,
		VatRate:             decimal.Zero,
		CountryCode:         code,
		CountryName:         UnknownCountry,
	}

	rate, found := c.registry.RateFor(code)
	if found {
		result.CountryName = rate.CountryName
		result.VatRate = rate.Rate
	}

	if found && c.reverseChargeApplies(rate, buyerType, vatNumber) {
		result.IsReverseCharge = true
		result.VatRate = decimal.Zero
	}

	result.Breakdown.ProductVatCents = roundCents(baseCents, result.VatRate)
	result.Breakdown.ShippingVatCents = roundCents(shippingCents, result.VatRate)
	result.VatAmountCents = result.Breakdown.ProductVatCents + result.Breakdown.ShippingVatCents
	result.TotalAmountCents = baseCents + shippingCents + result.VatAmountCents

	return result
}

// ValidVatNumber reports whether the VAT number passes the structural
// check. Whitespace is stripped and the number upper-cased first.
func ValidVatNumber(vatNumber string) bool {
	normalized := strings.ToUpper(strings.ReplaceAll(vatNumber, " ", ""))
	return vatNumberPattern.MatchString(normalized)
}

func (c *Calculator) reverseChargeApplies(rate Rate, buyerType, vatNumber string) bool {
	if buyerType != "business" || vatNumber == "" {
		return false
	}
	if !ValidVatNumber(vatNumber) {
		return false
	}
	return rate.IsEUMember && rate.CountryCode != c.sellerCountry
}

// roundCents multiplies an integer cent amount by a rate and rounds
// half-to-even back onto the cent boundary.
func roundCents(amountCents int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amountCents).Mul(rate).RoundBank(0).IntPart()
}
