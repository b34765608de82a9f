package models

import "fmt"

// Currency is fixed; the storefront sells in euros only.
const Currency = "EUR"

// FormatEuros renders an amount of euro cents as a display string, e.g.
// 7074 -> "70.74 EUR". This is the only place cents are converted to a
// decimal representation; everything else stays in integer minor units.
func FormatEuros(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, Currency)
}
