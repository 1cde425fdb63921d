// Package core holds the domain model of the wallet ledger: wallets,
// transactions, money arithmetic and the derived home/history views.
//
// Amounts are kept as integer cents everywhere inside the engine; only
// the API boundary converts to and from decimal units.
package core

import "math"

// Money is an amount in integer cents.
type Money struct {
	Cents int64
}

// Units returns the decimal value for display and API output.
// Use cents for calculations to avoid floating-point drift.
func (m Money) Units() float64 {
	return float64(m.Cents) / 100.0
}

// CentsFromUnits converts a decimal amount to cents with half-up
// rounding on the sub-cent remainder.
//
// Examples:
//
//	CentsFromUnits(12.34)  -> 1234
//	CentsFromUnits(12.345) -> 1235
//	CentsFromUnits(-3.005) -> -301
func CentsFromUnits(units float64) int64 {
	if units >= 0 {
		return int64(math.Floor(units*100 + 0.5))
	}
	return -int64(math.Floor(-units*100 + 0.5))
}

// Percentage returns part/whole as an integer percentage with half-up
// rounding, or 0 when the whole is not positive.
func Percentage(part, whole int64) int {
	if whole <= 0 {
		return 0
	}
	return int((part*100 + whole/2) / whole)
}
