package movement

import (
	"github.com/shopspring/decimal"
)

// NextBalance applies the movement-type policy to the balance immediately
// before this movement and returns the new running balance.
//
//	in, production, return  -> current + |q|
//	out, consumption        -> current - |q|
//	transfer                -> current (location change only)
//	adjustment              -> current + q (signed)
//	anything else           -> current (recognized = false)
//
// The result is floored at zero: an out-of-range computed balance is a
// policy decision to clamp, never an error.
func NextBalance(current decimal.Decimal, t Type, quantity decimal.Decimal) (balance decimal.Decimal, recognized bool) {
	switch t {
	case TypeIn, TypeProduction, TypeReturn:
		balance = current.Add(quantity.Abs())
	case TypeOut, TypeConsumption:
		balance = current.Sub(quantity.Abs())
	case TypeTransfer:
		balance = current
	case TypeAdjustment:
		balance = current.Add(quantity)
	default:
		return current, false
	}

	if balance.IsNegative() {
		balance = decimal.Zero
	}
	return balance, true
}

// NormalizedQuantity returns the stored quantity for a movement type:
// magnitude for directional types, the signed value for adjustments.
// Stock-in with -50 and stock-in with 50 store the same quantity.
func NormalizedQuantity(t Type, quantity decimal.Decimal) decimal.Decimal {
	if t == TypeAdjustment {
		return quantity
	}
	return quantity.Abs()
}
