package calc

import (
	"github.com/shopspring/decimal"

	"github.com/openharvest/backend-hub/internal/money"
)

// Kind identifies a calculator formula. The set is closed: new formulas are
// added here and dispatched in Compute, never looked up at runtime.
type Kind string

const (
	// FlatRate returns the configured amount regardless of inputs.
	FlatRate Kind = "flat_rate"
	// FlatPercentPerItem charges a percentage of the unit price, floored
	// per item before quantities are summed.
	FlatPercentPerItem Kind = "flat_percent_per_item"
	// Weight charges a per-kilogram rate against the item weight.
	Weight Kind = "weight"
)

var hundred = decimal.NewFromInt(100)
var gramsPerKg = decimal.NewFromInt(1000)

// Calculator is a pure fee formula. Optional parameters are pointers so an
// unconfigured value is distinguishable from an explicit zero; both fail
// closed to a zero amount rather than aborting the pricing pipeline.
type Calculator struct {
	Kind Kind

	// Amount is the fixed minor-unit charge for FlatRate.
	Amount money.Money
	// Percent applies to FlatPercentPerItem, expressed as a percentage
	// (10 means 10%).
	Percent *decimal.Decimal
	// PerKgRate applies to Weight, in major units per kilogram.
	PerKgRate *decimal.Decimal
}

// Compute returns the fee for one unit at the given base unit price and
// weight. weightGrams is the variant unit weight; quantity scaling is the
// caller's concern so the per-unit floor is applied exactly once per unit.
func (c Calculator) Compute(base money.Money, weightGrams decimal.Decimal, cur money.Currency) money.Money {
	switch c.Kind {
	case FlatRate:
		if c.Amount < 0 {
			return 0
		}
		return c.Amount
	case FlatPercentPerItem:
		if c.Percent == nil || c.Percent.Sign() <= 0 {
			return 0
		}
		fee := cur.Decimal(base).Mul(c.Percent.Div(hundred))
		return cur.Floor(fee)
	case Weight:
		if c.PerKgRate == nil || c.PerKgRate.Sign() <= 0 || weightGrams.Sign() <= 0 {
			return 0
		}
		fee := weightGrams.Div(gramsPerKg).Mul(*c.PerKgRate)
		return cur.Floor(fee)
	default:
		return 0
	}
}
