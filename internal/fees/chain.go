package fees

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openharvest/backend-hub/internal/calc"
	"github.com/openharvest/backend-hub/internal/money"
)

// Type partitions enterprise fees for display and adjustment labelling.
type Type string

const (
	Packing   Type = "packing"
	Admin     Type = "admin"
	Transport Type = "transport"
	Sales     Type = "sales"
)

// EnterpriseFee is a fee levied by an enterprise on an exchange. Fees carry
// an optional tax category; when present the fee amount itself becomes a
// taxable base.
type EnterpriseFee struct {
	ID            uuid.UUID
	EnterpriseID  uuid.UUID
	Name          string
	Type          Type
	Calculator    calc.Calculator
	TaxCategoryID *uuid.UUID
}

// Applied records the outcome of one fee against one unit of a variant.
type Applied struct {
	Fee        EnterpriseFee
	UnitAmount money.Money
}

// Breakdown is the per-unit result of resolving an exchange's fee chain.
type Breakdown struct {
	// PerType accumulates unit amounts by fee type; fees of the same
	// type sum, different types stay separate for display.
	PerType map[Type]money.Money
	// Applied preserves the exchange's stored fee order with one entry
	// per fee, for adjustment materialisation.
	Applied []Applied
}

// UnitTotal sums all fee buckets.
func (b Breakdown) UnitTotal() money.Money {
	var total money.Money
	for _, amount := range b.PerType {
		total += amount
	}
	return total
}

// Resolve applies every fee in the exchange's stored order against the
// pre-fee base unit price. Each calculator sees the same base, never a
// running total, so fees do not compound on each other. Pure: callers
// persist the result as adjustments.
func Resolve(chain []EnterpriseFee, baseUnit money.Money, weightGrams decimal.Decimal, cur money.Currency) Breakdown {
	out := Breakdown{PerType: make(map[Type]money.Money, len(chain))}
	for _, fee := range chain {
		amount := fee.Calculator.Compute(baseUnit, weightGrams, cur)
		out.PerType[fee.Type] += amount
		out.Applied = append(out.Applied, Applied{Fee: fee, UnitAmount: amount})
	}
	return out
}
