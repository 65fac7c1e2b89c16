package tax

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openharvest/backend-hub/internal/money"
)

// Rate is an applicable tax rate for a tax category.
type Rate struct {
	ID            uuid.UUID
	TaxCategoryID uuid.UUID
	Name          string
	// Rate is fractional: 0.1 means 10%.
	Rate decimal.Decimal
}

// Engine applies tax rates under a fixed per-deployment inclusion policy.
// The policy and currency are injected at construction, never read from
// ambient state.
type Engine struct {
	// Inclusive means unit prices already contain tax and the engine
	// back-computes the embedded portion instead of adding on top.
	Inclusive bool
	Currency  money.Currency
}

// Apply returns the tax amount for a taxable base. Exclusive policy adds
// floor(base*rate); inclusive back-computes base - base/(1+rate), floored.
// Degenerate rates contribute nothing.
func (e Engine) Apply(base money.Money, rate decimal.Decimal) money.Money {
	if base <= 0 || rate.Sign() <= 0 {
		return 0
	}
	baseDec := e.Currency.Decimal(base)
	if e.Inclusive {
		embedded := baseDec.Sub(baseDec.Div(decimal.NewFromInt(1).Add(rate)))
		return e.Currency.Floor(embedded)
	}
	return e.Currency.Floor(baseDec.Mul(rate))
}
