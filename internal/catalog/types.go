package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openharvest/backend-hub/internal/fees"
	"github.com/openharvest/backend-hub/internal/money"
	"github.com/openharvest/backend-hub/internal/tax"
)

// Variant is a purchasable SKU owned by a producer. Stock mutation goes
// through the stock ledger only; catalog reads are snapshots.
type Variant struct {
	ID         uuid.UUID
	ProducerID uuid.UUID
	ProductID  uuid.UUID
	Name       string
	SKU        string
	// Price is the producer's base unit price in minor units.
	Price money.Money
	// UnitWeight is in grams; nil when the variant is not sold by weight.
	UnitWeight *decimal.Decimal
	// OnDemand marks elastic supply: the shared counter is never
	// decremented unless a hub override supersedes it.
	OnDemand bool
	// OnHand is the producer-owned shared stock count at snapshot time.
	OnHand int64
	// TaxCategoryID links the variant's own price to a tax category.
	TaxCategoryID *uuid.UUID
}

// WeightGrams returns the unit weight or zero when unset.
func (v Variant) WeightGrams() decimal.Decimal {
	if v.UnitWeight == nil {
		return decimal.Zero
	}
	return *v.UnitWeight
}

// VariantOverride is a hub-scoped shadow record, unique per
// (hub, variant). Absent fields inherit from the variant; pointers keep
// "override to zero" distinct from "no override".
type VariantOverride struct {
	HubID     uuid.UUID
	VariantID uuid.UUID
	// Price overrides the variant's base unit price when set.
	Price *money.Money
	// CountOnHand, when set, makes this override the sole stock
	// authority for the pair.
	CountOnHand *int64
	// UseProducerStock defers back to the producer's stock rules even
	// when CountOnHand is set.
	UseProducerStock bool
	// Resettable overrides are restored to DefaultStock by the
	// scheduled reset task.
	Resettable   bool
	DefaultStock *int64
}

// Exchange is a directed producer→hub (or hub→hub) link within one order
// cycle, carrying an ordered fee chain and the variants available
// through it.
type Exchange struct {
	ID           uuid.UUID
	OrderCycleID uuid.UUID
	SenderID     uuid.UUID
	ReceiverID   uuid.UUID
	// Open reflects whether the order cycle window is currently active.
	Open       bool
	VariantIDs []uuid.UUID
	// Fees preserves the exchange's stored application order.
	Fees []fees.EnterpriseFee
}

// Offers reports whether the exchange lists the given variant.
func (e Exchange) Offers(variantID uuid.UUID) bool {
	for _, id := range e.VariantIDs {
		if id == variantID {
			return true
		}
	}
	return false
}

// ShippingMethod is the thin slice of shipping the pricing engine sees: a
// label and a flat minor-unit amount contributed as an order adjustment.
type ShippingMethod struct {
	ID     uuid.UUID
	HubID  uuid.UUID
	Name   string
	Amount money.Money
}

// Snapshot supplies read-only catalog state keyed by id. Implementations
// must return point-in-time reads; the pricing engine never caches across
// calls that span a checkout.
type Snapshot interface {
	Variant(ctx context.Context, id uuid.UUID) (Variant, error)
	// Override returns nil when no override exists for the pair.
	Override(ctx context.Context, hubID, variantID uuid.UUID) (*VariantOverride, error)
	// ExchangeFor returns the open exchange delivering the variant to
	// the hub within the cycle, or nil when none does.
	ExchangeFor(ctx context.Context, hubID, cycleID, variantID uuid.UUID) (*Exchange, error)
	// TaxRate returns nil when the category has no applicable rate.
	TaxRate(ctx context.Context, taxCategoryID uuid.UUID) (*tax.Rate, error)
	ShippingMethod(ctx context.Context, id uuid.UUID) (ShippingMethod, error)
}
