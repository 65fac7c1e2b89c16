package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/openharvest/backend-hub/internal/catalog"
	"github.com/openharvest/backend-hub/internal/fees"
	"github.com/openharvest/backend-hub/internal/money"
	"github.com/openharvest/backend-hub/internal/stock"
	"github.com/openharvest/backend-hub/internal/tax"
)

// ErrNotAvailable means the variant is not offered to this hub within the
// cycle, or its effective stock is exhausted and it is not on-demand.
// Recoverable: the caller should remove the item or pick another.
var ErrNotAvailable = errors.New("pricing: variant not available")

// TaxComponent is one tax rate's contribution to the unit price.
type TaxComponent struct {
	Rate   tax.Rate
	Amount money.Money
}

// Breakdown is the per-unit price decomposition for display and for
// adjustment materialisation. All amounts are minor units per unit; line
// totals scale by quantity so the per-unit floor is applied exactly once.
type Breakdown struct {
	VariantID uuid.UUID
	Base      money.Money
	Fees      map[fees.Type]money.Money
	// AppliedFees keeps per-fee detail in exchange order for
	// adjustment generation.
	AppliedFees []fees.Applied
	TaxParts    []TaxComponent
	Tax         money.Money
	Final       money.Money
}

// FeeTotal sums the per-type buckets.
func (b Breakdown) FeeTotal() money.Money {
	var total money.Money
	for _, amount := range b.Fees {
		total += amount
	}
	return total
}

// AvailabilityReader is the slice of the stock ledger the resolver needs.
type AvailabilityReader interface {
	Availability(ctx context.Context, hubID, variantID uuid.UUID) (stock.Availability, error)
}

// Resolver computes displayed unit prices. It is pure with respect to
// snapshot reads: identical inputs against unchanged state yield
// bit-identical breakdowns, which is what lets the storefront preview and
// the checkout commit agree exactly.
type Resolver struct {
	Catalog catalog.Snapshot
	Stock   AvailabilityReader
	Tax     tax.Engine
	// DefaultRate applies to taxable components whose category has no
	// configured rate. Nil means untaxed.
	DefaultRate *tax.Rate
}

// PriceFor resolves the unit price of quantity units of a variant bought
// from a hub within an order cycle. Quantity does not change the unit
// price today but is part of the contract so quantity-break pricing can
// slot in without a signature change.
func (r *Resolver) PriceFor(ctx context.Context, hubID, cycleID, variantID uuid.UUID, qty int64) (Breakdown, error) {
	if qty <= 0 {
		return Breakdown{}, fmt.Errorf("pricing: quantity must be positive, got %d", qty)
	}
	exchange, err := r.Catalog.ExchangeFor(ctx, hubID, cycleID, variantID)
	if err != nil {
		return Breakdown{}, fmt.Errorf("pricing: locate exchange: %w", err)
	}
	if exchange == nil || !exchange.Open || !exchange.Offers(variantID) {
		return Breakdown{}, ErrNotAvailable
	}
	variant, err := r.Catalog.Variant(ctx, variantID)
	if err != nil {
		return Breakdown{}, fmt.Errorf("pricing: load variant: %w", err)
	}
	override, err := r.Catalog.Override(ctx, hubID, variantID)
	if err != nil {
		return Breakdown{}, fmt.Errorf("pricing: load override: %w", err)
	}
	avail, err := r.Stock.Availability(ctx, hubID, variantID)
	if err != nil {
		return Breakdown{}, fmt.Errorf("pricing: read availability: %w", err)
	}
	if avail.Exhausted() {
		return Breakdown{}, ErrNotAvailable
	}

	base := variant.Price
	if override != nil && override.Price != nil {
		base = *override.Price
	}

	feeBreakdown := fees.Resolve(exchange.Fees, base, variant.WeightGrams(), r.Tax.Currency)

	breakdown := Breakdown{
		VariantID:   variantID,
		Base:        base,
		Fees:        feeBreakdown.PerType,
		AppliedFees: feeBreakdown.Applied,
	}
	if err := r.applyTax(ctx, &breakdown, variant, feeBreakdown); err != nil {
		return Breakdown{}, err
	}

	breakdown.Final = breakdown.Base + breakdown.FeeTotal()
	if !r.Tax.Inclusive {
		breakdown.Final += breakdown.Tax
	}
	return breakdown, nil
}

// applyTax accumulates tax for each taxable component: the variant's own
// price when it carries a tax category, and every fee that does.
func (r *Resolver) applyTax(ctx context.Context, b *Breakdown, variant catalog.Variant, fb fees.Breakdown) error {
	byRate := make(map[uuid.UUID]*TaxComponent)

	addBase := func(categoryID uuid.UUID, amount money.Money) error {
		rate, err := r.Catalog.TaxRate(ctx, categoryID)
		if err != nil {
			return fmt.Errorf("pricing: load tax rate: %w", err)
		}
		if rate == nil {
			rate = r.DefaultRate
		}
		if rate == nil {
			return nil
		}
		taxAmount := r.Tax.Apply(amount, rate.Rate)
		if taxAmount == 0 {
			return nil
		}
		if part, ok := byRate[rate.ID]; ok {
			part.Amount += taxAmount
		} else {
			byRate[rate.ID] = &TaxComponent{Rate: *rate, Amount: taxAmount}
		}
		return nil
	}

	if variant.TaxCategoryID != nil {
		if err := addBase(*variant.TaxCategoryID, b.Base); err != nil {
			return err
		}
	}
	for _, applied := range fb.Applied {
		if applied.Fee.TaxCategoryID == nil || applied.UnitAmount == 0 {
			continue
		}
		if err := addBase(*applied.Fee.TaxCategoryID, applied.UnitAmount); err != nil {
			return err
		}
	}

	ids := make([]uuid.UUID, 0, len(byRate))
	for id := range byRate {
		ids = append(ids, id)
	}
	// Deterministic part order keeps repeated resolutions bit-identical.
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		b.TaxParts = append(b.TaxParts, *byRate[id])
		b.Tax += byRate[id].Amount
	}
	return nil
}
