package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/openharvest/backend-hub/internal/catalog"
	"github.com/openharvest/backend-hub/internal/money"
	"github.com/openharvest/backend-hub/internal/pricing"
	"github.com/openharvest/backend-hub/internal/stock"
)

// Pricer resolves unit prices; *pricing.Resolver satisfies it.
type Pricer interface {
	PriceFor(ctx context.Context, hubID, cycleID, variantID uuid.UUID, qty int64) (pricing.Breakdown, error)
}

// StockWriter is the transactional slice of the stock ledger used during
// commit.
type StockWriter interface {
	DecrementAll(ctx context.Context, items []stock.Decrement) ([]stock.Decrement, error)
}

// Store persists order state. Implementations are handed to the
// recalculator transaction-scoped via Tx.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (Order, error)
	SaveLineItemPrice(ctx context.Context, orderID, lineItemID uuid.UUID, price money.Money) error
	// ReplaceOpenAdjustments deletes the order's open adjustments and
	// inserts the given set; closed rows are untouched.
	ReplaceOpenAdjustments(ctx context.Context, orderID uuid.UUID, adjs []Adjustment) error
	SetDistribution(ctx context.Context, orderID, hubID, cycleID uuid.UUID) error
	SetState(ctx context.Context, orderID uuid.UUID, state State, total money.Money) error
}

// Stores bundles everything a recalculation step touches inside one
// transactional boundary.
type Stores struct {
	Orders Store
	Stock  StockWriter
}

// Tx runs fn inside a storage transaction; fn's stores see and produce
// all-or-nothing effects. The commit transition relies on this as its
// unit of cancellation.
type Tx interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

// CompleteResult reports what a successful commit did.
type CompleteResult struct {
	Total money.Money
	// Depleted lists (hub, variant) pairs whose counters reached zero.
	Depleted []stock.Decrement
}

// Recalculator rebuilds an order's prices and adjustment set whenever its
// contents, distributor, or order cycle change, and drives the
// building→complete transition.
type Recalculator struct {
	Pricer  Pricer
	Catalog catalog.Snapshot
	Tx      Tx
}

// OnCartChange re-resolves every line item of a building order and
// regenerates its open adjustments. Closed adjustments are preserved by
// (source kind, source id) key.
func (r *Recalculator) OnCartChange(ctx context.Context, orderID uuid.UUID) error {
	return r.Tx.InTx(ctx, func(ctx context.Context, s Stores) error {
		o, err := s.Orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.State != Building {
			return ErrNotBuilding
		}
		breakdowns, err := r.resolveAll(ctx, o)
		if err != nil {
			return err
		}
		return r.persist(ctx, s, o, breakdowns)
	})
}

// SetDistribution changes the order's distributor and/or order cycle.
// Every line item is re-resolved against the new exchanges; if any
// variant is not offered there the whole change fails with
// IncompatibleSelectionError.
func (r *Recalculator) SetDistribution(ctx context.Context, orderID, hubID, cycleID uuid.UUID) error {
	return r.Tx.InTx(ctx, func(ctx context.Context, s Stores) error {
		o, err := s.Orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.State != Building {
			return ErrNotBuilding
		}
		o.HubID = hubID
		o.OrderCycleID = cycleID

		var missing []uuid.UUID
		breakdowns := make([]pricing.Breakdown, 0, len(o.LineItems))
		for _, li := range o.LineItems {
			bd, err := r.Pricer.PriceFor(ctx, hubID, cycleID, li.VariantID, li.Quantity)
			if errors.Is(err, pricing.ErrNotAvailable) {
				missing = append(missing, li.VariantID)
				continue
			}
			if err != nil {
				return err
			}
			breakdowns = append(breakdowns, bd)
		}
		if len(missing) > 0 {
			return &IncompatibleSelectionError{VariantIDs: missing}
		}
		if err := s.Orders.SetDistribution(ctx, orderID, hubID, cycleID); err != nil {
			return err
		}
		return r.persist(ctx, s, o, breakdowns)
	})
}

// Complete performs the building→complete transition exactly once:
// re-resolve every line item, verify the prices the client last saw,
// decrement stock for all lines, freeze line prices, materialize open
// adjustments, and mark the order complete. Any failure aborts the whole
// transition with no partial decrement and no partial freeze.
//
// seenPrices maps line item id to the unit price the client rendered;
// entries are optional but any provided entry must match exactly.
func (r *Recalculator) Complete(ctx context.Context, orderID uuid.UUID, seenPrices map[uuid.UUID]money.Money) (CompleteResult, error) {
	var result CompleteResult
	err := r.Tx.InTx(ctx, func(ctx context.Context, s Stores) error {
		o, err := s.Orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.State != Building {
			return ErrNotBuilding
		}
		if len(o.LineItems) == 0 {
			return ErrEmptyOrder
		}
		breakdowns, err := r.resolveAll(ctx, o)
		if err != nil {
			return err
		}
		for i, li := range o.LineItems {
			seen, ok := seenPrices[li.ID]
			if ok && seen != breakdowns[i].Final {
				return &PriceMismatchError{LineItemID: li.ID, Seen: seen, Actual: breakdowns[i].Final}
			}
		}

		decrements := make([]stock.Decrement, 0, len(o.LineItems))
		for _, li := range o.LineItems {
			decrements = append(decrements, stock.Decrement{
				HubID:     o.HubID,
				VariantID: li.VariantID,
				Qty:       li.Quantity,
			})
		}
		depleted, err := s.Stock.DecrementAll(ctx, decrements)
		if err != nil {
			return err
		}

		total, err := r.persistPrices(ctx, s, o, breakdowns)
		if err != nil {
			return err
		}
		if err := r.persistAdjustments(ctx, s, o, breakdowns, &total); err != nil {
			return err
		}
		if err := s.Orders.SetState(ctx, orderID, Complete, total); err != nil {
			return err
		}
		result = CompleteResult{Total: total, Depleted: depleted}
		return nil
	})
	return result, err
}

// Cancel transitions an order to cancelled. Restocking is an external
// administrative operation and is deliberately not performed here.
func (r *Recalculator) Cancel(ctx context.Context, orderID uuid.UUID) error {
	return r.Tx.InTx(ctx, func(ctx context.Context, s Stores) error {
		o, err := s.Orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if o.State == Cancelled {
			return ErrAlreadyCancelled
		}
		return s.Orders.SetState(ctx, orderID, Cancelled, o.Total)
	})
}

func (r *Recalculator) resolveAll(ctx context.Context, o Order) ([]pricing.Breakdown, error) {
	breakdowns := make([]pricing.Breakdown, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		bd, err := r.Pricer.PriceFor(ctx, o.HubID, o.OrderCycleID, li.VariantID, li.Quantity)
		if err != nil {
			return nil, fmt.Errorf("resolve line item %s: %w", li.ID, err)
		}
		breakdowns = append(breakdowns, bd)
	}
	return breakdowns, nil
}

// persist writes resolved prices and the regenerated adjustment set for a
// building order and refreshes the running total.
func (r *Recalculator) persist(ctx context.Context, s Stores, o Order, breakdowns []pricing.Breakdown) error {
	total, err := r.persistPrices(ctx, s, o, breakdowns)
	if err != nil {
		return err
	}
	if err := r.persistAdjustments(ctx, s, o, breakdowns, &total); err != nil {
		return err
	}
	return s.Orders.SetState(ctx, o.ID, o.State, total)
}

func (r *Recalculator) persistPrices(ctx context.Context, s Stores, o Order, breakdowns []pricing.Breakdown) (money.Money, error) {
	var total money.Money
	for i, li := range o.LineItems {
		final := breakdowns[i].Final
		if li.Price != final {
			if err := s.Orders.SaveLineItemPrice(ctx, o.ID, li.ID, final); err != nil {
				return 0, err
			}
		}
		total += final * li.Quantity
	}
	return total, nil
}

// persistAdjustments computes the desired adjustment set fresh, merges it
// against persisted closed entries, and replaces the open ones. Shipping
// contributes to the order total on top of line prices; fee and tax
// adjustments itemize amounts already embedded in the unit finals.
func (r *Recalculator) persistAdjustments(ctx context.Context, s Stores, o Order, breakdowns []pricing.Breakdown, total *money.Money) error {
	desired, err := r.desiredAdjustments(ctx, o, breakdowns)
	if err != nil {
		return err
	}

	closed := make(map[adjustmentKey]Adjustment)
	for _, adj := range o.Adjustments {
		if adj.State == AdjustmentClosed {
			closed[adj.key()] = adj
		}
	}

	open := make([]Adjustment, 0, len(desired))
	for _, adj := range desired {
		if kept, ok := closed[adj.key()]; ok {
			// A manually edited charge wins over the recompute.
			if adj.SourceKind == SourceShippingMethod {
				*total += kept.Amount
			}
			continue
		}
		if adj.SourceKind == SourceShippingMethod {
			*total += adj.Amount
		}
		open = append(open, adj)
	}
	return s.Orders.ReplaceOpenAdjustments(ctx, o.ID, open)
}

func (r *Recalculator) desiredAdjustments(ctx context.Context, o Order, breakdowns []pricing.Breakdown) ([]Adjustment, error) {
	feeTotals := make(map[adjustmentKey]*Adjustment)
	taxTotals := make(map[adjustmentKey]*Adjustment)
	var ordered []adjustmentKey

	for i, li := range o.LineItems {
		for _, applied := range breakdowns[i].AppliedFees {
			if applied.UnitAmount == 0 {
				continue
			}
			key := adjustmentKey{kind: SourceEnterpriseFee, id: applied.Fee.ID}
			adj, ok := feeTotals[key]
			if !ok {
				adj = &Adjustment{
					OrderID:    o.ID,
					SourceKind: SourceEnterpriseFee,
					SourceID:   applied.Fee.ID,
					Label:      fmt.Sprintf("%s fee: %s", applied.Fee.Type, applied.Fee.Name),
					State:      AdjustmentOpen,
				}
				feeTotals[key] = adj
				ordered = append(ordered, key)
			}
			adj.Amount += applied.UnitAmount * li.Quantity
		}
		for _, part := range breakdowns[i].TaxParts {
			key := adjustmentKey{kind: SourceTaxRate, id: part.Rate.ID}
			adj, ok := taxTotals[key]
			if !ok {
				adj = &Adjustment{
					OrderID:    o.ID,
					SourceKind: SourceTaxRate,
					SourceID:   part.Rate.ID,
					Label:      part.Rate.Name,
					State:      AdjustmentOpen,
				}
				taxTotals[key] = adj
				ordered = append(ordered, key)
			}
			adj.Amount += part.Amount * li.Quantity
		}
	}

	out := make([]Adjustment, 0, len(ordered)+1)
	for _, key := range ordered {
		if adj, ok := feeTotals[key]; ok {
			out = append(out, *adj)
		} else if adj, ok := taxTotals[key]; ok {
			out = append(out, *adj)
		}
	}

	if o.ShippingMethodID != nil {
		method, err := r.Catalog.ShippingMethod(ctx, *o.ShippingMethodID)
		if err != nil {
			return nil, fmt.Errorf("load shipping method: %w", err)
		}
		out = append(out, Adjustment{
			OrderID:    o.ID,
			SourceKind: SourceShippingMethod,
			SourceID:   method.ID,
			Label:      method.Name,
			Amount:     method.Amount,
			State:      AdjustmentOpen,
		})
	}
	return out, nil
}
