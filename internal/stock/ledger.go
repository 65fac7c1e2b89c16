package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/openharvest/backend-hub/internal/catalog"
)

// InsufficientStockError reports a decrement that would have taken a
// counter negative. Available carries the count the caller can still take;
// the ledger never clamps quantities on the caller's behalf.
type InsufficientStockError struct {
	HubID     uuid.UUID
	VariantID uuid.UUID
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s: %d available", e.VariantID, e.Available)
}

// AsInsufficientStock unwraps err into an InsufficientStockError if one is
// present anywhere in the chain.
func AsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var target *InsufficientStockError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Availability describes what a storefront may promise for a pair.
type Availability struct {
	OnDemand bool
	// Count is nil when supply is unlimited.
	Count *int64
}

// Exhausted reports whether nothing can be sold from this availability.
func (a Availability) Exhausted() bool {
	return !a.OnDemand && a.Count != nil && *a.Count <= 0
}

// CatalogReader supplies the variant and override snapshots the ledger
// resolves against. catalog.Snapshot satisfies it.
type CatalogReader interface {
	Variant(ctx context.Context, id uuid.UUID) (catalog.Variant, error)
	Override(ctx context.Context, hubID, variantID uuid.UUID) (*catalog.VariantOverride, error)
}

// CounterStore performs atomic conditional decrements against the two
// backing ledgers. Implementations must expose "read count, conditionally
// subtract, fail if it would go negative" as a single operation; shortfall
// is reported as *InsufficientStockError carrying the remaining count.
type CounterStore interface {
	DecrementShared(ctx context.Context, variantID uuid.UUID, qty int64) (remaining int64, err error)
	DecrementOverride(ctx context.Context, hubID, variantID uuid.UUID, qty int64) (remaining int64, err error)
}

// Decrement is one unit of work for DecrementAll.
type Decrement struct {
	HubID     uuid.UUID
	VariantID uuid.UUID
	Qty       int64
}

// Ledger resolves which backing store governs a (hub, variant) pair and
// performs availability reads and decrements against it. Resolution is
// evaluated fresh on every call; nothing is cached across a checkout.
type Ledger struct {
	Catalog  CatalogReader
	Counters CounterStore
}

// NewLedger builds a ledger over the given snapshot and counter store.
func NewLedger(cat CatalogReader, counters CounterStore) *Ledger {
	return &Ledger{Catalog: cat, Counters: counters}
}

// Availability resolves the authoritative source for the pair:
//
//  1. An override with CountOnHand set is authoritative and never
//     on-demand, unless it defers to producer stock settings.
//  2. Otherwise an on-demand variant is unlimited.
//  3. Otherwise the producer's shared counter governs.
func (l *Ledger) Availability(ctx context.Context, hubID, variantID uuid.UUID) (Availability, error) {
	variant, err := l.Catalog.Variant(ctx, variantID)
	if err != nil {
		return Availability{}, fmt.Errorf("stock: load variant: %w", err)
	}
	override, err := l.Catalog.Override(ctx, hubID, variantID)
	if err != nil {
		return Availability{}, fmt.Errorf("stock: load override: %w", err)
	}
	if override != nil && override.CountOnHand != nil && !override.UseProducerStock {
		count := *override.CountOnHand
		return Availability{OnDemand: false, Count: &count}, nil
	}
	if variant.OnDemand {
		return Availability{OnDemand: true}, nil
	}
	count := variant.OnHand
	return Availability{Count: &count}, nil
}

// Decrement atomically subtracts qty from the authoritative counter for
// the pair. On-demand supply (rule 2) has nothing to subtract and the
// call is a no-op. A shortfall returns *InsufficientStockError and leaves
// the counter untouched.
func (l *Ledger) Decrement(ctx context.Context, hubID, variantID uuid.UUID, qty int64) error {
	_, err := l.decrement(ctx, Decrement{HubID: hubID, VariantID: variantID, Qty: qty})
	return err
}

// DecrementAll applies every decrement or none. Availability is checked
// upfront for each pair so sequential callers fail before any counter
// moves; callers running inside a storage transaction additionally get
// rollback of applied decrements when a later one loses a race. It
// returns the pairs whose counters reached zero.
func (l *Ledger) DecrementAll(ctx context.Context, items []Decrement) ([]Decrement, error) {
	for _, item := range items {
		avail, err := l.Availability(ctx, item.HubID, item.VariantID)
		if err != nil {
			return nil, err
		}
		if avail.Count != nil && *avail.Count < item.Qty {
			return nil, &InsufficientStockError{HubID: item.HubID, VariantID: item.VariantID, Available: *avail.Count}
		}
	}
	var depleted []Decrement
	for _, item := range items {
		remaining, err := l.decrement(ctx, item)
		if err != nil {
			return nil, err
		}
		if remaining == 0 {
			depleted = append(depleted, item)
		}
	}
	return depleted, nil
}

// decrement returns the remaining count, or -1 when the pair is on-demand
// and no counter was touched.
func (l *Ledger) decrement(ctx context.Context, item Decrement) (int64, error) {
	if item.Qty <= 0 {
		return -1, fmt.Errorf("stock: decrement quantity must be positive, got %d", item.Qty)
	}
	variant, err := l.Catalog.Variant(ctx, item.VariantID)
	if err != nil {
		return -1, fmt.Errorf("stock: load variant: %w", err)
	}
	override, err := l.Catalog.Override(ctx, item.HubID, item.VariantID)
	if err != nil {
		return -1, fmt.Errorf("stock: load override: %w", err)
	}
	if override != nil && override.CountOnHand != nil && !override.UseProducerStock {
		return l.Counters.DecrementOverride(ctx, item.HubID, item.VariantID, item.Qty)
	}
	if variant.OnDemand {
		return -1, nil
	}
	return l.Counters.DecrementShared(ctx, item.VariantID, item.Qty)
}
