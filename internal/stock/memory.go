package stock

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/openharvest/backend-hub/internal/catalog"
)

type pairKey struct {
	hub     uuid.UUID
	variant uuid.UUID
}

// MemStore is an in-memory catalog reader and counter store. It backs
// tests and local development; the production path uses the Postgres
// store. All operations take a single mutex so conditional decrements are
// linearizable per process.
type MemStore struct {
	mu        sync.Mutex
	variants  map[uuid.UUID]catalog.Variant
	overrides map[pairKey]catalog.VariantOverride
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		variants:  make(map[uuid.UUID]catalog.Variant),
		overrides: make(map[pairKey]catalog.VariantOverride),
	}
}

// PutVariant seeds or replaces a variant.
func (s *MemStore) PutVariant(v catalog.Variant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.variants[v.ID] = v
}

// PutOverride seeds or replaces an override.
func (s *MemStore) PutOverride(o catalog.VariantOverride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[pairKey{o.HubID, o.VariantID}] = o
}

// Variant implements CatalogReader.
func (s *MemStore) Variant(_ context.Context, id uuid.UUID) (catalog.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[id]
	if !ok {
		return catalog.Variant{}, fmt.Errorf("stock: variant %s not found", id)
	}
	return v, nil
}

// Override implements CatalogReader. A missing override is nil, not an
// error.
func (s *MemStore) Override(_ context.Context, hubID, variantID uuid.UUID) (*catalog.VariantOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.overrides[pairKey{hubID, variantID}]
	if !ok {
		return nil, nil
	}
	copied := o
	return &copied, nil
}

// DecrementShared implements CounterStore.
func (s *MemStore) DecrementShared(_ context.Context, variantID uuid.UUID, qty int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[variantID]
	if !ok {
		return 0, fmt.Errorf("stock: variant %s not found", variantID)
	}
	if v.OnHand < qty {
		return v.OnHand, &InsufficientStockError{VariantID: variantID, Available: v.OnHand}
	}
	v.OnHand -= qty
	s.variants[variantID] = v
	return v.OnHand, nil
}

// DecrementOverride implements CounterStore.
func (s *MemStore) DecrementOverride(_ context.Context, hubID, variantID uuid.UUID, qty int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey{hubID, variantID}
	o, ok := s.overrides[key]
	if !ok || o.CountOnHand == nil {
		return 0, fmt.Errorf("stock: no override counter for hub %s variant %s", hubID, variantID)
	}
	if *o.CountOnHand < qty {
		return *o.CountOnHand, &InsufficientStockError{HubID: hubID, VariantID: variantID, Available: *o.CountOnHand}
	}
	remaining := *o.CountOnHand - qty
	o.CountOnHand = &remaining
	s.overrides[key] = o
	return remaining, nil
}

// SharedCount reports the current shared counter, for tests.
func (s *MemStore) SharedCount(variantID uuid.UUID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.variants[variantID].OnHand
}

// OverrideCount reports the current override counter, for tests.
func (s *MemStore) OverrideCount(hubID, variantID uuid.UUID) *int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.overrides[pairKey{hubID, variantID}]
	if !ok {
		return nil
	}
	return o.CountOnHand
}
