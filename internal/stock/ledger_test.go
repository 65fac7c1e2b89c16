package stock

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/openharvest/backend-hub/internal/catalog"
)

func int64p(v int64) *int64 { return &v }

func seedVariant(store *MemStore, onHand int64, onDemand bool) uuid.UUID {
	id := uuid.New()
	store.PutVariant(catalog.Variant{ID: id, Name: "carrots 1kg", Price: 350, OnHand: onHand, OnDemand: onDemand})
	return id
}

func TestAvailabilityOverrideWinsOverSharedCounter(t *testing.T) {
	store := NewMemStore()
	ledger := NewLedger(store, store)
	hubID := uuid.New()
	variantID := seedVariant(store, 100, false)
	store.PutOverride(catalog.VariantOverride{HubID: hubID, VariantID: variantID, CountOnHand: int64p(0)})

	avail, err := ledger.Availability(context.Background(), hubID, variantID)
	require.NoError(t, err)
	require.False(t, avail.OnDemand)
	require.NotNil(t, avail.Count)
	require.Equal(t, int64(0), *avail.Count)
	require.True(t, avail.Exhausted())
}

func TestAvailabilityUseProducerStockDefersToShared(t *testing.T) {
	store := NewMemStore()
	ledger := NewLedger(store, store)
	hubID := uuid.New()
	variantID := seedVariant(store, 7, false)
	store.PutOverride(catalog.VariantOverride{
		HubID: hubID, VariantID: variantID,
		CountOnHand: int64p(0), UseProducerStock: true,
	})

	avail, err := ledger.Availability(context.Background(), hubID, variantID)
	require.NoError(t, err)
	require.NotNil(t, avail.Count)
	require.Equal(t, int64(7), *avail.Count)
}

func TestAvailabilityOverrideCountCapsOnDemandVariant(t *testing.T) {
	store := NewMemStore()
	ledger := NewLedger(store, store)
	hubID := uuid.New()
	variantID := seedVariant(store, 0, true)
	store.PutOverride(catalog.VariantOverride{HubID: hubID, VariantID: variantID, CountOnHand: int64p(6)})

	avail, err := ledger.Availability(context.Background(), hubID, variantID)
	require.NoError(t, err)
	require.False(t, avail.OnDemand)
	require.NotNil(t, avail.Count)
	require.Equal(t, int64(6), *avail.Count)
}

func TestAvailabilityOnDemandIsUnlimited(t *testing.T) {
	store := NewMemStore()
	ledger := NewLedger(store, store)
	variantID := seedVariant(store, 0, true)

	avail, err := ledger.Availability(context.Background(), uuid.New(), variantID)
	require.NoError(t, err)
	require.True(t, avail.OnDemand)
	require.Nil(t, avail.Count)
	require.False(t, avail.Exhausted())
}

func TestDecrementRoutesToOverrideCounter(t *testing.T) {
	store := NewMemStore()
	ledger := NewLedger(store, store)
	hubID := uuid.New()
	variantID := seedVariant(store, 100, false)
	store.PutOverride(catalog.VariantOverride{HubID: hubID, VariantID: variantID, CountOnHand: int64p(5)})

	require.NoError(t, ledger.Decrement(context.Background(), hubID, variantID, 3))

	// Only the override moved; the shared counter is untouched.
	require.Equal(t, int64(2), *store.OverrideCount(hubID, variantID))
	require.Equal(t, int64(100), store.SharedCount(variantID))
}

func TestDecrementOnDemandIsNoOp(t *testing.T) {
	store := NewMemStore()
	ledger := NewLedger(store, store)
	variantID := seedVariant(store, 0, true)

	require.NoError(t, ledger.Decrement(context.Background(), uuid.New(), variantID, 50))
	require.Equal(t, int64(0), store.SharedCount(variantID))
}

func TestDecrementShortfallReportsAvailable(t *testing.T) {
	store := NewMemStore()
	ledger := NewLedger(store, store)
	variantID := seedVariant(store, 2, false)

	err := ledger.Decrement(context.Background(), uuid.New(), variantID, 3)
	insufficient, ok := AsInsufficientStock(err)
	require.True(t, ok)
	require.Equal(t, int64(2), insufficient.Available)
	require.Equal(t, int64(2), store.SharedCount(variantID))
}

func TestDecrementConcurrentTakersNeverOversell(t *testing.T) {
	store := NewMemStore()
	ledger := NewLedger(store, store)
	hubID := uuid.New()
	variantID := seedVariant(store, 8, false)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- ledger.Decrement(context.Background(), hubID, variantID, 5)
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		insufficient, ok := AsInsufficientStock(err)
		require.True(t, ok)
		require.Equal(t, int64(3), insufficient.Available)
		rejected++
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, rejected)
	require.Equal(t, int64(3), store.SharedCount(variantID))
}

func TestDecrementRejectsNonPositiveQuantity(t *testing.T) {
	store := NewMemStore()
	ledger := NewLedger(store, store)
	variantID := seedVariant(store, 10, false)

	require.Error(t, ledger.Decrement(context.Background(), uuid.New(), variantID, 0))
	require.Error(t, ledger.Decrement(context.Background(), uuid.New(), variantID, -1))
}

func TestDecrementAllFailsBeforeAnyCounterMoves(t *testing.T) {
	store := NewMemStore()
	ledger := NewLedger(store, store)
	hubID := uuid.New()
	plentiful := seedVariant(store, 10, false)
	scarce := seedVariant(store, 1, false)

	_, err := ledger.DecrementAll(context.Background(), []Decrement{
		{HubID: hubID, VariantID: plentiful, Qty: 5},
		{HubID: hubID, VariantID: scarce, Qty: 2},
	})
	insufficient, ok := AsInsufficientStock(err)
	require.True(t, ok)
	require.Equal(t, scarce, insufficient.VariantID)

	// The upfront check rejected the batch before the first decrement.
	require.Equal(t, int64(10), store.SharedCount(plentiful))
	require.Equal(t, int64(1), store.SharedCount(scarce))
}

func TestDecrementAllReportsDepletedPairs(t *testing.T) {
	store := NewMemStore()
	ledger := NewLedger(store, store)
	hubID := uuid.New()
	exact := seedVariant(store, 3, false)
	spare := seedVariant(store, 10, false)
	onDemand := seedVariant(store, 0, true)

	depleted, err := ledger.DecrementAll(context.Background(), []Decrement{
		{HubID: hubID, VariantID: exact, Qty: 3},
		{HubID: hubID, VariantID: spare, Qty: 4},
		{HubID: hubID, VariantID: onDemand, Qty: 2},
	})
	require.NoError(t, err)
	require.Len(t, depleted, 1)
	require.Equal(t, exact, depleted[0].VariantID)
	require.Equal(t, int64(0), store.SharedCount(exact))
	require.Equal(t, int64(6), store.SharedCount(spare))
}
