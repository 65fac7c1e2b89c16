package shopfront

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/openharvest/backend-hub/internal/cache"
	"github.com/openharvest/backend-hub/internal/catalog"
	"github.com/openharvest/backend-hub/internal/money"
	"github.com/openharvest/backend-hub/internal/pricing"
	"github.com/openharvest/backend-hub/internal/stock"
	"github.com/openharvest/backend-hub/internal/tax"
)

var aud = money.Currency{Code: "AUD", Exponent: 2}

// fakeCatalog backs the lister, the resolver snapshot and the stock
// reads from the same in-memory state.
type fakeCatalog struct {
	variants  []catalog.Variant
	overrides map[[2]uuid.UUID]*catalog.VariantOverride
	exchange  *catalog.Exchange
	listCalls int
}

func (f *fakeCatalog) HubVariants(_ context.Context, _, _ uuid.UUID) ([]catalog.Variant, error) {
	f.listCalls++
	return f.variants, nil
}

func (f *fakeCatalog) Variant(_ context.Context, id uuid.UUID) (catalog.Variant, error) {
	for _, v := range f.variants {
		if v.ID == id {
			return v, nil
		}
	}
	return catalog.Variant{}, catalog.ErrVariantNotFound
}

func (f *fakeCatalog) Override(_ context.Context, hubID, variantID uuid.UUID) (*catalog.VariantOverride, error) {
	return f.overrides[[2]uuid.UUID{hubID, variantID}], nil
}

func (f *fakeCatalog) ExchangeFor(_ context.Context, _, _, _ uuid.UUID) (*catalog.Exchange, error) {
	return f.exchange, nil
}

func (f *fakeCatalog) TaxRate(_ context.Context, _ uuid.UUID) (*tax.Rate, error) {
	return nil, nil
}

func (f *fakeCatalog) ShippingMethod(_ context.Context, id uuid.UUID) (catalog.ShippingMethod, error) {
	return catalog.ShippingMethod{ID: id}, nil
}

type shopFixture struct {
	svc     *Service
	cat     *fakeCatalog
	hubID   uuid.UUID
	cycleID uuid.UUID
}

func newShopFixture(t *testing.T) *shopFixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hubID := uuid.New()
	cycleID := uuid.New()
	cat := &fakeCatalog{
		overrides: map[[2]uuid.UUID]*catalog.VariantOverride{},
		exchange: &catalog.Exchange{
			ID: uuid.New(), OrderCycleID: cycleID, ReceiverID: hubID, Open: true,
		},
	}
	ledger := stock.NewLedger(cat, nil)
	return &shopFixture{
		svc: &Service{
			Catalog: cat,
			Stock:   ledger,
			Pricer: &pricing.Resolver{
				Catalog: cat,
				Stock:   ledger,
				Tax:     tax.Engine{Currency: aud},
			},
			Cache:  cache.NewJSONCache(client, 30*time.Second),
			Logger: zerolog.Nop(),
		},
		cat:     cat,
		hubID:   hubID,
		cycleID: cycleID,
	}
}

func (f *shopFixture) addVariant(price money.Money, onHand int64, onDemand bool) uuid.UUID {
	id := uuid.New()
	f.cat.variants = append(f.cat.variants, catalog.Variant{
		ID: id, ProducerID: uuid.New(), Name: "variant", SKU: "SKU-1",
		Price: price, OnHand: onHand, OnDemand: onDemand,
	})
	f.cat.exchange.VariantIDs = append(f.cat.exchange.VariantIDs, id)
	return id
}

func TestListHidesExhaustedVariants(t *testing.T) {
	f := newShopFixture(t)
	stocked := f.addVariant(350, 5, false)
	f.addVariant(200, 0, false)
	onDemand := f.addVariant(150, 0, true)

	listing, err := f.svc.List(context.Background(), f.hubID, f.cycleID)
	require.NoError(t, err)
	require.Len(t, listing.Items, 2)
	require.Equal(t, stocked, listing.Items[0].VariantID)
	require.Equal(t, onDemand, listing.Items[1].VariantID)

	require.NotNil(t, listing.Items[0].Count)
	require.Equal(t, int64(5), *listing.Items[0].Count)
	require.True(t, listing.Items[1].OnDemand)
	require.Nil(t, listing.Items[1].Count)
}

func TestListUsesOverridePrice(t *testing.T) {
	f := newShopFixture(t)
	variantID := f.addVariant(350, 5, false)
	overridePrice := money.Money(299)
	f.cat.overrides[[2]uuid.UUID{f.hubID, variantID}] = &catalog.VariantOverride{
		HubID: f.hubID, VariantID: variantID, Price: &overridePrice,
	}

	listing, err := f.svc.List(context.Background(), f.hubID, f.cycleID)
	require.NoError(t, err)
	require.Len(t, listing.Items, 1)
	require.Equal(t, money.Money(299), listing.Items[0].Price)
}

func TestListServesSecondCallFromCache(t *testing.T) {
	f := newShopFixture(t)
	f.addVariant(350, 5, false)

	first, err := f.svc.List(context.Background(), f.hubID, f.cycleID)
	require.NoError(t, err)
	second, err := f.svc.List(context.Background(), f.hubID, f.cycleID)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, 1, f.cat.listCalls)
}

func TestInvalidateDropsHubListings(t *testing.T) {
	f := newShopFixture(t)
	variantID := f.addVariant(350, 5, false)

	_, err := f.svc.List(context.Background(), f.hubID, f.cycleID)
	require.NoError(t, err)

	// Change the override price, then invalidate; the next read must
	// rebuild instead of serving the stale cached listing.
	overridePrice := money.Money(299)
	f.cat.overrides[[2]uuid.UUID{f.hubID, variantID}] = &catalog.VariantOverride{
		HubID: f.hubID, VariantID: variantID, Price: &overridePrice,
	}
	require.NoError(t, f.svc.Invalidate(context.Background(), f.hubID))

	listing, err := f.svc.List(context.Background(), f.hubID, f.cycleID)
	require.NoError(t, err)
	require.Equal(t, money.Money(299), listing.Items[0].Price)
	require.Equal(t, 2, f.cat.listCalls)
}

func TestListWithoutCacheStillBuilds(t *testing.T) {
	f := newShopFixture(t)
	f.svc.Cache = nil
	f.addVariant(350, 5, false)

	listing, err := f.svc.List(context.Background(), f.hubID, f.cycleID)
	require.NoError(t, err)
	require.Len(t, listing.Items, 1)
}
