package shopfront

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openharvest/backend-hub/internal/cache"
	"github.com/openharvest/backend-hub/internal/catalog"
	"github.com/openharvest/backend-hub/internal/money"
	"github.com/openharvest/backend-hub/internal/obs"
	"github.com/openharvest/backend-hub/internal/pricing"
	"github.com/openharvest/backend-hub/internal/stock"
)

// Lister enumerates the variants a hub offers within a cycle.
// *catalog.PGStore satisfies it.
type Lister interface {
	HubVariants(ctx context.Context, hubID, cycleID uuid.UUID) ([]catalog.Variant, error)
}

// Item is one purchasable entry in the hub's listing. Price is the
// resolved per-unit final the checkout will charge.
type Item struct {
	VariantID  uuid.UUID   `json:"variantId"`
	ProducerID uuid.UUID   `json:"producerId"`
	Name       string      `json:"name"`
	SKU        string      `json:"sku"`
	Price      money.Money `json:"price"`
	OnDemand   bool        `json:"onDemand"`
	// Count is omitted for on-demand supply.
	Count *int64 `json:"count,omitempty"`
}

// Listing is the cache unit for a (hub, cycle) pair.
type Listing struct {
	HubID        uuid.UUID `json:"hubId"`
	OrderCycleID uuid.UUID `json:"orderCycleId"`
	Items        []Item    `json:"items"`
}

// Service renders hub product listings: override-aware prices and
// availability, with exhausted non-on-demand variants hidden.
type Service struct {
	Catalog Lister
	Stock   *stock.Ledger
	Pricer  *pricing.Resolver
	Cache   *cache.JSONCache
	Logger  zerolog.Logger
}

// List returns the listing for the hub and cycle, serving from cache
// when a fresh copy exists.
func (s *Service) List(ctx context.Context, hubID, cycleID uuid.UUID) (Listing, error) {
	if s == nil || s.Catalog == nil || s.Stock == nil || s.Pricer == nil {
		return Listing{}, errors.New("shopfront: service not configured")
	}
	key := cache.ShopfrontKey(hubID, cycleID)
	var cached Listing
	hit, err := s.Cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("shopfront cache read")
	}
	s.observeCache(hit)
	if hit {
		return cached, nil
	}

	listing, err := s.build(ctx, hubID, cycleID)
	if err != nil {
		return Listing{}, err
	}
	if err := s.Cache.SetJSON(ctx, key, listing); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("shopfront cache write")
	}
	return listing, nil
}

// Invalidate drops every cached listing for the hub. Called after
// override changes so shoppers never see stale shadow prices.
func (s *Service) Invalidate(ctx context.Context, hubID uuid.UUID) error {
	return s.Cache.InvalidatePattern(ctx, cache.ShopfrontHubPattern(hubID))
}

func (s *Service) build(ctx context.Context, hubID, cycleID uuid.UUID) (Listing, error) {
	variants, err := s.Catalog.HubVariants(ctx, hubID, cycleID)
	if err != nil {
		return Listing{}, fmt.Errorf("shopfront: list variants: %w", err)
	}
	listing := Listing{HubID: hubID, OrderCycleID: cycleID, Items: make([]Item, 0, len(variants))}
	for _, v := range variants {
		avail, err := s.Stock.Availability(ctx, hubID, v.ID)
		if err != nil {
			return Listing{}, fmt.Errorf("shopfront: availability for %s: %w", v.ID, err)
		}
		if avail.Exhausted() {
			continue
		}
		bd, err := s.Pricer.PriceFor(ctx, hubID, cycleID, v.ID, 1)
		if errors.Is(err, pricing.ErrNotAvailable) {
			continue
		}
		if err != nil {
			return Listing{}, fmt.Errorf("shopfront: price for %s: %w", v.ID, err)
		}
		item := Item{
			VariantID:  v.ID,
			ProducerID: v.ProducerID,
			Name:       v.Name,
			SKU:        v.SKU,
			Price:      bd.Final,
			OnDemand:   avail.OnDemand,
		}
		if avail.Count != nil {
			count := *avail.Count
			item.Count = &count
		}
		listing.Items = append(listing.Items, item)
	}
	return listing, nil
}

func (s *Service) observeCache(hit bool) {
	if obs.ShopfrontCacheTotal == nil {
		return
	}
	if hit {
		obs.ShopfrontCacheTotal.WithLabelValues("hit").Inc()
	} else {
		obs.ShopfrontCacheTotal.WithLabelValues("miss").Inc()
	}
}
