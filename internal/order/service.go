package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openharvest/backend-hub/internal/catalog"
)

// ErrLineItemNotFound indicates the line item does not belong to the order.
var ErrLineItemNotFound = errors.New("order: line item not found")

// ErrWrongHub rejects a shipping method that belongs to another hub.
var ErrWrongHub = errors.New("order: shipping method belongs to another hub")

// Service owns cart mutations. Every mutation re-resolves prices through
// the recalculator so the stored order always reflects current pricing.
type Service struct {
	Pool    *pgxpool.Pool
	Store   Store
	Recalc  *Recalculator
	Catalog catalog.Snapshot
}

// Create opens a new building order against the given distribution.
func (s *Service) Create(ctx context.Context, hubID, cycleID uuid.UUID) (Order, error) {
	if s == nil || s.Pool == nil {
		return Order{}, errors.New("order: service not configured")
	}
	id := uuid.New()
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO orders (id, hub_id, order_cycle_id, state, total)
		 VALUES ($1, $2, $3, $4, 0)`,
		id, hubID, cycleID, Building)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return Order{}, fmt.Errorf("order: unknown hub or order cycle: %w", ErrNotFound)
		}
		return Order{}, fmt.Errorf("order: create: %w", err)
	}
	return s.Store.Get(ctx, id)
}

// Get loads an order with its line items and adjustments.
func (s *Service) Get(ctx context.Context, orderID uuid.UUID) (Order, error) {
	return s.Store.Get(ctx, orderID)
}

// AddItem puts qty units of a variant into a building order, merging with
// an existing line for the same variant. The variant is priced against
// the order's distribution first so an unavailable variant is rejected
// before anything is written.
func (s *Service) AddItem(ctx context.Context, orderID, variantID uuid.UUID, qty int64) (Order, error) {
	if qty <= 0 {
		return Order{}, fmt.Errorf("order: quantity must be positive, got %d", qty)
	}
	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.State != Building {
		return Order{}, ErrNotBuilding
	}
	bd, err := s.Recalc.Pricer.PriceFor(ctx, o.HubID, o.OrderCycleID, variantID, qty)
	if err != nil {
		return Order{}, err
	}
	_, err = s.Pool.Exec(ctx,
		`INSERT INTO line_items (id, order_id, variant_id, quantity, price)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (order_id, variant_id) DO UPDATE SET
		   quantity = line_items.quantity + EXCLUDED.quantity`,
		uuid.New(), orderID, variantID, qty, bd.Final)
	if err != nil {
		return Order{}, fmt.Errorf("order: add line item: %w", err)
	}
	return s.recalculated(ctx, orderID)
}

// UpdateItem sets the quantity of a line item; zero removes it.
func (s *Service) UpdateItem(ctx context.Context, orderID, lineItemID uuid.UUID, qty int64) (Order, error) {
	if qty < 0 {
		return Order{}, fmt.Errorf("order: quantity must not be negative, got %d", qty)
	}
	if qty == 0 {
		return s.RemoveItem(ctx, orderID, lineItemID)
	}
	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.State != Building {
		return Order{}, ErrNotBuilding
	}
	tag, err := s.Pool.Exec(ctx,
		`UPDATE line_items SET quantity = $3 WHERE order_id = $1 AND id = $2`,
		orderID, lineItemID, qty)
	if err != nil {
		return Order{}, fmt.Errorf("order: update line item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Order{}, ErrLineItemNotFound
	}
	return s.recalculated(ctx, orderID)
}

// RemoveItem deletes a line item from a building order.
func (s *Service) RemoveItem(ctx context.Context, orderID, lineItemID uuid.UUID) (Order, error) {
	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.State != Building {
		return Order{}, ErrNotBuilding
	}
	tag, err := s.Pool.Exec(ctx,
		`DELETE FROM line_items WHERE order_id = $1 AND id = $2`,
		orderID, lineItemID)
	if err != nil {
		return Order{}, fmt.Errorf("order: remove line item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Order{}, ErrLineItemNotFound
	}
	return s.recalculated(ctx, orderID)
}

// SetShippingMethod attaches a shipping method from the order's hub, or
// clears it when methodID is nil.
func (s *Service) SetShippingMethod(ctx context.Context, orderID uuid.UUID, methodID *uuid.UUID) (Order, error) {
	o, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.State != Building {
		return Order{}, ErrNotBuilding
	}
	if methodID != nil {
		method, err := s.Catalog.ShippingMethod(ctx, *methodID)
		if err != nil {
			return Order{}, err
		}
		if method.HubID != o.HubID {
			return Order{}, ErrWrongHub
		}
	}
	_, err = s.Pool.Exec(ctx,
		`UPDATE orders SET shipping_method_id = $2 WHERE id = $1`,
		orderID, methodID)
	if err != nil {
		return Order{}, fmt.Errorf("order: set shipping method: %w", err)
	}
	return s.recalculated(ctx, orderID)
}

// SetDistribution moves the order to another hub and/or cycle; every line
// item must still be offered there.
func (s *Service) SetDistribution(ctx context.Context, orderID, hubID, cycleID uuid.UUID) (Order, error) {
	if err := s.Recalc.SetDistribution(ctx, orderID, hubID, cycleID); err != nil {
		return Order{}, err
	}
	return s.Store.Get(ctx, orderID)
}

func (s *Service) recalculated(ctx context.Context, orderID uuid.UUID) (Order, error) {
	if err := s.Recalc.OnCartChange(ctx, orderID); err != nil {
		return Order{}, err
	}
	return s.Store.Get(ctx, orderID)
}
