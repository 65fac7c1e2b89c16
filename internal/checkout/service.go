package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openharvest/backend-hub/internal/events"
	"github.com/openharvest/backend-hub/internal/lock"
	"github.com/openharvest/backend-hub/internal/money"
	"github.com/openharvest/backend-hub/internal/obs"
	"github.com/openharvest/backend-hub/internal/order"
	"github.com/openharvest/backend-hub/internal/stock"
)

// ErrBusy is returned when another commit for the same order is already
// in flight.
var ErrBusy = errors.New("checkout: order is being processed")

// Committer drives the building→complete transition. The order
// recalculator satisfies it.
type Committer interface {
	Complete(ctx context.Context, orderID uuid.UUID, seenPrices map[uuid.UUID]money.Money) (order.CompleteResult, error)
	Cancel(ctx context.Context, orderID uuid.UUID) error
}

// Result is what a successful commit reports to the caller.
type Result struct {
	OrderID  uuid.UUID
	Total    money.Money
	Depleted []stock.Decrement
}

// Service serializes checkout commits per order and emits the domain
// events the rest of the platform consumes.
type Service struct {
	Committer Committer
	Locker    lock.Locker
	LockTTL   time.Duration
	Events    *events.Bus
	Logger    zerolog.Logger
}

// Complete verifies the client-seen prices, commits the order and emits
// order.completed plus one stock.depleted per exhausted counter. The
// per-order lock makes a double submit fail fast with ErrBusy instead of
// racing the decrement.
func (s *Service) Complete(ctx context.Context, orderID uuid.UUID, seenPrices map[uuid.UUID]money.Money) (Result, error) {
	if s == nil || s.Committer == nil {
		return Result{}, errors.New("checkout: service not configured")
	}
	start := time.Now()
	var result Result
	err := s.Locker.TryWithLock(ctx, lock.OrderKey(orderID), s.LockTTL, func(ctx context.Context) error {
		committed, err := s.Committer.Complete(ctx, orderID, seenPrices)
		if err != nil {
			return err
		}
		result = Result{OrderID: orderID, Total: committed.Total, Depleted: committed.Depleted}
		return nil
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return Result{}, ErrBusy
	}
	s.observe("complete", time.Since(start), err)
	if err != nil {
		if shortfall, ok := stock.AsInsufficientStock(err); ok {
			if obs.StockInsufficientTotal != nil {
				obs.StockInsufficientTotal.Inc()
			}
			s.Logger.Warn().
				Stringer("order_id", orderID).
				Stringer("variant_id", shortfall.VariantID).
				Int64("available", shortfall.Available).
				Msg("checkout rejected: insufficient stock")
		}
		return Result{}, err
	}

	s.emit(ctx, events.TopicOrderCompleted, orderID, map[string]any{
		"orderId": orderID.String(),
		"total":   result.Total,
	})
	for _, pair := range result.Depleted {
		if obs.StockDepletedTotal != nil {
			obs.StockDepletedTotal.Inc()
		}
		s.emit(ctx, events.TopicStockDepleted, pair.VariantID, map[string]any{
			"hubId":     pair.HubID.String(),
			"variantId": pair.VariantID.String(),
		})
	}
	s.Logger.Info().
		Stringer("order_id", orderID).
		Int64("total", result.Total).
		Int("depleted", len(result.Depleted)).
		Msg("order completed")
	return result, nil
}

// Cancel transitions the order to cancelled and emits order.cancelled.
func (s *Service) Cancel(ctx context.Context, orderID uuid.UUID) error {
	if s == nil || s.Committer == nil {
		return errors.New("checkout: service not configured")
	}
	start := time.Now()
	err := s.Locker.TryWithLock(ctx, lock.OrderKey(orderID), s.LockTTL, func(ctx context.Context) error {
		return s.Committer.Cancel(ctx, orderID)
	})
	if errors.Is(err, lock.ErrNotAcquired) {
		return ErrBusy
	}
	s.observe("cancel", time.Since(start), err)
	if err != nil {
		return err
	}
	s.emit(ctx, events.TopicOrderCancelled, orderID, map[string]any{
		"orderId": orderID.String(),
	})
	s.Logger.Info().Stringer("order_id", orderID).Msg("order cancelled")
	return nil
}

func (s *Service) observe(op string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues(result).Inc()
	}
	if obs.CheckoutDuration != nil && op == "complete" {
		obs.CheckoutDuration.WithLabelValues(result).Observe(obs.DurationMillis(elapsed))
	}
}

func (s *Service) emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload map[string]any) {
	if s.Events == nil {
		return
	}
	if _, err := s.Events.Emit(ctx, topic, aggregateID, payload); err != nil {
		s.Logger.Error().Err(err).Str("topic", topic).Msg("emit event")
	}
}
