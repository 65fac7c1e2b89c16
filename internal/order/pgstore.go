package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openharvest/backend-hub/internal/catalog"
	"github.com/openharvest/backend-hub/internal/money"
	"github.com/openharvest/backend-hub/internal/stock"
)

// ErrNotFound indicates the requested order could not be located.
var ErrNotFound = errors.New("order not found")

// PGStore implements Store against Postgres. Construct it over a pgx.Tx
// via PGTx so every recalculation step shares one transaction.
type PGStore struct {
	DB stock.DBTX
}

// NewPGStore wraps the given connection or transaction.
func NewPGStore(db stock.DBTX) *PGStore {
	return &PGStore{DB: db}
}

// Get loads the order with its line items and adjustments.
func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	var o Order
	var shippingMethodID *uuid.UUID
	err := s.DB.QueryRow(ctx,
		`SELECT id, hub_id, order_cycle_id, state, shipping_method_id, total
		 FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.HubID, &o.OrderCycleID, &o.State, &shippingMethodID, &o.Total)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("order: load order: %w", err)
	}
	o.ShippingMethodID = shippingMethodID

	rows, err := s.DB.Query(ctx,
		`SELECT id, variant_id, quantity, price FROM line_items
		 WHERE order_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("order: load line items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		li := LineItem{OrderID: id}
		if err := rows.Scan(&li.ID, &li.VariantID, &li.Quantity, &li.Price); err != nil {
			return Order{}, fmt.Errorf("order: scan line item: %w", err)
		}
		o.LineItems = append(o.LineItems, li)
	}
	if err := rows.Err(); err != nil {
		return Order{}, fmt.Errorf("order: iterate line items: %w", err)
	}

	adjRows, err := s.DB.Query(ctx,
		`SELECT id, source_kind, source_id, label, amount, state FROM adjustments
		 WHERE order_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return Order{}, fmt.Errorf("order: load adjustments: %w", err)
	}
	defer adjRows.Close()
	for adjRows.Next() {
		adj := Adjustment{OrderID: id}
		if err := adjRows.Scan(&adj.ID, &adj.SourceKind, &adj.SourceID, &adj.Label, &adj.Amount, &adj.State); err != nil {
			return Order{}, fmt.Errorf("order: scan adjustment: %w", err)
		}
		o.Adjustments = append(o.Adjustments, adj)
	}
	if err := adjRows.Err(); err != nil {
		return Order{}, fmt.Errorf("order: iterate adjustments: %w", err)
	}
	return o, nil
}

// SaveLineItemPrice implements Store.
func (s *PGStore) SaveLineItemPrice(ctx context.Context, orderID, lineItemID uuid.UUID, price money.Money) error {
	tag, err := s.DB.Exec(ctx,
		`UPDATE line_items SET price = $3 WHERE order_id = $1 AND id = $2`,
		orderID, lineItemID, price)
	if err != nil {
		return fmt.Errorf("order: save line item price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order: line item %s not found", lineItemID)
	}
	return nil
}

// ReplaceOpenAdjustments implements Store.
func (s *PGStore) ReplaceOpenAdjustments(ctx context.Context, orderID uuid.UUID, adjs []Adjustment) error {
	if _, err := s.DB.Exec(ctx,
		`DELETE FROM adjustments WHERE order_id = $1 AND state = 'open'`, orderID); err != nil {
		return fmt.Errorf("order: clear open adjustments: %w", err)
	}
	for _, adj := range adjs {
		if _, err := s.DB.Exec(ctx,
			`INSERT INTO adjustments (id, order_id, source_kind, source_id, label, amount, state)
			 VALUES ($1, $2, $3, $4, $5, $6, 'open')`,
			uuid.New(), orderID, adj.SourceKind, adj.SourceID, adj.Label, adj.Amount); err != nil {
			return fmt.Errorf("order: insert adjustment: %w", err)
		}
	}
	return nil
}

// SetDistribution implements Store.
func (s *PGStore) SetDistribution(ctx context.Context, orderID, hubID, cycleID uuid.UUID) error {
	tag, err := s.DB.Exec(ctx,
		`UPDATE orders SET hub_id = $2, order_cycle_id = $3 WHERE id = $1`,
		orderID, hubID, cycleID)
	if err != nil {
		return fmt.Errorf("order: set distribution: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetState implements Store.
func (s *PGStore) SetState(ctx context.Context, orderID uuid.UUID, state State, total money.Money) error {
	tag, err := s.DB.Exec(ctx,
		`UPDATE orders SET state = $2, total = $3, updated_at = now() WHERE id = $1`,
		orderID, state, total)
	if err != nil {
		return fmt.Errorf("order: set state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PGTx implements Tx over a pgx pool. Each InTx call begins one
// transaction and hands the callback transaction-scoped order, catalog,
// and stock stores; rollback on any error is what makes the commit
// transition all-or-nothing.
type PGTx struct {
	Pool *pgxpool.Pool
}

// InTx implements Tx.
func (t PGTx) InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	tx, err := t.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("order: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	stores := Stores{
		Orders: NewPGStore(tx),
		Stock:  stock.NewLedger(catalog.NewPGStore(tx), stock.NewPGStore(tx)),
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
