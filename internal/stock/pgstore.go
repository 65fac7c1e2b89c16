package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so the same store
// works against the pool for reads and inside the checkout transaction
// for decrements.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements CounterStore against Postgres. The conditional
// UPDATE is the single atomic primitive the ledger relies on: the row
// lock serializes concurrent decrements per pair and the WHERE guard
// fails the statement instead of going negative.
type PGStore struct {
	DB DBTX
}

// NewPGStore wraps the given connection or transaction.
func NewPGStore(db DBTX) *PGStore {
	return &PGStore{DB: db}
}

// DecrementShared implements CounterStore.
func (s *PGStore) DecrementShared(ctx context.Context, variantID uuid.UUID, qty int64) (int64, error) {
	var remaining int64
	err := s.DB.QueryRow(ctx,
		`UPDATE variants SET on_hand = on_hand - $2 WHERE id = $1 AND on_hand >= $2 RETURNING on_hand`,
		variantID, qty,
	).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("stock: decrement shared counter: %w", err)
	}
	var available int64
	if err := s.DB.QueryRow(ctx, `SELECT on_hand FROM variants WHERE id = $1`, variantID).Scan(&available); err != nil {
		return 0, fmt.Errorf("stock: read shared counter: %w", err)
	}
	return available, &InsufficientStockError{VariantID: variantID, Available: available}
}

// DecrementOverride implements CounterStore.
func (s *PGStore) DecrementOverride(ctx context.Context, hubID, variantID uuid.UUID, qty int64) (int64, error) {
	var remaining int64
	err := s.DB.QueryRow(ctx,
		`UPDATE variant_overrides SET count_on_hand = count_on_hand - $3
		 WHERE hub_id = $1 AND variant_id = $2 AND count_on_hand >= $3
		 RETURNING count_on_hand`,
		hubID, variantID, qty,
	).Scan(&remaining)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("stock: decrement override counter: %w", err)
	}
	var available int64
	if err := s.DB.QueryRow(ctx,
		`SELECT count_on_hand FROM variant_overrides WHERE hub_id = $1 AND variant_id = $2`,
		hubID, variantID,
	).Scan(&available); err != nil {
		return 0, fmt.Errorf("stock: read override counter: %w", err)
	}
	return available, &InsufficientStockError{HubID: hubID, VariantID: variantID, Available: available}
}
