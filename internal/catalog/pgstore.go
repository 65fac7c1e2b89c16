package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/openharvest/backend-hub/internal/calc"
	"github.com/openharvest/backend-hub/internal/fees"
	"github.com/openharvest/backend-hub/internal/money"
	"github.com/openharvest/backend-hub/internal/tax"
)

// ErrVariantNotFound indicates the requested variant does not exist.
var ErrVariantNotFound = errors.New("catalog: variant not found")

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements Snapshot against Postgres.
type PGStore struct {
	DB DBTX
}

// NewPGStore wraps the given connection or transaction.
func NewPGStore(db DBTX) *PGStore {
	return &PGStore{DB: db}
}

// Variant implements Snapshot.
func (s *PGStore) Variant(ctx context.Context, id uuid.UUID) (Variant, error) {
	var v Variant
	var unitWeight decimal.NullDecimal
	var taxCategoryID *uuid.UUID
	err := s.DB.QueryRow(ctx,
		`SELECT id, producer_id, product_id, name, sku, price, unit_weight, on_demand, on_hand, tax_category_id
		 FROM variants WHERE id = $1`, id,
	).Scan(&v.ID, &v.ProducerID, &v.ProductID, &v.Name, &v.SKU, &v.Price, &unitWeight, &v.OnDemand, &v.OnHand, &taxCategoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Variant{}, ErrVariantNotFound
	}
	if err != nil {
		return Variant{}, fmt.Errorf("catalog: load variant: %w", err)
	}
	if unitWeight.Valid {
		v.UnitWeight = &unitWeight.Decimal
	}
	v.TaxCategoryID = taxCategoryID
	return v, nil
}

// Override implements Snapshot; a missing override is nil, not an error.
func (s *PGStore) Override(ctx context.Context, hubID, variantID uuid.UUID) (*VariantOverride, error) {
	o := VariantOverride{HubID: hubID, VariantID: variantID}
	err := s.DB.QueryRow(ctx,
		`SELECT price, count_on_hand, use_producer_stock, resettable, default_stock
		 FROM variant_overrides WHERE hub_id = $1 AND variant_id = $2`,
		hubID, variantID,
	).Scan(&o.Price, &o.CountOnHand, &o.UseProducerStock, &o.Resettable, &o.DefaultStock)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: load override: %w", err)
	}
	return &o, nil
}

// ExchangeFor implements Snapshot: the open exchange delivering the
// variant to the hub within the cycle, or nil. Openness comes from the
// order cycle window at query time.
func (s *PGStore) ExchangeFor(ctx context.Context, hubID, cycleID, variantID uuid.UUID) (*Exchange, error) {
	var e Exchange
	err := s.DB.QueryRow(ctx,
		`SELECT e.id, e.order_cycle_id, e.sender_id, e.receiver_id,
		        now() BETWEEN oc.orders_open_at AND oc.orders_close_at AS open
		 FROM exchanges e
		 JOIN order_cycles oc ON oc.id = e.order_cycle_id
		 JOIN exchange_variants ev ON ev.exchange_id = e.id
		 WHERE e.receiver_id = $1 AND e.order_cycle_id = $2 AND ev.variant_id = $3
		 LIMIT 1`,
		hubID, cycleID, variantID,
	).Scan(&e.ID, &e.OrderCycleID, &e.SenderID, &e.ReceiverID, &e.Open)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: locate exchange: %w", err)
	}
	e.VariantIDs = []uuid.UUID{variantID}
	e.Fees, err = s.exchangeFees(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// exchangeFees loads the exchange's fee chain in stored position order.
func (s *PGStore) exchangeFees(ctx context.Context, exchangeID uuid.UUID) ([]fees.EnterpriseFee, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT f.id, f.enterprise_id, f.name, f.fee_type,
		        f.calculator_kind, f.amount, f.percent, f.per_kg_rate, f.tax_category_id
		 FROM enterprise_fees f
		 JOIN exchange_fees ef ON ef.enterprise_fee_id = f.id
		 WHERE ef.exchange_id = $1
		 ORDER BY ef.position`,
		exchangeID)
	if err != nil {
		return nil, fmt.Errorf("catalog: load exchange fees: %w", err)
	}
	defer rows.Close()

	var chain []fees.EnterpriseFee
	for rows.Next() {
		var fee fees.EnterpriseFee
		var kind string
		var amount money.Money
		var percent, perKgRate decimal.NullDecimal
		if err := rows.Scan(&fee.ID, &fee.EnterpriseID, &fee.Name, &fee.Type,
			&kind, &amount, &percent, &perKgRate, &fee.TaxCategoryID); err != nil {
			return nil, fmt.Errorf("catalog: scan enterprise fee: %w", err)
		}
		fee.Calculator = calc.Calculator{Kind: calc.Kind(kind), Amount: amount}
		if percent.Valid {
			fee.Calculator.Percent = &percent.Decimal
		}
		if perKgRate.Valid {
			fee.Calculator.PerKgRate = &perKgRate.Decimal
		}
		chain = append(chain, fee)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate exchange fees: %w", err)
	}
	return chain, nil
}

// TaxRate implements Snapshot; nil when the category has no rate.
func (s *PGStore) TaxRate(ctx context.Context, taxCategoryID uuid.UUID) (*tax.Rate, error) {
	var r tax.Rate
	err := s.DB.QueryRow(ctx,
		`SELECT id, tax_category_id, name, rate FROM tax_rates WHERE tax_category_id = $1`,
		taxCategoryID,
	).Scan(&r.ID, &r.TaxCategoryID, &r.Name, &r.Rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: load tax rate: %w", err)
	}
	return &r, nil
}

// ShippingMethod implements Snapshot.
func (s *PGStore) ShippingMethod(ctx context.Context, id uuid.UUID) (ShippingMethod, error) {
	var m ShippingMethod
	err := s.DB.QueryRow(ctx,
		`SELECT id, hub_id, name, amount FROM shipping_methods WHERE id = $1`, id,
	).Scan(&m.ID, &m.HubID, &m.Name, &m.Amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return ShippingMethod{}, fmt.Errorf("catalog: shipping method %s not found", id)
	}
	if err != nil {
		return ShippingMethod{}, fmt.Errorf("catalog: load shipping method: %w", err)
	}
	return m, nil
}

// HubVariants lists every variant offered to the hub through open
// exchanges of the cycle, in catalog name order. Used by the shopfront
// renderer.
func (s *PGStore) HubVariants(ctx context.Context, hubID, cycleID uuid.UUID) ([]Variant, error) {
	rows, err := s.DB.Query(ctx,
		`SELECT DISTINCT v.id, v.producer_id, v.product_id, v.name, v.sku, v.price,
		        v.unit_weight, v.on_demand, v.on_hand, v.tax_category_id
		 FROM variants v
		 JOIN exchange_variants ev ON ev.variant_id = v.id
		 JOIN exchanges e ON e.id = ev.exchange_id
		 JOIN order_cycles oc ON oc.id = e.order_cycle_id
		 WHERE e.receiver_id = $1 AND e.order_cycle_id = $2
		   AND now() BETWEEN oc.orders_open_at AND oc.orders_close_at
		 ORDER BY v.name, v.id`,
		hubID, cycleID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list hub variants: %w", err)
	}
	defer rows.Close()

	var variants []Variant
	for rows.Next() {
		var v Variant
		var unitWeight decimal.NullDecimal
		if err := rows.Scan(&v.ID, &v.ProducerID, &v.ProductID, &v.Name, &v.SKU, &v.Price,
			&unitWeight, &v.OnDemand, &v.OnHand, &v.TaxCategoryID); err != nil {
			return nil, fmt.Errorf("catalog: scan hub variant: %w", err)
		}
		if unitWeight.Valid {
			v.UnitWeight = &unitWeight.Decimal
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate hub variants: %w", err)
	}
	return variants, nil
}

// UpsertOverride creates or replaces the hub-scoped override for the
// pair. The (hub_id, variant_id) primary key keeps the record unique.
func (s *PGStore) UpsertOverride(ctx context.Context, o VariantOverride) error {
	_, err := s.DB.Exec(ctx,
		`INSERT INTO variant_overrides
		   (hub_id, variant_id, price, count_on_hand, use_producer_stock, resettable, default_stock)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (hub_id, variant_id) DO UPDATE SET
		   price = EXCLUDED.price,
		   count_on_hand = EXCLUDED.count_on_hand,
		   use_producer_stock = EXCLUDED.use_producer_stock,
		   resettable = EXCLUDED.resettable,
		   default_stock = EXCLUDED.default_stock,
		   updated_at = now()`,
		o.HubID, o.VariantID, o.Price, o.CountOnHand, o.UseProducerStock, o.Resettable, o.DefaultStock)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("catalog: unknown hub or variant: %w", ErrVariantNotFound)
		}
		return fmt.Errorf("catalog: upsert override: %w", err)
	}
	return nil
}

// ResetResettableOverrides restores every resettable override with a
// configured default back to its default stock. Returns the number of
// rows touched; the worker runs this on its schedule.
func (s *PGStore) ResetResettableOverrides(ctx context.Context) (int64, error) {
	tag, err := s.DB.Exec(ctx,
		`UPDATE variant_overrides
		 SET count_on_hand = default_stock, updated_at = now()
		 WHERE resettable AND default_stock IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("catalog: reset overrides: %w", err)
	}
	return tag.RowsAffected(), nil
}
