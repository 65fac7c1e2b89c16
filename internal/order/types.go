package order

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/openharvest/backend-hub/internal/money"
)

// State is the order lifecycle: building (mutable cart) → complete
// (frozen) → cancelled.
type State string

const (
	Building  State = "building"
	Complete  State = "complete"
	Cancelled State = "cancelled"
)

// SourceKind identifies what produced an adjustment.
type SourceKind string

const (
	SourceEnterpriseFee  SourceKind = "enterprise_fee"
	SourceTaxRate        SourceKind = "tax_rate"
	SourceShippingMethod SourceKind = "shipping_method"
)

// AdjustmentState distinguishes engine-managed adjustments from manually
// edited ones. Closed adjustments survive recalculation untouched.
type AdjustmentState string

const (
	AdjustmentOpen   AdjustmentState = "open"
	AdjustmentClosed AdjustmentState = "closed"
)

// LineItem is one variant in an order. Price holds the resolved unit
// price; it is frozen when the order completes and becomes historical
// record.
type LineItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	VariantID uuid.UUID
	Quantity  int64
	Price     money.Money
}

// Adjustment is a derived monetary artifact attached to an order,
// regenerated idempotently whenever inputs change.
type Adjustment struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	SourceKind SourceKind
	SourceID   uuid.UUID
	Label      string
	Amount     money.Money
	State      AdjustmentState
}

// key identifies an adjustment across regenerations.
type adjustmentKey struct {
	kind SourceKind
	id   uuid.UUID
}

func (a Adjustment) key() adjustmentKey {
	return adjustmentKey{kind: a.SourceKind, id: a.SourceID}
}

// Order aggregates the cart state the recalculator operates on.
type Order struct {
	ID               uuid.UUID
	HubID            uuid.UUID
	OrderCycleID     uuid.UUID
	State            State
	ShippingMethodID *uuid.UUID
	Total            money.Money
	LineItems        []LineItem
	Adjustments      []Adjustment
}

// ErrEmptyOrder rejects completing an order with no line items.
var ErrEmptyOrder = errors.New("order: no line items")

// ErrNotBuilding is returned when a mutation is attempted against a
// frozen order.
var ErrNotBuilding = errors.New("order: not in building state")

// ErrAlreadyCancelled guards double cancellation.
var ErrAlreadyCancelled = errors.New("order: already cancelled")

// IncompatibleSelectionError is raised when a distributor or order-cycle
// change leaves existing line items outside the new exchange. The caller
// prompts cart reconciliation instead of silently dropping items.
type IncompatibleSelectionError struct {
	VariantIDs []uuid.UUID
}

func (e *IncompatibleSelectionError) Error() string {
	return fmt.Sprintf("order: %d line item(s) not offered by the new distribution", len(e.VariantIDs))
}

// PriceMismatchError defends against stale client state: the commit-time
// recompute disagreed with the unit price the client last rendered. Always
// recoverable by recomputation and re-confirmation.
type PriceMismatchError struct {
	LineItemID uuid.UUID
	Seen       money.Money
	Actual     money.Money
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("order: line item %s priced %d, client saw %d", e.LineItemID, e.Actual, e.Seen)
}
