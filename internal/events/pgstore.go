package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/openharvest/backend-hub/internal/stock"
)

// PGStore persists domain events to the domain_events table.
type PGStore struct {
	DB stock.DBTX
}

// NewPGStore wraps the given connection or transaction.
func NewPGStore(db stock.DBTX) *PGStore {
	return &PGStore{DB: db}
}

// Insert implements EventStore.
func (s *PGStore) Insert(ctx context.Context, topic string, aggregateID uuid.UUID, payload json.RawMessage) (Event, error) {
	ev := Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: payload}
	err := s.DB.QueryRow(ctx,
		`INSERT INTO domain_events (id, topic, aggregate_id, payload)
		 VALUES ($1, $2, $3, $4)
		 RETURNING occurred_at`,
		ev.ID, topic, aggregateID, payload,
	).Scan(&ev.OccurredAt)
	if err != nil {
		return Event{}, fmt.Errorf("events: insert domain event: %w", err)
	}
	return ev, nil
}
