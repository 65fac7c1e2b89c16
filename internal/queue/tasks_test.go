package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/openharvest/backend-hub/internal/events"
)

type stubResetter struct {
	rows int64
	err  error
}

func (s *stubResetter) ResetResettableOverrides(_ context.Context) (int64, error) {
	return s.rows, s.err
}

type captureStore struct {
	topics   []string
	payloads []json.RawMessage
}

func (c *captureStore) Insert(_ context.Context, topic string, aggregateID uuid.UUID, payload json.RawMessage) (events.Event, error) {
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: payload}, nil
}

func TestProcessTaskResetsAndEmits(t *testing.T) {
	store := &captureStore{}
	h := &OverrideResetHandler{
		Store:  &stubResetter{rows: 12},
		Events: &events.Bus{Store: store},
		Logger: zerolog.Nop(),
	}

	require.NoError(t, h.ProcessTask(context.Background(), NewOverrideResetTask()))
	require.Equal(t, []string{events.TopicOverridesReset}, store.topics)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(store.payloads[0], &payload))
	require.Equal(t, float64(12), payload["rows"])
}

func TestProcessTaskPropagatesResetError(t *testing.T) {
	boom := errors.New("reset failed")
	h := &OverrideResetHandler{
		Store:  &stubResetter{err: boom},
		Events: &events.Bus{Store: &captureStore{}},
		Logger: zerolog.Nop(),
	}
	require.ErrorIs(t, h.ProcessTask(context.Background(), NewOverrideResetTask()), boom)
}

func TestProcessTaskWithoutStore(t *testing.T) {
	h := &OverrideResetHandler{Logger: zerolog.Nop()}
	require.Error(t, h.ProcessTask(context.Background(), NewOverrideResetTask()))
}
