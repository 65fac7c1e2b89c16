package checkout

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/openharvest/backend-hub/internal/events"
	"github.com/openharvest/backend-hub/internal/lock"
	"github.com/openharvest/backend-hub/internal/money"
	"github.com/openharvest/backend-hub/internal/order"
	"github.com/openharvest/backend-hub/internal/stock"
)

type stubCommitter struct {
	result      order.CompleteResult
	err         error
	completed   int
	cancelled   int
	seenPrices  map[uuid.UUID]money.Money
	blockUntil  chan struct{}
	enteredLock chan struct{}
}

func (s *stubCommitter) Complete(_ context.Context, _ uuid.UUID, seen map[uuid.UUID]money.Money) (order.CompleteResult, error) {
	s.completed++
	s.seenPrices = seen
	if s.enteredLock != nil {
		close(s.enteredLock)
	}
	if s.blockUntil != nil {
		<-s.blockUntil
	}
	return s.result, s.err
}

func (s *stubCommitter) Cancel(_ context.Context, _ uuid.UUID) error {
	s.cancelled++
	return s.err
}

type recordingStore struct {
	topics   []string
	payloads []json.RawMessage
}

func (r *recordingStore) Insert(_ context.Context, topic string, aggregateID uuid.UUID, payload json.RawMessage) (events.Event, error) {
	r.topics = append(r.topics, topic)
	r.payloads = append(r.payloads, payload)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: payload}, nil
}

func newService(t *testing.T, committer Committer) (*Service, *recordingStore) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &recordingStore{}
	return &Service{
		Committer: committer,
		Locker:    lock.Locker{R: client},
		LockTTL:   time.Second,
		Events:    &events.Bus{Store: store},
		Logger:    zerolog.Nop(),
	}, store
}

func TestCompleteEmitsEvents(t *testing.T) {
	orderID := uuid.New()
	depletedVariant := uuid.New()
	committer := &stubCommitter{result: order.CompleteResult{
		Total:    6110,
		Depleted: []stock.Decrement{{HubID: uuid.New(), VariantID: depletedVariant, Qty: 3}},
	}}
	svc, store := newService(t, committer)

	result, err := svc.Complete(context.Background(), orderID, nil)
	require.NoError(t, err)
	require.Equal(t, orderID, result.OrderID)
	require.Equal(t, money.Money(6110), result.Total)
	require.Len(t, result.Depleted, 1)

	require.Equal(t, []string{events.TopicOrderCompleted, events.TopicStockDepleted}, store.topics)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(store.payloads[1], &payload))
	require.Equal(t, depletedVariant.String(), payload["variantId"])
}

func TestCompletePassesSeenPrices(t *testing.T) {
	committer := &stubCommitter{}
	svc, _ := newService(t, committer)
	itemID := uuid.New()

	_, err := svc.Complete(context.Background(), uuid.New(), map[uuid.UUID]money.Money{itemID: 550})
	require.NoError(t, err)
	require.Equal(t, money.Money(550), committer.seenPrices[itemID])
}

func TestCompleteBusyWhenLockHeld(t *testing.T) {
	blockUntil := make(chan struct{})
	enteredLock := make(chan struct{})
	committer := &stubCommitter{blockUntil: blockUntil, enteredLock: enteredLock}
	svc, _ := newService(t, committer)
	orderID := uuid.New()

	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Complete(context.Background(), orderID, nil)
		firstDone <- err
	}()
	<-enteredLock

	_, err := svc.Complete(context.Background(), orderID, nil)
	require.ErrorIs(t, err, ErrBusy)

	close(blockUntil)
	require.NoError(t, <-firstDone)
	require.Equal(t, 1, committer.completed)
}

func TestCompleteCommitErrorEmitsNothing(t *testing.T) {
	committer := &stubCommitter{err: order.ErrEmptyOrder}
	svc, store := newService(t, committer)

	_, err := svc.Complete(context.Background(), uuid.New(), nil)
	require.ErrorIs(t, err, order.ErrEmptyOrder)
	require.Empty(t, store.topics)
}

func TestCompleteInsufficientStockPropagates(t *testing.T) {
	shortfall := &stock.InsufficientStockError{VariantID: uuid.New(), Available: 2}
	committer := &stubCommitter{err: shortfall}
	svc, store := newService(t, committer)

	_, err := svc.Complete(context.Background(), uuid.New(), nil)
	got, ok := stock.AsInsufficientStock(err)
	require.True(t, ok)
	require.Equal(t, int64(2), got.Available)
	require.Empty(t, store.topics)
}

func TestCancelEmitsEvent(t *testing.T) {
	committer := &stubCommitter{}
	svc, store := newService(t, committer)
	orderID := uuid.New()

	require.NoError(t, svc.Cancel(context.Background(), orderID))
	require.Equal(t, 1, committer.cancelled)
	require.Equal(t, []string{events.TopicOrderCancelled}, store.topics)
}

func TestCancelAlreadyCancelled(t *testing.T) {
	committer := &stubCommitter{err: order.ErrAlreadyCancelled}
	svc, store := newService(t, committer)

	err := svc.Cancel(context.Background(), uuid.New())
	require.ErrorIs(t, err, order.ErrAlreadyCancelled)
	require.Empty(t, store.topics)
}

func TestUnconfiguredService(t *testing.T) {
	var svc *Service
	_, err := svc.Complete(context.Background(), uuid.New(), nil)
	require.Error(t, err)

	empty := &Service{}
	_, err = empty.Complete(context.Background(), uuid.New(), nil)
	require.Error(t, err)
	require.Error(t, empty.Cancel(context.Background(), uuid.New()))
}

var _ Committer = (*stubCommitter)(nil)
