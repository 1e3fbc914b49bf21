package event

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/backoffice/internal/domain/shared"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, uuid.New(), uuid.New())}
}

type testHandler struct {
	eventTypes []string
	mu         sync.Mutex
	handled    []shared.DomainEvent
	err        error
	panics     bool
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.mu.Lock()
	h.handled = append(h.handled, event)
	h.mu.Unlock()
	if h.panics {
		panic("boom")
	}
	return h.err
}

func (h *testHandler) EventTypes() []string { return h.eventTypes }

func (h *testHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handled)
}

func startedBus(t *testing.T) *InMemoryEventBus {
	t.Helper()
	bus := NewInMemoryEventBus(zap.NewNop())
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop(context.Background()) })
	return bus
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to matching handlers only", func(t *testing.T) {
		bus := startedBus(t)
		accrued := newTestHandler("PointsAccrued")
		other := newTestHandler("TierChanged")
		bus.Subscribe(accrued)
		bus.Subscribe(other)

		require.NoError(t, bus.Publish(ctx, newTestEvent("PointsAccrued"), newTestEvent("PointsAccrued")))
		assert.Equal(t, 2, accrued.count())
		assert.Equal(t, 0, other.count())
	})

	t.Run("wildcard handler receives every event", func(t *testing.T) {
		bus := startedBus(t)
		all := newTestHandler()
		bus.Subscribe(all)

		require.NoError(t, bus.Publish(ctx, newTestEvent("CustomerCreated"), newTestEvent("PointsRedeemed")))
		assert.Equal(t, 2, all.count())
	})

	t.Run("failing and panicking handlers do not stop delivery", func(t *testing.T) {
		bus := startedBus(t)
		failing := newTestHandler("PointsAccrued")
		failing.err = errors.New("index down")
		panicking := newTestHandler("PointsAccrued")
		panicking.panics = true
		healthy := newTestHandler("PointsAccrued")
		bus.Subscribe(failing)
		bus.Subscribe(panicking)
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(ctx, newTestEvent("PointsAccrued")))
		assert.Equal(t, 1, failing.count())
		assert.Equal(t, 1, panicking.count())
		assert.Equal(t, 1, healthy.count())
	})

	t.Run("explicit types override the handler's own", func(t *testing.T) {
		bus := startedBus(t)
		h := newTestHandler("PointsAccrued")
		bus.Subscribe(h, "TierChanged")

		require.NoError(t, bus.Publish(ctx, newTestEvent("PointsAccrued"), newTestEvent("TierChanged")))
		assert.Equal(t, 1, h.count())
	})
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	ctx := context.Background()
	bus := startedBus(t)
	h := newTestHandler("PointsAccrued")
	bus.Subscribe(h)

	_ = bus.Publish(ctx, newTestEvent("PointsAccrued"))
	bus.Unsubscribe(h)
	_ = bus.Publish(ctx, newTestEvent("PointsAccrued"))

	assert.Equal(t, 1, h.count())
}

func TestInMemoryEventBus_StoppedDropsEvents(t *testing.T) {
	ctx := context.Background()
	bus := NewInMemoryEventBus(nil)
	h := newTestHandler()
	bus.Subscribe(h)

	require.NoError(t, bus.Publish(ctx, newTestEvent("PointsAccrued")))
	assert.Equal(t, 0, h.count())

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Publish(ctx, newTestEvent("PointsAccrued")))
	require.NoError(t, bus.Stop(ctx))
	require.NoError(t, bus.Publish(ctx, newTestEvent("PointsAccrued")))
	assert.Equal(t, 1, h.count())
}
