package relay

import (
	"sync/atomic"
	"testing"
	"time"

	"commande-track-api-server/internal/models"
	"commande-track-api-server/internal/socket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCrossTab_StatusChangePropagatesWithoutSocket(t *testing.T) {
	// Two tabs of the same browser profile, one shared bus. Tab A applies a
	// local status change; tab B receives it over the cross-tab relay alone,
	// no network round trip involved.
	bus := NewBus()
	tabA := NewTab(bus, zap.NewNop(), nil)
	tabB := NewTab(bus, zap.NewNop(), nil)
	defer tabA.Close()
	defer tabB.Close()

	order := testOrder(models.StatusValidated, models.StepCompleted, models.StepPending)
	tabA.Seed([]models.Order{order})
	tabB.Seed([]models.Order{order})

	env := mustEnvelope(t, socket.EventStatusChanged, socket.StatusChanged{
		OrderID:     order.ID.Hex(),
		Status:      models.StatusInProduction,
		Progression: 50,
		Revision:    6,
	})
	tabA.BroadcastLocal(env)

	for _, tab := range []*Tab{tabA, tabB} {
		require.Eventually(t, func() bool {
			got, ok := tab.Order(order.ID.Hex())
			return ok && got.Status == models.StatusInProduction
		}, time.Second, 5*time.Millisecond, "tab %s", tab.ID)
		got, _ := tab.Order(order.ID.Hex())
		assert.Equal(t, 50, got.Progression)
	}
}

func TestCrossTab_OriginTabReactsIdentically(t *testing.T) {
	bus := NewBus()
	var applied atomic.Int32
	tab := NewTab(bus, zap.NewNop(), func(models.Order) { applied.Add(1) })
	defer tab.Close()

	order := testOrder(models.StatusDraft)
	tab.Seed([]models.Order{order})

	env := mustEnvelope(t, socket.EventStatusChanged, socket.StatusChanged{
		OrderID:     order.ID.Hex(),
		Status:      models.StatusPending,
		Progression: 0,
		Revision:    6,
	})
	tab.BroadcastLocal(env)

	require.Eventually(t, func() bool {
		return applied.Load() == 1
	}, time.Second, 5*time.Millisecond, "one coalesced mutation, one downstream notification")
	got, _ := tab.Order(order.ID.Hex())
	assert.Equal(t, models.StatusPending, got.Status)

	time.Sleep(3 * DefaultDebounce)
	assert.Equal(t, int32(1), applied.Load(), "nothing else may fire after the window")
}

func TestTab_SocketAndBusShareOneHandlerPath(t *testing.T) {
	// A burst mixing socket-delivered and bus-delivered updates for one order
	// still collapses into a single applied mutation, last payload winning.
	bus := NewBus()
	tab := NewTab(bus, zap.NewNop(), nil)
	defer tab.Close()

	order := testOrder(models.StatusValidated)
	tab.Seed([]models.Order{order})

	for i, status := range []models.OrderStatus{
		models.StatusPending, models.StatusValidated, models.StatusInProduction,
	} {
		env := mustEnvelope(t, socket.EventStatusChanged, socket.StatusChanged{
			OrderID:     order.ID.Hex(),
			Status:      status,
			Progression: 0,
			Revision:    order.Revision + int64(i) + 1,
		})
		if i%2 == 0 {
			tab.HandleRemote(env)
		} else {
			tab.BroadcastLocal(env)
		}
	}

	require.Eventually(t, func() bool {
		got, _ := tab.Order(order.ID.Hex())
		return got.Status == models.StatusInProduction
	}, time.Second, 5*time.Millisecond)
}

func TestTab_CloseStopsBusDelivery(t *testing.T) {
	bus := NewBus()
	tab := NewTab(bus, zap.NewNop(), nil)

	order := testOrder(models.StatusValidated)
	tab.Seed([]models.Order{order})
	tab.Close()

	env := mustEnvelope(t, socket.EventStatusChanged, socket.StatusChanged{
		OrderID:     order.ID.Hex(),
		Status:      models.StatusShipped,
		Progression: 100,
		Revision:    99,
	})
	bus.Publish(Message{Envelope: env, OriginTab: "other"})

	time.Sleep(3 * DefaultDebounce)
	got, _ := tab.Order(order.ID.Hex())
	assert.Equal(t, models.StatusValidated, got.Status, "closed tab must not mutate")
}

func TestBus_SlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	// Overflow the subscriber buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			bus.Publish(Message{OriginTab: "a"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	assert.NotEmpty(t, ch)
}
