package socket

import (
	"sync"
	"testing"

	"commande-track-api-server/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeConn struct {
	mu       sync.Mutex
	received []Envelope
	failNext bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return assert.AnError
	}
	f.received = append(f.received, v.(Envelope))
	return nil
}

func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) envelopes() []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Envelope(nil), f.received...)
}

func TestPublish_DeliversToOrgAndOrderRooms(t *testing.T) {
	hub := NewHub(zap.NewNop())
	orderID := primitive.NewObjectID().Hex()

	orgSub := &fakeConn{}
	orderSub := &fakeConn{}
	otherOrgSub := &fakeConn{}

	hub.Join(OrgRoom("org1"), orgSub)
	hub.Join(OrderRoom(orderID), orderSub)
	hub.Join(OrgRoom("org2"), otherOrgSub)

	hub.Publish(EventStatusChanged, StatusChanged{
		OrderID:     orderID,
		Status:      models.StatusShipped,
		Progression: 100,
		Revision:    7,
	}, "org1")

	require.Len(t, orgSub.envelopes(), 1)
	require.Len(t, orderSub.envelopes(), 1)
	assert.Empty(t, otherOrgSub.envelopes(), "other organisation must not see the event")

	env := orgSub.envelopes()[0]
	assert.Equal(t, EventStatusChanged, env.Type)
	assert.JSONEq(t,
		`{"orderID":"`+orderID+`","status":"shipped","progression":100,"revision":7}`,
		string(env.Data))
}

func TestPublish_NoReplayForLateSubscriber(t *testing.T) {
	hub := NewHub(zap.NewNop())

	early := &fakeConn{}
	hub.Join(OrgRoom("org1"), early)
	hub.Publish(EventCommandDeleted, CommandDeleted{OrderID: "o1"}, "org1")

	late := &fakeConn{}
	hub.Join(OrgRoom("org1"), late)

	assert.Len(t, early.envelopes(), 1)
	assert.Empty(t, late.envelopes())
}

func TestPublish_WriteFailureDropsOnlyThatSubscriber(t *testing.T) {
	hub := NewHub(zap.NewNop())

	healthy := &fakeConn{}
	broken := &fakeConn{failNext: true}
	hub.Join(OrgRoom("org1"), healthy)
	hub.Join(OrgRoom("org1"), broken)

	hub.Publish(EventCommandDeleted, CommandDeleted{OrderID: "o1"}, "org1")

	assert.Len(t, healthy.envelopes(), 1)
	assert.Empty(t, broken.envelopes())
}

func TestLeave_StopsDelivery(t *testing.T) {
	hub := NewHub(zap.NewNop())

	sub := &fakeConn{}
	hub.Join(OrgRoom("org1"), sub)
	hub.Leave(OrgRoom("org1"), sub)

	hub.Publish(EventCommandDeleted, CommandDeleted{OrderID: "o1"}, "org1")
	assert.Empty(t, sub.envelopes())
}

func TestEventTypeValid(t *testing.T) {
	for _, et := range []EventType{
		EventCommandCreated, EventCommandUpdated, EventCommandDeleted,
		EventStatusChanged, EventStepUpdated, EventCommandFullyUpdated,
	} {
		assert.True(t, et.Valid(), string(et))
	}
	assert.False(t, EventType("ORDER_EXPLODED").Valid())

	_, err := NewEnvelope(EventType("ORDER_EXPLODED"), CommandDeleted{OrderID: "o1"})
	assert.Error(t, err)
}
