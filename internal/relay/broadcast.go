// internal/relay/broadcast.go
package relay

import (
	"sync"
	"time"

	"commande-track-api-server/internal/socket"
)

// Message is the typed envelope crossing tabs of one browser profile.
type Message struct {
	Envelope  socket.Envelope `json:"envelope"`
	Timestamp time.Time       `json:"timestamp"`
	OriginTab string          `json:"originTabID"`
}

// Bus is the same-profile broadcast channel: every event published by one tab
// is delivered to every subscribed tab, the origin included, so all tabs run
// the same handler whether an event arrived from the network or from a
// sibling tab. Delivery is fire-and-forget; a subscriber that cannot keep up
// loses messages rather than blocking the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Message
	next int
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Message)}
}

// Subscribe registers a consumer and returns its channel plus a cancel
// function that closes it.
func (b *Bus) Subscribe() (<-chan Message, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Message, 16)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
}

// Publish stamps and delivers msg to all subscribers, origin tab included.
func (b *Bus) Publish(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			// slow subscriber, drop
		}
	}
}
