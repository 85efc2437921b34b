// internal/relay/coalescer.go
package relay

import (
	"sync"
	"time"

	"commande-track-api-server/internal/socket"
)

// DefaultDebounce is the window within which rapid updates to one order
// collapse into a single applied mutation.
const DefaultDebounce = 150 * time.Millisecond

// Coalescer debounces updates per order id. A newly offered envelope cancels
// any pending one for the same order and supersedes it, so a burst of
// near-simultaneous updates produces exactly one state mutation with the last
// payload winning.
type Coalescer struct {
	mu      sync.Mutex
	delay   time.Duration
	apply   func(key string, env socket.Envelope)
	pending map[string]*time.Timer
	latest  map[string]socket.Envelope
	closed  bool
}

// NewCoalescer creates a coalescer flushing through apply after delay.
func NewCoalescer(delay time.Duration, apply func(key string, env socket.Envelope)) *Coalescer {
	return &Coalescer{
		delay:   delay,
		apply:   apply,
		pending: make(map[string]*time.Timer),
		latest:  make(map[string]socket.Envelope),
	}
}

// Offer schedules env for application, superseding any pending envelope for
// the same key.
func (c *Coalescer) Offer(key string, env socket.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.latest[key] = env
	if t, ok := c.pending[key]; ok {
		t.Stop()
	}
	c.pending[key] = time.AfterFunc(c.delay, func() { c.flush(key) })
}

func (c *Coalescer) flush(key string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	env, ok := c.latest[key]
	delete(c.latest, key)
	delete(c.pending, key)
	c.mu.Unlock()
	if ok {
		c.apply(key, env)
	}
}

// Close cancels every pending timer. Nothing offered after Close is applied;
// a view being torn down must not mutate state afterwards.
func (c *Coalescer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, t := range c.pending {
		t.Stop()
	}
	c.pending = map[string]*time.Timer{}
	c.latest = map[string]socket.Envelope{}
}
