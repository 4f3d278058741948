package streamchart

import (
	"fmt"
	"sync"
	"time"
)

// HubConfig configures the in-process batch hub.
type HubConfig struct {
	// BufferSize is the channel buffer size per subscription.
	BufferSize int
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{BufferSize: 256}
}

// Subscription represents one consumer of the hub's batch stream.
type Subscription struct {
	ID      string
	ch      chan ChartData
	done    chan struct{}
	closed  bool
	mu      sync.Mutex
	created time.Time
}

// C returns the channel for receiving batches.
func (s *Subscription) C() <-chan ChartData {
	return s.ch
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close closes the subscription. Closing twice is a no-op.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	close(s.ch)
}

// Hub fans out ChartData batches from producers to any number of chart
// subscriptions. Delivery to each subscription is sequential and in
// arrival order; a subscription whose buffer is full drops the batch
// rather than blocking the producer.
type Hub struct {
	config HubConfig
	mu     sync.RWMutex
	subs   map[string]*Subscription
	nextID uint64
	closed bool
}

// NewHub creates a new hub.
func NewHub(cfg HubConfig) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	return &Hub{
		config: cfg,
		subs:   make(map[string]*Subscription),
	}
}

// Subscribe creates a new subscription.
func (h *Hub) Subscribe() (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	h.nextID++
	sub := &Subscription{
		ID:      fmt.Sprintf("sub-%d", h.nextID),
		ch:      make(chan ChartData, h.config.BufferSize),
		done:    make(chan struct{}),
		created: time.Now(),
	}
	h.subs[sub.ID] = sub
	return sub, nil
}

// Unsubscribe removes a subscription. Unknown ids and repeated calls are
// no-ops.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// Publish delivers a batch to every subscription.
func (h *Hub) Publish(d ChartData) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		select {
		case sub.ch <- d:
		default:
			// Buffer full, drop the batch
		}
	}
}

// PublishPoints assembles a batch from per-series points and publishes it.
func (h *Hub) PublishPoints(newPoints map[string][]Datum) {
	h.Publish(ChartDataFrom(newPoints))
}

// Count returns the number of active subscriptions.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription and rejects new ones. Closing twice is a
// no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[string]*Subscription)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
}
