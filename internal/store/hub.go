package store

import (
	"sync"

	"go.uber.org/zap"
)

// Change announces that a period's persisted state was written.
type Change struct {
	Tenant string
	Period string
}

// Key returns the period the change refers to.
func (c Change) Key() Key {
	return Key{Tenant: c.Tenant, Period: c.Period}
}

// Hub fans out change notifications to in-process subscribers. Sends never
// block; a subscriber whose buffer is full misses the notification, which is
// harmless because reconciliation compares persisted bytes.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Change
	nextID int
	log    *zap.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[int]chan Change), log: logger}
}

// Subscribe registers a subscriber. The returned func unsubscribes and
// closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()
	h.log.Debug("subscriber added", zap.Int("subscriber", id))

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers c to every subscriber.
func (h *Hub) Publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- c:
		default:
			h.log.Debug("subscriber busy, change dropped", zap.Int("subscriber", id), zap.String("period", c.Period))
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
