package server

import (
	"log/slog"
	"sync"

	"github.com/h0rv/brickhunt/internal/domain"
)

// defaultQueueSize is the number of notifications buffered per subscriber
// before it is considered too slow and dropped.
const defaultQueueSize = 64

// Subscriber is one realtime connection to a session.
type Subscriber struct {
	send chan domain.Notification
	once sync.Once
}

// Notifications returns the subscriber queue. It is closed when the
// subscriber is removed from the hub.
func (s *Subscriber) Notifications() <-chan domain.Notification {
	return s.send
}

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Hub fans notifications out to the subscribers of each session.
// Broadcast never blocks: a subscriber whose queue is full is dropped and its
// connection closed, after which the client reloads and resubscribes.
type Hub struct {
	mu        sync.Mutex
	sessions  map[string]map[*Subscriber]struct{}
	queueSize int
	dropped   uint64
	logger    *slog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions:  make(map[string]map[*Subscriber]struct{}),
		queueSize: defaultQueueSize,
		logger:    logger,
	}
}

// Subscribe registers a new subscriber for token.
func (h *Hub) Subscribe(token string) *Subscriber {
	sub := &Subscriber{send: make(chan domain.Notification, h.queueSize)}

	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.sessions[token]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		h.sessions[token] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Unsubscribe removes a subscriber and closes its queue. Safe to call twice.
func (h *Hub) Unsubscribe(token string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(token, sub)
}

func (h *Hub) remove(token string, sub *Subscriber) {
	if subs, ok := h.sessions[token]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.sessions, token)
		}
	}
	sub.close()
}

// Broadcast queues n for every subscriber of token.
func (h *Hub) Broadcast(token string, n domain.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.sessions[token] {
		select {
		case sub.send <- n:
		default:
			h.logger.Warn("dropping slow subscriber", "session", shortToken(token), "item_id", n.ItemID)
			h.remove(token, sub)
			h.dropped++
		}
	}
}

// Count returns the number of subscribers of token.
func (h *Hub) Count(token string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[token])
}

// Total returns the number of subscribers across all sessions.
func (h *Hub) Total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, subs := range h.sessions {
		n += len(subs)
	}
	return n
}

// Dropped returns how many subscribers were dropped for falling behind.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close drops every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for token, subs := range h.sessions {
		for sub := range subs {
			sub.close()
		}
		delete(h.sessions, token)
	}
}

func shortToken(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
