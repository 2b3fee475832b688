package broadcast

import (
	"log/slog"
	"sync"
	"time"
)

const defaultBuffer = 16

// Hub is an in-memory fan-out of typed events to subscribers.
//
// Contract:
//   - Publish never blocks on any subscriber.
//   - Each subscriber owns a bounded buffer; on overflow the oldest queued
//     envelope is dropped to make room (observers reconcile by re-querying).
//   - Within one subscription delivery order is FIFO.
//   - No history: a new subscriber sees only events published after Subscribe.
type Hub struct {
	mu   sync.RWMutex
	subs map[uint64]*subscriber
	seq  uint64
}

type subscriber struct {
	ch     chan Envelope
	topics map[string]bool // nil means all topics

	mu      sync.Mutex
	dropped int
}

func NewHub() *Hub {
	return &Hub{subs: map[uint64]*subscriber{}}
}

// Subscribe registers an observer for the given topics (none means all) and
// returns its delivery channel plus an unsubscribe function. The channel is
// closed on unsubscribe.
func (h *Hub) Subscribe(buffer int, topics ...string) (<-chan Envelope, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	sub := &subscriber{ch: make(chan Envelope, buffer)}
	if len(topics) > 0 {
		sub.topics = make(map[string]bool, len(topics))
		for _, t := range topics {
			sub.topics[t] = true
		}
	}

	h.mu.Lock()
	h.seq++
	id := h.seq
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, unsubscribe
}

// Publish delivers the event to every subscriber of its topic at publish
// time. A stalled subscriber loses its oldest queued envelope; it never
// delays the publisher or other subscribers.
func (h *Hub) Publish(e Event) {
	env := NewEnvelope(e, time.Now())

	// Snapshot subscribers so Publish doesn't hold the lock while sending.
	h.mu.RLock()
	targets := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.topics == nil || sub.topics[env.Type] {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		sub.deliver(env)
	}
}

// SubscriberCount returns the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// deliver enqueues the envelope, dropping the subscriber's oldest pending
// envelope when the buffer is full. A subscriber may unsubscribe (and close
// its channel) concurrently, so sends recover from the resulting panic.
func (s *subscriber) deliver(env Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() { _ = recover() }()
	for {
		select {
		case s.ch <- env:
			return
		default:
		}
		// Buffer full: drop the oldest and retry. The serialization through
		// s.mu keeps per-subscriber FIFO order intact across publishers.
		select {
		case <-s.ch:
			s.dropped++
			if s.dropped == 1 || s.dropped%100 == 0 {
				slog.Warn("Dropping events for slow observer",
					"layer", "broadcast",
					"dropped_total", s.dropped)
			}
		default:
		}
	}
}
