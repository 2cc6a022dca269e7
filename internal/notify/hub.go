// Package notify fans applied-transaction notifications out to connected
// sessions and auxiliary sinks. Delivery is always best-effort: the absence
// of a connected session is not an error, and a failed sink never affects
// the persisted state that triggered the notification.
package notify

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/finclass/bank-sim/internal/models"
)

const sessionBuffer = 16

// Sink is an auxiliary delivery channel, e.g. email.
type Sink interface {
	Send(n models.Notification) error
}

// Hub routes notifications to per-holder session channels and to sinks.
type Hub struct {
	log *logrus.Logger

	mu       sync.RWMutex
	sessions map[string][]chan models.Notification
	sinks    []Sink
}

// NewHub initializes an empty hub
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		log:      log,
		sessions: make(map[string][]chan models.Notification),
	}
}

// AddSink registers an auxiliary delivery sink
func (h *Hub) AddSink(s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, s)
}

// Subscribe opens a session channel for an account holder. The channel is
// buffered; messages are dropped when the consumer falls behind.
func (h *Hub) Subscribe(holder string) chan models.Notification {
	ch := make(chan models.Notification, sessionBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[holder] = append(h.sessions[holder], ch)
	return ch
}

// Unsubscribe closes and removes a session channel
func (h *Hub) Unsubscribe(holder string, ch chan models.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()
	channels := h.sessions[holder]
	for i, c := range channels {
		if c == ch {
			h.sessions[holder] = append(channels[:i], channels[i+1:]...)
			close(c)
			break
		}
	}
	if len(h.sessions[holder]) == 0 {
		delete(h.sessions, holder)
	}
}

// Notify delivers a notification to every session of the holder and to all
// sinks. It never blocks the caller.
func (h *Hub) Notify(n models.Notification) {
	// Unsubscribe closes session channels under the write lock, so the read
	// lock must stay held across the sends: a send on a closed channel
	// panics. The sends cannot block, holding the lock here is safe.
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.sessions[n.AccountHolder] {
		select {
		case ch <- n:
		default:
			h.log.Debugf("Dropped notification for %s: session buffer full", n.AccountHolder)
		}
	}

	for _, sink := range h.sinks {
		go func(s Sink) {
			if err := s.Send(n); err != nil {
				h.log.Debugf("Notification sink failed for %s: %v", n.AccountHolder, err)
			}
		}(sink)
	}
}
