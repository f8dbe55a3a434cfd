// Package realtime is the change-propagation bus: the server-side hub fans
// row-change events out to connected subscribers, and the client-side
// manager keeps local caches consistent by invalidating them on matching
// events and on reconnect.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/fundlane/notification/internal/domain"
)

// Filter selects the change events one connection wants: a table plus an
// optional row predicate.
type Filter struct {
	Table     string
	Predicate Predicate
}

// Subscriber is one connected client streaming filtered change events.
type Subscriber struct {
	filters []Filter
	send    chan []byte
}

// Hub manages all connected change-stream subscribers.
// Single-instance model: all fan-out is in-process.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscriber]struct{})}
}

// Register adds a subscriber with the given filters. Events are delivered as
// SSE frames on send; the caller owns draining the channel.
func (h *Hub) Register(filters []Filter, send chan []byte) *Subscriber {
	s := &Subscriber{filters: filters, send: send}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()

	log.Debug().Int("filters", len(filters)).Msg("change-stream subscriber connected")
	return s
}

// Unregister removes a subscriber.
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()

	log.Debug().Msg("change-stream subscriber disconnected")
}

// Publish fans the event out to every subscriber with a matching filter.
// Fire-and-forget: a subscriber with a full send buffer is skipped, never
// blocked on. Disconnected clients reconcile by re-fetching on reconnect.
func (h *Hub) Publish(event domain.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var frame []byte
	for s := range h.subs {
		if !s.matches(event) {
			continue
		}
		if frame == nil {
			frame = buildFrame(event)
		}
		select {
		case s.send <- frame:
		default:
			log.Warn().Str("table", event.Table).Msg("subscriber send buffer full, skipping")
		}
	}
}

// ConnectedCount returns the number of connected subscribers.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (s *Subscriber) matches(event domain.ChangeEvent) bool {
	for _, f := range s.filters {
		if f.Table == event.Table && f.Predicate.Matches(event.Row) {
			return true
		}
	}
	return false
}

// buildFrame formats a change event as an SSE data frame.
func buildFrame(event domain.ChangeEvent) []byte {
	b, _ := json.Marshal(event)
	return []byte("event: change\ndata: " + string(b) + "\n\n")
}
