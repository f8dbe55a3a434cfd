package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fundlane/notification/internal/domain"
)

// ConnState is the liveness state of the manager's transport connection.
type ConnState string

const (
	StateConnecting   ConnState = "CONNECTING"
	StateConnected    ConnState = "CONNECTED"
	StateDisconnected ConnState = "DISCONNECTED"
)

// EventFunc is invoked synchronously for every change event matching a
// subscription's filter.
type EventFunc func(event domain.ChangeEvent)

// Invalidator is the slice of the cache the manager needs. Satisfied by
// cache.Cache.
type Invalidator interface {
	Invalidate(key string)
}

// Subscription is the handle returned by Subscribe; pass it to Unsubscribe
// for deterministic teardown.
type Subscription struct {
	id        uint64
	table     string
	predicate Predicate
	cacheKeys []string
	onEvent   EventFunc
}

// Manager is the client-side subscription manager. It holds at most one
// transport connection multiplexing all registered filters, reconnects with
// backoff after a disconnect, and invalidates registered cache keys on
// reconnect because events emitted during the disconnect window are lost.
type Manager struct {
	streamURL  string
	token      string
	httpClient *http.Client
	cache      Invalidator

	baseWait time.Duration
	maxWait  time.Duration

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	state  ConnState
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a Manager targeting the server's change-stream URL.
// The token authenticates the stream request as a bearer credential.
func NewManager(streamURL, token string, cache Invalidator) *Manager {
	return &Manager{
		streamURL:  streamURL,
		token:      token,
		httpClient: &http.Client{},
		cache:      cache,
		baseWait:   time.Second,
		maxWait:    30 * time.Second,
		subs:       make(map[uint64]*Subscription),
		state:      StateDisconnected,
	}
}

// NewManagerWithBackoff creates a Manager with explicit reconnect backoff
// bounds, for tests.
func NewManagerWithBackoff(streamURL, token string, cache Invalidator, base, max time.Duration) *Manager {
	m := NewManager(streamURL, token, cache)
	m.baseWait = base
	m.maxWait = max
	return m
}

// Subscribe registers a filter and returns its handle. The first
// subscription opens the transport connection; later ones share it.
func (m *Manager) Subscribe(table, predicate string, cacheKeys []string, onEvent EventFunc) (*Subscription, error) {
	pred, err := ParsePredicate(predicate)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	sub := &Subscription{
		id:        m.nextID,
		table:     table,
		predicate: pred,
		cacheKeys: cacheKeys,
		onEvent:   onEvent,
	}
	m.subs[sub.id] = sub

	if m.cancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		m.done = make(chan struct{})
		go m.runLoop(ctx, m.done)
	}
	return sub, nil
}

// Unsubscribe removes a filter. When no filters remain the transport
// connection is closed.
func (m *Manager) Unsubscribe(sub *Subscription) {
	m.mu.Lock()
	delete(m.subs, sub.id)
	var stop context.CancelFunc
	var done chan struct{}
	if len(m.subs) == 0 && m.cancel != nil {
		stop = m.cancel
		done = m.done
		m.cancel = nil
		m.done = nil
	}
	m.mu.Unlock()

	if stop != nil {
		stop()
		<-done
	}
}

// State returns the current connection liveness.
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// runLoop connects, streams, and reconnects until ctx is cancelled.
func (m *Manager) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer m.setState(StateDisconnected)

	wait := m.baseWait
	for {
		m.setState(StateConnecting)
		err := m.stream(ctx, func() {
			m.setState(StateConnected)
			wait = m.baseWait
			// Events emitted while disconnected are gone; force re-fetch.
			m.invalidateAllKeys()
		})
		if ctx.Err() != nil {
			return
		}
		m.setState(StateDisconnected)
		log.Warn().Err(err).Dur("retry_in", wait).Msg("change stream disconnected, scheduling reconnect")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return
		}
		if wait *= 2; wait > m.maxWait {
			wait = m.maxWait
		}
	}
}

// stream opens the SSE connection and delivers frames until it breaks.
// onConnect fires once the stream is established.
func (m *Manager) stream(ctx context.Context, onConnect func()) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.streamURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if m.token != "" {
		req.Header.Set("Authorization", "Bearer "+m.token)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StreamError{Status: resp.StatusCode}
	}

	onConnect()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case line == "":
			if data.Len() > 0 {
				m.deliver(data.String())
				data.Reset()
			}
		}
	}
	return scanner.Err()
}

// deliver parses one SSE data payload and invokes every matching
// subscription synchronously, invalidating its cache keys first so the
// callback observes a cold cache.
func (m *Manager) deliver(payload string) {
	var event domain.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		log.Warn().Err(err).Msg("change stream: undecodable frame, skipping")
		return
	}

	m.mu.Lock()
	matched := make([]*Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		if sub.table == event.Table && sub.predicate.Matches(event.Row) {
			matched = append(matched, sub)
		}
	}
	m.mu.Unlock()

	for _, sub := range matched {
		for _, key := range sub.cacheKeys {
			m.cache.Invalidate(key)
		}
		if sub.onEvent != nil {
			sub.onEvent(event)
		}
	}
}

func (m *Manager) invalidateAllKeys() {
	m.mu.Lock()
	keys := make([]string, 0)
	for _, sub := range m.subs {
		keys = append(keys, sub.cacheKeys...)
	}
	m.mu.Unlock()

	for _, key := range keys {
		m.cache.Invalidate(key)
	}
}

func (m *Manager) setState(s ConnState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// StreamError reports a non-OK response to the stream request.
type StreamError struct {
	Status int
}

func (e *StreamError) Error() string {
	return "change stream: unexpected status " + http.StatusText(e.Status)
}
