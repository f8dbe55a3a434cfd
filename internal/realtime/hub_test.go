package realtime_test

import (
	"strings"
	"testing"
	"time"

	"github.com/fundlane/notification/internal/domain"
	"github.com/fundlane/notification/internal/realtime"
)

func mustPredicate(t *testing.T, s string) realtime.Predicate {
	t.Helper()
	p, err := realtime.ParsePredicate(s)
	if err != nil {
		t.Fatalf("parse predicate %q: %v", s, err)
	}
	return p
}

func contractUpdate(owner string) domain.ChangeEvent {
	return domain.ChangeEvent{
		Table:      "contracts",
		Op:         domain.OpUpdate,
		Row:        map[string]any{"id": "c-1", "owner": owner, "status": "ACTIVE"},
		OccurredAt: time.Now(),
	}
}

func TestParsePredicate(t *testing.T) {
	tests := []struct {
		in      string
		field   string
		value   string
		wantErr bool
	}{
		{in: "", field: "", value: ""},
		{in: "owner = u-1", field: "owner", value: "u-1"},
		{in: "owner=u-1", field: "owner", value: "u-1"},
		{in: "owner", wantErr: true},
		{in: " = x", wantErr: true},
	}
	for _, tt := range tests {
		p, err := realtime.ParsePredicate(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tt.in, err)
			continue
		}
		if p.Field != tt.field || p.Value != tt.value {
			t.Errorf("%q: got %+v", tt.in, p)
		}
	}
}

func TestPublish_PredicateFiltersRows(t *testing.T) {
	hub := realtime.NewHub()
	send := make(chan []byte, 4)
	sub := hub.Register([]realtime.Filter{
		{Table: "contracts", Predicate: mustPredicate(t, "owner = u-1")},
	}, send)
	defer hub.Unregister(sub)

	hub.Publish(contractUpdate("u-2"))
	select {
	case frame := <-send:
		t.Fatalf("event for another owner must not be delivered, got %s", frame)
	default:
	}

	hub.Publish(contractUpdate("u-1"))
	select {
	case frame := <-send:
		s := string(frame)
		if !strings.HasPrefix(s, "event: change\ndata: ") || !strings.HasSuffix(s, "\n\n") {
			t.Fatalf("malformed SSE frame: %q", s)
		}
		if !strings.Contains(s, `"contracts"`) || !strings.Contains(s, `"u-1"`) {
			t.Fatalf("frame missing event payload: %q", s)
		}
	default:
		t.Fatal("matching event was not delivered")
	}
}

func TestPublish_TableMismatchNotDelivered(t *testing.T) {
	hub := realtime.NewHub()
	send := make(chan []byte, 4)
	sub := hub.Register([]realtime.Filter{{Table: "deposits"}}, send)
	defer hub.Unregister(sub)

	hub.Publish(contractUpdate("u-1"))
	if len(send) != 0 {
		t.Fatal("event for an unwatched table must not be delivered")
	}
}

func TestPublish_EmptyPredicateMatchesAllRows(t *testing.T) {
	hub := realtime.NewHub()
	send := make(chan []byte, 4)
	sub := hub.Register([]realtime.Filter{{Table: "contracts"}}, send)
	defer hub.Unregister(sub)

	hub.Publish(contractUpdate("u-1"))
	hub.Publish(contractUpdate("u-2"))
	if len(send) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(send))
	}
}

func TestPublish_SlowSubscriberIsSkippedNotBlocked(t *testing.T) {
	hub := realtime.NewHub()
	send := make(chan []byte, 1)
	sub := hub.Register([]realtime.Filter{{Table: "contracts"}}, send)
	defer hub.Unregister(sub)

	done := make(chan struct{})
	go func() {
		hub.Publish(contractUpdate("u-1"))
		hub.Publish(contractUpdate("u-1")) // buffer full: must not block
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestUnregister_RemovesSubscriber(t *testing.T) {
	hub := realtime.NewHub()
	sub := hub.Register([]realtime.Filter{{Table: "contracts"}}, make(chan []byte, 1))
	if hub.ConnectedCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.ConnectedCount())
	}
	hub.Unregister(sub)
	if hub.ConnectedCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.ConnectedCount())
	}
}
