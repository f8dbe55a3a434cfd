package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fundlane/notification/internal/application"
	"github.com/fundlane/notification/internal/dispatch"
	"github.com/fundlane/notification/internal/domain"
	"github.com/fundlane/notification/internal/preference"
	"github.com/fundlane/notification/internal/realtime"
	"github.com/fundlane/notification/internal/template"
)

const (
	testJWTSecret     = "jwt-test-secret"
	testServiceSecret = "svc-test-secret"
)

// --- fakes ---

type fakeJobs struct {
	mu     sync.Mutex
	jobs   map[uuid.UUID]*domain.Job
	failed []*domain.Job
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[uuid.UUID]*domain.Job)}
}

func (f *fakeJobs) CreateBatch(_ context.Context, inputs []domain.CreateJobInput) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(inputs))
	for _, in := range inputs {
		id := uuid.New()
		f.jobs[id] = &domain.Job{
			ID: id, EventType: in.EventType, Channel: in.Channel,
			Recipient: in.Recipient, UserID: in.UserID,
			Subject: in.Subject, Body: in.Body,
			Status: domain.StatusPending, ScheduledFor: in.ScheduledFor,
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeJobs) ClaimDue(_ context.Context, now time.Time, limit int) ([]*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var claimed []*domain.Job
	for _, j := range f.jobs {
		if len(claimed) >= limit {
			break
		}
		if j.Status == domain.StatusPending && !j.ScheduledFor.After(now) {
			j.Status = domain.StatusProcessing
			cp := *j
			claimed = append(claimed, &cp)
		}
	}
	return claimed, nil
}

func (f *fakeJobs) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id].Status = domain.StatusSent
	f.jobs[id].ProcessedAt = &at
	return nil
}

func (f *fakeJobs) Reschedule(_ context.Context, id uuid.UUID, retryCount int, lastError string, scheduledFor time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[id]
	j.Status = domain.StatusPending
	j.RetryCount = retryCount
	j.LastError = lastError
	j.ScheduledFor = scheduledFor
	return nil
}

func (f *fakeJobs) MarkFailed(_ context.Context, id uuid.UUID, retryCount int, lastError string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[id]
	j.Status = domain.StatusFailed
	j.RetryCount = retryCount
	j.LastError = lastError
	j.ProcessedAt = &at
	f.failed = append(f.failed, j)
	return nil
}

func (f *fakeJobs) GetByID(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.jobs[id]
	return &cp, nil
}

func (f *fakeJobs) ListFailed(_ context.Context, limit, offset int) ([]*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Job
	for i := offset; i < len(f.failed) && len(out) < limit; i++ {
		cp := *f.failed[i]
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeJobs) PurgeTerminalOlderThan(context.Context, int) (int64, error) { return 0, nil }

type fakePrefs struct{}

func (fakePrefs) Overrides(context.Context, string, string) (map[domain.Channel]bool, error) {
	return nil, nil
}
func (fakePrefs) Upsert(context.Context, []domain.Preference) error { return nil }

type fakeInbox struct {
	mu       sync.Mutex
	messages []*domain.InboxMessage
}

func (f *fakeInbox) Create(_ context.Context, in domain.CreateInboxInput) (*domain.InboxMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := &domain.InboxMessage{
		ID: uuid.New(), UserID: in.UserID, EventType: in.EventType,
		Title: in.Title, Body: in.Body, CreatedAt: time.Now(),
	}
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeInbox) List(_ context.Context, filter domain.InboxFilter) ([]*domain.InboxMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.InboxMessage
	for _, m := range f.messages {
		if m.UserID != filter.UserID {
			continue
		}
		if filter.IsRead != nil && m.IsRead != *filter.IsRead {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeInbox) CountUnread(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.messages {
		if m.UserID == userID && !m.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeInbox) MarkRead(_ context.Context, id uuid.UUID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.ID == id && m.UserID == userID {
			m.IsRead = true
			return nil
		}
	}
	return context.Canceled
}

func (f *fakeInbox) MarkAllRead(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.messages {
		if m.UserID == userID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (f *fakeInbox) PurgeReadOlderThan(context.Context, int) (int64, error) { return 0, nil }

type okDispatcher struct{}

func (okDispatcher) Send(context.Context, *domain.Job) error { return nil }

// --- harness ---

type fixture struct {
	server *httptest.Server
	jobs   *fakeJobs
	inbox  *fakeInbox
	hub    *realtime.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	jobs := newFakeJobs()
	inbox := &fakeInbox{}
	hub := realtime.NewHub()
	resolver := preference.NewResolver(fakePrefs{})
	enqueuer := application.NewEnqueuer(jobs, resolver, template.NewRegistry())

	cfg := application.DefaultWorkerConfig()
	worker := application.NewWorker(jobs, okDispatcher{}, hub, cfg)

	h := NewHandler(enqueuer, worker, resolver, jobs, inbox, hub)
	e := NewRouter(h, testJWTSecret, testServiceSecret)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return &fixture{server: srv, jobs: jobs, inbox: inbox, hub: hub}
}

func userToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func doRequest(t *testing.T, method, url, bearer, body string) *http.Response {
	t.Helper()
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// --- tests ---

func TestEnqueueEndpoint(t *testing.T) {
	f := newFixture(t)

	body := `{
		"event_type": "deposit.approved",
		"user_id": "u-1",
		"recipient": "u1@example.com",
		"params": {"amount": "100", "currency": "USD"}
	}`
	resp := doRequest(t, http.MethodPost, f.server.URL+"/v1/notifications", testServiceSecret, body)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var result struct {
		JobIDs        []uuid.UUID       `json:"job_ids"`
		ChannelErrors map[string]string `json:"channel_errors,omitempty"`
	}
	decodeJSON(t, resp, &result)
	if len(result.JobIDs) != 3 {
		t.Fatalf("job IDs = %d, want 3 (email, push, internal)", len(result.JobIDs))
	}
}

func TestEnqueueEndpointRejectsValidation(t *testing.T) {
	f := newFixture(t)

	body := `{
		"event_type": "deposit.approved",
		"user_id": "u-1",
		"recipient": "u1@example.com",
		"params": {"amount": "-5", "currency": "USD"}
	}`
	resp := doRequest(t, http.MethodPost, f.server.URL+"/v1/notifications", testServiceSecret, body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServiceEndpointsRequireSecret(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct{ method, path, bearer string }{
		{http.MethodPost, "/v1/worker/run", ""},
		{http.MethodPost, "/v1/worker/run", "wrong-secret"},
		{http.MethodPost, "/v1/notifications", "wrong-secret"},
		{http.MethodGet, "/v1/jobs/failed", ""},
	} {
		resp := doRequest(t, tc.method, f.server.URL+tc.path, tc.bearer, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s with bearer %q: status = %d, want 401", tc.method, tc.path, tc.bearer, resp.StatusCode)
		}
	}
}

func TestWorkerRunReturnsProcessedCount(t *testing.T) {
	f := newFixture(t)

	enqueueBody := `{
		"event_type": "contract.matured",
		"user_id": "u-2",
		"recipient": "u2@example.com",
		"params": {"contract": "C-9", "amount": "500", "currency": "USD"}
	}`
	resp := doRequest(t, http.MethodPost, f.server.URL+"/v1/notifications", testServiceSecret, enqueueBody)
	resp.Body.Close()

	resp = doRequest(t, http.MethodPost, f.server.URL+"/v1/worker/run", testServiceSecret, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var result map[string]int
	decodeJSON(t, resp, &result)
	if result["processed"] != 3 {
		t.Fatalf("processed = %d, want 3", result["processed"])
	}

	// Second run finds nothing pending.
	resp = doRequest(t, http.MethodPost, f.server.URL+"/v1/worker/run", testServiceSecret, "")
	decodeJSON(t, resp, &result)
	if result["processed"] != 0 {
		t.Fatalf("second run processed = %d, want 0", result["processed"])
	}
}

func TestInboxEndpointsScopedToUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, owner := range []string{"u-1", "u-1", "u-2"} {
		if _, err := f.inbox.Create(ctx, domain.CreateInboxInput{
			UserID: owner, EventType: "chat.message", Title: "New message", Body: "hi",
		}); err != nil {
			t.Fatalf("seed inbox: %v", err)
		}
	}

	resp := doRequest(t, http.MethodGet, f.server.URL+"/v1/inbox", userToken(t, "u-1"), "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var listResp struct {
		Data []*domain.InboxMessage `json:"data"`
	}
	decodeJSON(t, resp, &listResp)
	if len(listResp.Data) != 2 {
		t.Fatalf("messages = %d, want 2", len(listResp.Data))
	}
	for _, m := range listResp.Data {
		if m.UserID != "u-1" {
			t.Fatalf("leaked message for %s", m.UserID)
		}
	}

	resp = doRequest(t, http.MethodGet, f.server.URL+"/v1/inbox/unread-count", userToken(t, "u-2"), "")
	var countResp map[string]int64
	decodeJSON(t, resp, &countResp)
	if countResp["count"] != 1 {
		t.Fatalf("unread count = %d, want 1", countResp["count"])
	}

	resp = doRequest(t, http.MethodPost, f.server.URL+"/v1/inbox/read-all", userToken(t, "u-1"), "")
	var markResp map[string]int64
	decodeJSON(t, resp, &markResp)
	if markResp["marked"] != 2 {
		t.Fatalf("marked = %d, want 2", markResp["marked"])
	}
}

func TestInboxRequiresValidJWT(t *testing.T) {
	f := newFixture(t)

	resp := doRequest(t, http.MethodGet, f.server.URL+"/v1/inbox", "", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", resp.StatusCode)
	}

	bogus := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u-1"})
	signed, _ := bogus.SignedString([]byte("some-other-secret"))
	resp = doRequest(t, http.MethodGet, f.server.URL+"/v1/inbox", signed, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong signer: status = %d, want 401", resp.StatusCode)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	f := newFixture(t)
	token := userToken(t, "u-1")

	resp := doRequest(t, http.MethodGet, f.server.URL+"/v1/preferences/deposit.approved", token, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var matrix domain.ChannelMatrix
	decodeJSON(t, resp, &matrix)
	if !matrix.Email || !matrix.Push || !matrix.Internal {
		t.Fatalf("defaults = %+v, want all enabled", matrix)
	}

	resp = doRequest(t, http.MethodPut, f.server.URL+"/v1/preferences/deposit.approved", token, `{"email": false}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("put status = %d, want 204", resp.StatusCode)
	}
}

func TestStreamChangesRequiresTables(t *testing.T) {
	f := newFixture(t)

	resp := doRequest(t, http.MethodGet, f.server.URL+"/v1/changes/stream", userToken(t, "u-1"), "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStreamChangesDeliversOwnedEvents(t *testing.T) {
	f := newFixture(t)

	req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/v1/changes/stream?tables=inbox_messages", nil)
	req.Header.Set("Authorization", "Bearer "+userToken(t, "u-1"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	// Wait for the subscriber to register before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for f.hub.ConnectedCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.hub.Publish(domain.ChangeEvent{
		Table: "inbox_messages",
		Op:    domain.OpInsert,
		Row:   map[string]any{"owner": "u-1", "title": "hello"},
	})
	f.hub.Publish(domain.ChangeEvent{
		Table: "inbox_messages",
		Op:    domain.OpInsert,
		Row:   map[string]any{"owner": "u-2", "title": "not yours"},
	})

	buf := make([]byte, 4096)
	var received string
	readDeadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(received, "hello") {
		if time.Now().After(readDeadline) {
			t.Fatalf("event never arrived, got %q", received)
		}
		n, err := resp.Body.Read(buf)
		if n > 0 {
			received += string(buf[:n])
		}
		if err != nil {
			break
		}
	}
	if !strings.Contains(received, "hello") {
		t.Fatalf("expected own event in stream, got %q", received)
	}
	if strings.Contains(received, "not yours") {
		t.Fatalf("foreign event leaked into stream: %q", received)
	}
}

func TestHealthIsPublic(t *testing.T) {
	f := newFixture(t)

	resp := doRequest(t, http.MethodGet, f.server.URL+"/health", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var health map[string]any
	decodeJSON(t, resp, &health)
	if health["status"] != "ok" {
		t.Fatalf("status field = %v", health["status"])
	}
}

var _ dispatch.Dispatcher = okDispatcher{}
