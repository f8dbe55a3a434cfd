package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fundlane/notification/internal/domain"
)

// EmailDispatcher delegates to the hosted email transport's REST API.
type EmailDispatcher struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewEmailDispatcher creates an EmailDispatcher with a bounded call timeout.
// A call exceeding the timeout is a transient failure, never left hanging.
func NewEmailDispatcher(endpoint, apiKey string, timeout time.Duration) *EmailDispatcher {
	return &EmailDispatcher{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type emailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Send posts the compiled message to the transport. Network failures and
// 5xx responses are transient; a 4xx rejecting the recipient address is
// permanent and bypasses the remaining retry budget.
func (d *EmailDispatcher) Send(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(emailRequest{
		To:      job.Recipient,
		Subject: job.Subject,
		Body:    job.Body,
	})
	if err != nil {
		return Permanent("encode email request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return Permanent("build email request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Transient("email transport: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	log.Warn().
		Int("status", resp.StatusCode).
		Str("job", job.ID.String()).
		Msg("email transport rejected send")

	return classifyHTTPFailure(resp.StatusCode, "email transport", body)
}

// classifyHTTPFailure maps a non-2xx transport response to the retry taxonomy.
// 408 and 429 are explicitly retryable; other 4xx responses mean the request
// itself is bad (typically a malformed recipient) and will never succeed.
func classifyHTTPFailure(status int, transport string, body []byte) error {
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests:
		return Transient("%s: status %d: %s", transport, status, body)
	case status >= 400 && status < 500:
		return Permanent("%s: status %d: %s", transport, status, body)
	default:
		return Transient("%s: status %d: %s", transport, status, body)
	}
}
