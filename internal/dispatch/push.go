package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/fundlane/notification/internal/domain"
)

// PushDispatcher speaks to the external push gateway. Same contract shape as
// email: the gateway is a collaborator, only its HTTP boundary is ours.
type PushDispatcher struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewPushDispatcher creates a PushDispatcher with a bounded call timeout.
func NewPushDispatcher(endpoint, apiKey string, timeout time.Duration) *PushDispatcher {
	return &PushDispatcher{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type pushRequest struct {
	DeviceToken string `json:"device_token"`
	Title       string `json:"title"`
	Body        string `json:"body"`
}

// Send posts the notification to the push gateway. The recipient of a push
// job is the device token registered for the user.
func (d *PushDispatcher) Send(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(pushRequest{
		DeviceToken: job.Recipient,
		Title:       job.Subject,
		Body:        job.Body,
	})
	if err != nil {
		return Permanent("encode push request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/v1/push", bytes.NewReader(payload))
	if err != nil {
		return Permanent("build push request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Transient("push gateway: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return classifyHTTPFailure(resp.StatusCode, "push gateway", body)
}
