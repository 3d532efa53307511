// Package remediation defines the remediation runner collaborator.
// The automation engine never executes remediation code itself; it
// hands a script reference to a runner and records the handoff.
package remediation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Request is a remediation handoff: a script reference plus parameters.
type Request struct {
	Script      string            `json:"script"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	ViolationID string            `json:"violation_id"`
	IncidentID  string            `json:"incident_id,omitempty"`
	RequestedAt time.Time         `json:"requested_at"`
}

// Runner executes remediation scripts. Execution and result handling
// are out of the engine's scope.
type Runner interface {
	Run(ctx context.Context, req Request) error
}

// Recorder records remediation requests without executing anything.
// It is the default runner and doubles as a test double.
type Recorder struct {
	mu       sync.Mutex
	requests []Request
	logger   *slog.Logger
}

// NewRecorder creates a recording runner.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger}
}

// Run records the request.
func (r *Recorder) Run(ctx context.Context, req Request) error {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()

	r.logger.Info("remediation recorded",
		"script", req.Script,
		"violation", req.ViolationID,
		"incident", req.IncidentID)
	return nil
}

// Requests returns the recorded requests.
func (r *Recorder) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Request, len(r.requests))
	copy(out, r.requests)
	return out
}

// WebhookRunner forwards remediation requests to an external runner
// service over HTTP.
type WebhookRunner struct {
	url    string
	client *http.Client
}

// NewWebhookRunner creates a webhook-backed runner.
func NewWebhookRunner(url string) *WebhookRunner {
	return &WebhookRunner{
		url: url,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Run posts the request to the runner service.
func (w *WebhookRunner) Run(ctx context.Context, req Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal remediation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("remediation runner request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("remediation runner returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
