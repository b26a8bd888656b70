// Package notify delivers step lifecycle alerts to a dashboard sink.
// Delivery is fire-and-forget: a failed or slow sink never affects
// pipeline correctness.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status describes a step lifecycle transition.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Level grades an alert's severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Alert is one informational lifecycle event.
type Alert struct {
	StepID        string            `json:"stepId"`
	Status        Status            `json:"status"`
	RunID         string            `json:"runId"`
	ContainerID   string            `json:"containerId,omitempty"`
	Title         string            `json:"title"`
	Subtitle      string            `json:"subtitle,omitempty"`
	Level         Level             `json:"level,omitempty"`
	ToolCallCount int64             `json:"toolCallCount,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Notifier delivers alerts. Implementations must not block the caller
// on delivery and must swallow delivery failures.
type Notifier interface {
	Send(alert Alert)
}

// HTTPNotifier posts alerts to a dashboard endpoint in the background.
type HTTPNotifier struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

// NewHTTPNotifier creates a notifier posting to the given URL.
func NewHTTPNotifier(url string, logger *zap.Logger) *HTTPNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPNotifier{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// Send posts the alert without waiting for the result. Failures are
// logged at debug level and otherwise dropped; they are never retried
// and never surfaced.
func (n *HTTPNotifier) Send(alert Alert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		n.logger.Debug("alert serialization failed", zap.Error(err))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
		if err != nil {
			n.logger.Debug("alert request build failed", zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			n.logger.Debug("alert delivery failed", zap.String("step", alert.StepID), zap.Error(err))
			return
		}
		resp.Body.Close()
	}()
}

// NopNotifier drops every alert. Useful for tests and CLI runs without
// a dashboard.
type NopNotifier struct{}

func (NopNotifier) Send(Alert) {}

// Recorder captures alerts in order for assertions in tests. Safe for
// concurrent use so it can observe parallel pipeline phases.
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *Recorder) Send(alert Alert) {
	r.mu.Lock()
	r.alerts = append(r.alerts, alert)
	r.mu.Unlock()
}

// Alerts returns a copy of the captured alerts.
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}
