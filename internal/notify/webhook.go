package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/resilience"
)

// Webhook posts notification payloads to an external endpoint. Calls are
// rate limited and retried on transient failures.
type Webhook struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewWebhook creates a Webhook pusher. rps bounds outbound request rate;
// maxAttempts bounds retries per notification.
func NewWebhook(url string, rps float64, maxAttempts int) *Webhook {
	cfg := resilience.DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if rps <= 0 {
		rps = 5
	}
	return &Webhook{
		url:     url,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		retry:   cfg,
	}
}

type webhookPayload struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	RecipientID  string    `json:"recipient_id"`
	NoteID       string    `json:"note_id"`
	AssignmentID string    `json:"assignment_id"`
	EventID      string    `json:"event_id"`
	AuthorID     string    `json:"author_id"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
}

// Push delivers a single notification, retrying transient failures.
func (w *Webhook) Push(ctx context.Context, n model.Notification) error {
	body, err := json.Marshal(webhookPayload{
		ID:           n.ID,
		Type:         string(n.Type),
		RecipientID:  n.RecipientID,
		NoteID:       n.NoteID,
		AssignmentID: n.AssignmentID,
		EventID:      n.EventID,
		AuthorID:     n.AuthorID,
		Body:         n.Body,
		CreatedAt:    n.CreatedAt,
	})
	if err != nil {
		return eris.Wrap(err, "notify: marshal payload")
	}

	err = resilience.Do(ctx, w.retry, func(ctx context.Context) error {
		if err := w.limiter.Wait(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			return resilience.NewTransientError(err, 0)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		err = eris.Errorf("notify: webhook returned %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	})
	if err != nil {
		return eris.Wrapf(model.ErrExternalService, "webhook delivery: %v", err)
	}
	return nil
}
