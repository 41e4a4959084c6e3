// Package notify turns resolved mentions into durable notification records
// and delivers them to the configured webhook. Persistence and delivery are
// separate steps: rows are enqueued idempotently first, and delivery
// failures never undo them.
package notify

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// Sink is the durable notification queue (the notifications table).
type Sink interface {
	EnqueueNotifications(ctx context.Context, ns []model.Notification) (int, error)
	ListUndelivered(ctx context.Context, limit int) ([]model.Notification, error)
	MarkDelivered(ctx context.Context, ids []string) error
}

// Fanout creates and delivers mention notifications.
type Fanout struct {
	sink    Sink
	webhook *Webhook // nil when no webhook is configured
}

// NewFanout creates a Fanout. webhook may be nil, in which case rows are
// enqueued and left for a later delivery pass.
func NewFanout(sink Sink, webhook *Webhook) *Fanout {
	return &Fanout{sink: sink, webhook: webhook}
}

// Build constructs one notification per recipient for a saved note. The
// idempotency key is derived from (note, recipient), so building and
// enqueueing the same set twice cannot duplicate rows.
func Build(note *model.Note, eventID string, recipients []model.DirectoryUser) []model.Notification {
	out := make([]model.Notification, 0, len(recipients))
	for _, r := range recipients {
		out = append(out, model.Notification{
			RecipientID:    r.ID,
			Type:           model.NotificationMention,
			NoteID:         note.ID,
			AssignmentID:   note.AssignmentID,
			EventID:        eventID,
			AuthorID:       note.AuthorID,
			Body:           note.Body,
			IdempotencyKey: model.NotificationKey(note.ID, r.ID),
		})
	}
	return out
}

// FanOut enqueues one notification per recipient and attempts immediate
// webhook delivery. The enqueue is the durable part; a delivery failure is
// logged and returned, but the rows stay queued for Redeliver.
func (f *Fanout) FanOut(ctx context.Context, note *model.Note, eventID string, recipients []model.DirectoryUser) (int, error) {
	if len(recipients) == 0 {
		return 0, nil
	}

	ns := Build(note, eventID, recipients)
	inserted, err := f.sink.EnqueueNotifications(ctx, ns)
	if err != nil {
		return inserted, eris.Wrap(err, "notify: enqueue")
	}
	if inserted < len(ns) {
		zap.L().Debug("notify: skipped duplicate notifications",
			zap.String("note_id", note.ID),
			zap.Int("skipped", len(ns)-inserted),
		)
	}

	if f.webhook == nil {
		return inserted, nil
	}

	// Mark each notification as it succeeds so a mid-batch failure does not
	// leave already-pushed rows queued for redelivery.
	for _, n := range ns {
		if err := f.webhook.Push(ctx, n); err != nil {
			zap.L().Error("notify: webhook delivery failed",
				zap.String("note_id", n.NoteID),
				zap.String("recipient", n.RecipientID),
				zap.Error(err),
			)
			return inserted, eris.Wrap(err, "notify: deliver")
		}
		if err := f.sink.MarkDelivered(ctx, []string{n.ID}); err != nil {
			return inserted, eris.Wrap(err, "notify: mark delivered")
		}
	}
	return inserted, nil
}

// Redeliver pushes undelivered notifications to the webhook, marking each
// delivered as it succeeds. Returns the number delivered.
func (f *Fanout) Redeliver(ctx context.Context, limit int) (int, error) {
	if f.webhook == nil {
		return 0, eris.Wrap(model.ErrExternalService, "notify: no webhook configured")
	}

	pending, err := f.sink.ListUndelivered(ctx, limit)
	if err != nil {
		return 0, eris.Wrap(err, "notify: list undelivered")
	}

	delivered := 0
	for _, n := range pending {
		if err := f.webhook.Push(ctx, n); err != nil {
			zap.L().Warn("notify: redelivery failed, stopping pass",
				zap.String("notification_id", n.ID),
				zap.Error(err),
			)
			return delivered, eris.Wrap(err, "notify: redeliver")
		}
		if err := f.sink.MarkDelivered(ctx, []string{n.ID}); err != nil {
			return delivered, eris.Wrap(err, "notify: mark delivered")
		}
		delivered++
	}
	return delivered, nil
}
