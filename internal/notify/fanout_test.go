package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/store"
)

func newTestSink(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testNote() *model.Note {
	return &model.Note{
		ID:           "note-1",
		AssignmentID: "assign-1",
		AuthorID:     "user-1",
		Body:         "@Jane Doe please review",
	}
}

var testRecipients = []model.DirectoryUser{
	{ID: "u2", FirstName: "Jane", LastName: "Doe"},
	{ID: "u3", FirstName: "John", LastName: "Smith"},
}

func TestBuild(t *testing.T) {
	ns := Build(testNote(), "event-1", testRecipients)
	require.Len(t, ns, 2)
	assert.Equal(t, "u2", ns[0].RecipientID)
	assert.Equal(t, model.NotificationMention, ns[0].Type)
	assert.Equal(t, model.NotificationKey("note-1", "u2"), ns[0].IdempotencyKey)

	// Same inputs, same keys.
	again := Build(testNote(), "event-1", testRecipients)
	assert.Equal(t, ns[0].IdempotencyKey, again[0].IdempotencyKey)
	assert.NotEqual(t, ns[0].IdempotencyKey, ns[1].IdempotencyKey)
}

func TestFanOutEnqueueOnly(t *testing.T) {
	sink := newTestSink(t)
	f := NewFanout(sink, nil)
	ctx := context.Background()

	n, err := f.FanOut(ctx, testNote(), "event-1", testRecipients)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Retrying the same fanout inserts nothing new.
	n, err = f.FanOut(ctx, testNote(), "event-1", testRecipients)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	pending, err := sink.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestFanOutDeliversToWebhook(t *testing.T) {
	sink := newTestSink(t)
	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "mention", payload["type"])
		received.Add(1)
	}))
	defer srv.Close()

	f := NewFanout(sink, NewWebhook(srv.URL, 100, 3))
	ctx := context.Background()

	n, err := f.FanOut(ctx, testNote(), "event-1", testRecipients)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int64(2), received.Load())

	pending, err := sink.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "delivered notifications leave the queue")
}

func TestFanOutDeliveryFailureKeepsQueue(t *testing.T) {
	sink := newTestSink(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	f := NewFanout(sink, NewWebhook(srv.URL, 100, 2))
	ctx := context.Background()

	n, err := f.FanOut(ctx, testNote(), "event-1", testRecipients)
	assert.Equal(t, 2, n, "enqueue succeeds before delivery is attempted")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrExternalService)

	pending, err := sink.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2, "undelivered rows stay queued")
}

func TestFanOutPartialFailureMarksDelivered(t *testing.T) {
	sink := newTestSink(t)
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	f := NewFanout(sink, NewWebhook(srv.URL, 100, 2))
	ctx := context.Background()

	n, err := f.FanOut(ctx, testNote(), "event-1", testRecipients)
	assert.Equal(t, 2, n)
	require.Error(t, err)

	// The first notification was pushed before the failure; only the second
	// may be redelivered.
	pending, err := sink.ListUndelivered(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "u3", pending[0].RecipientID)
}

func TestWebhookRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, 100, 3)
	err := wh.Push(context.Background(), model.Notification{ID: "n1", Type: model.NotificationMention})
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
}

func TestWebhookPermanentFailureNoRetry(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, 100, 3)
	err := wh.Push(context.Background(), model.Notification{ID: "n1"})
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load(), "4xx must not be retried")
}

func TestRedeliver(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	// Queue without delivering.
	noWebhook := NewFanout(sink, nil)
	_, err := noWebhook.FanOut(ctx, testNote(), "event-1", testRecipients)
	require.NoError(t, err)

	var received atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
	}))
	defer srv.Close()

	f := NewFanout(sink, NewWebhook(srv.URL, 100, 3))
	delivered, err := f.Redeliver(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.Equal(t, int64(2), received.Load())

	// Nothing left.
	delivered, err = f.Redeliver(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, delivered)
}
