package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/notify"
	"github.com/sells-group/sourcing-cli/internal/pipeline"
	"github.com/sells-group/sourcing-cli/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	fanout := notify.NewFanout(s, nil)
	p := pipeline.New(s, nil, fanout, 4)
	srv := httptest.NewServer(New(s, p, fanout, nil).Router())
	t.Cleanup(srv.Close)
	return srv, s
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestServerAwardFlow(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	// Create an event at the award stage.
	resp := postJSON(t, srv.URL+"/events", map[string]string{
		"name":        "Lane RFP",
		"customer_id": "cust-1",
		"mode":        "ftl",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ev := decode[model.SourcingEvent](t, resp)

	require.NoError(t, s.UpdateEventStage(ctx, ev.ID, model.StageInvited, model.StageAwardFinalization))

	// Invite a carrier.
	resp = postJSON(t, srv.URL+"/events/"+ev.ID+"/invite", map[string]any{
		"carrier_id":   "carrier-1",
		"carrier_name": "Acme Freight",
		"actor":        "user-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	a := decode[model.CarrierAssignment](t, resp)
	assert.Equal(t, model.StatusInvited, a.Status)

	// Move it into review.
	for _, to := range []string{"submitted", "under_review"} {
		resp = postJSON(t, srv.URL+"/assignments/"+a.ID+"/status", map[string]string{
			"to": to, "actor": "user-1",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	// Award it.
	resp = postJSON(t, srv.URL+"/assignments/"+a.ID+"/award", map[string]string{"actor": "user-9"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[store.AwardOutcome](t, resp)
	assert.NotEmpty(t, out.TariffID)
	assert.Contains(t, out.ReferenceID, "TRF-")

	// Double award conflicts.
	resp = postJSON(t, srv.URL+"/assignments/"+a.ID+"/award", map[string]string{"actor": "user-9"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServerErrorMapping(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/assignments/nonexistent")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		body := decode[errorBody](t, resp)
		assert.Equal(t, "not_found", body.Code)
	})

	t.Run("validation", func(t *testing.T) {
		resp := postJSON(t, srv.URL+"/events", map[string]string{"name": "no customer"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("stage gate", func(t *testing.T) {
		ev := &model.SourcingEvent{Name: "Gated", CustomerID: "cust-1", Stage: model.StageRFPSent}
		require.NoError(t, s.CreateEvent(ctx, ev))

		resp := postJSON(t, srv.URL+"/events/"+ev.ID+"/advance", map[string]any{"actor": "user-1"})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		body := decode[errorBody](t, resp)
		assert.Equal(t, "stage_gate", body.Code)
	})

	t.Run("terminal transition", func(t *testing.T) {
		ev := &model.SourcingEvent{Name: "E", CustomerID: "cust-1", Stage: model.StageBidsReceived}
		require.NoError(t, s.CreateEvent(ctx, ev))
		a := &model.CarrierAssignment{EventID: ev.ID, CarrierID: "carrier-1"}
		require.NoError(t, s.CreateAssignment(ctx, a))

		resp := postJSON(t, srv.URL+"/assignments/"+a.ID+"/status", map[string]string{
			"to": "awarded", "actor": "user-1",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestServerGateAndBulk(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	ev := &model.SourcingEvent{Name: "Bulk RFP", CustomerID: "cust-1", Stage: model.StageBidsReceived, Mode: "ftl"}
	require.NoError(t, s.CreateEvent(ctx, ev))

	var ids []string
	for i := 1; i <= 3; i++ {
		a := &model.CarrierAssignment{EventID: ev.ID, CarrierID: fmt.Sprintf("carrier-%d", i)}
		require.NoError(t, s.CreateAssignment(ctx, a))
		ids = append(ids, a.ID)
	}

	// Gate closed: no awards yet.
	resp, err := http.Get(srv.URL + "/events/" + ev.ID + "/gate")
	require.NoError(t, err)
	defer resp.Body.Close()
	gate := decode[pipeline.GateResult](t, resp)
	assert.False(t, gate.CanAdvance)

	// Bulk mark submitted.
	bresp := postJSON(t, srv.URL+"/assignments/bulk", map[string]any{
		"action":         "mark_submitted",
		"assignment_ids": ids,
		"actor":          "user-1",
	})
	require.Equal(t, http.StatusOK, bresp.StatusCode)
	results := decode[map[string]pipeline.BulkItem](t, bresp)
	require.Len(t, results, 3)
	for _, id := range ids {
		assert.Empty(t, results[id].Error)
	}

	submitted, err := s.ListAssignments(ctx, store.AssignmentFilter{EventID: ev.ID, Status: model.StatusSubmitted})
	require.NoError(t, err)
	assert.Len(t, submitted, 3)
}
