package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/pipeline"
	"github.com/sells-group/sourcing-cli/internal/store"
)

func queryInt(r *http.Request, key string, def int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return def
}

func (s *Server) createEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		CustomerID string `json:"customer_id"`
		Mode       string `json:"mode"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, eris.Wrap(model.ErrValidation, "malformed JSON body"))
		return
	}
	if req.Name == "" || req.CustomerID == "" {
		writeError(w, eris.Wrap(model.ErrValidation, "name and customer_id are required"))
		return
	}

	now := time.Now().UTC()
	ev := &model.SourcingEvent{
		Name:       req.Name,
		CustomerID: req.CustomerID,
		Stage:      model.StageInvited,
		Mode:       req.Mode,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.CreateEvent(r.Context(), ev); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.store.ListEvents(r.Context(), queryInt(r, "limit", 50), queryInt(r, "offset", 0))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.store.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) gate(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipeline.CanAdvanceStage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor string `json:"actor"`
		Force bool   `json:"force"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, eris.Wrap(model.ErrValidation, "malformed JSON body"))
		return
	}
	ev, err := s.pipeline.AdvanceStage(r.Context(), chi.URLParam(r, "id"), req.Actor, req.Force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := s.store.ListAssignments(r.Context(), store.AssignmentFilter{
		EventID: chi.URLParam(r, "id"),
		Status:  model.AssignmentStatus(r.URL.Query().Get("status")),
		Limit:   queryInt(r, "limit", 0),
		Offset:  queryInt(r, "offset", 0),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

func (s *Server) invite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CarrierID   string          `json:"carrier_id"`
		CarrierName string          `json:"carrier_name"`
		LaneScope   model.LaneScope `json:"lane_scope"`
		Actor       string          `json:"actor"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, eris.Wrap(model.ErrValidation, "malformed JSON body"))
		return
	}
	a, err := s.pipeline.Invite(r.Context(), chi.URLParam(r, "id"), req.CarrierID, req.CarrierName, req.LaneScope, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) getAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.GetAssignment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) quickStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To    string `json:"to"`
		Actor string `json:"actor"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, eris.Wrap(model.ErrValidation, "malformed JSON body"))
		return
	}
	a, err := s.pipeline.QuickStatusChange(r.Context(), chi.URLParam(r, "id"), model.AssignmentStatus(req.To), req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor string `json:"actor"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, eris.Wrap(model.ErrValidation, "malformed JSON body"))
		return
	}
	a, err := s.pipeline.Withdraw(r.Context(), chi.URLParam(r, "id"), req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) decline(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor string `json:"actor"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, eris.Wrap(model.ErrValidation, "malformed JSON body"))
		return
	}
	a, err := s.pipeline.Decline(r.Context(), chi.URLParam(r, "id"), req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) award(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor string `json:"actor"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, eris.Wrap(model.ErrValidation, "malformed JSON body"))
		return
	}
	out, err := s.pipeline.Award(r.Context(), chi.URLParam(r, "id"), req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) notAward(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
		Notes  string `json:"notes"`
		Actor  string `json:"actor"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, eris.Wrap(model.ErrValidation, "malformed JSON body"))
		return
	}
	a, err := s.pipeline.NotAward(r.Context(), chi.URLParam(r, "id"), req.Reason, req.Notes, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) bulk(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action        string   `json:"action"`
		AssignmentIDs []string `json:"assignment_ids"`
		Reason        string   `json:"reason"`
		Actor         string   `json:"actor"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, eris.Wrap(model.ErrValidation, "malformed JSON body"))
		return
	}
	results, err := s.pipeline.BulkApply(r.Context(), pipeline.BulkAction(req.Action), req.AssignmentIDs, req.Reason, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) addNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthorID string `json:"author_id"`
		Body     string `json:"body"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, eris.Wrap(model.ErrValidation, "malformed JSON body"))
		return
	}
	receipt, err := s.pipeline.AddNote(r.Context(), chi.URLParam(r, "id"), req.AuthorID, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := struct {
		*pipeline.NoteReceipt
		FanoutError string `json:"fanout_error,omitempty"`
	}{NoteReceipt: receipt}
	if receipt.FanoutErr != nil {
		resp.FanoutError = receipt.FanoutErr.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.store.ListNotes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) listActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListActivity(r.Context(), chi.URLParam(r, "id"), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) redeliver(w http.ResponseWriter, r *http.Request) {
	if s.fanout == nil {
		writeError(w, eris.Wrap(model.ErrExternalService, "no webhook configured"))
		return
	}
	delivered, err := s.fanout.Redeliver(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"delivered": delivered})
}
