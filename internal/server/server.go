// Package server exposes the sourcing workflow over HTTP for the web UI.
// Handlers are thin: decode, call the pipeline, map sentinel errors to
// status codes.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/notify"
	"github.com/sells-group/sourcing-cli/internal/pipeline"
	"github.com/sells-group/sourcing-cli/internal/store"
)

// Server holds the HTTP API's dependencies.
type Server struct {
	store    store.Store
	pipeline *pipeline.Pipeline
	fanout   *notify.Fanout
	origins  []string
}

// New creates a Server. fanout may be nil; the redeliver endpoint then
// reports an error instead of delivering.
func New(st store.Store, p *pipeline.Pipeline, f *notify.Fanout, allowedOrigins []string) *Server {
	return &Server{store: st, pipeline: p, fanout: f, origins: allowedOrigins}
}

// Router builds the chi router with all workflow routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/events", func(api chi.Router) {
		api.Post("/", s.createEvent)
		api.Get("/", s.listEvents)
		api.Get("/{id}", s.getEvent)
		api.Get("/{id}/gate", s.gate)
		api.Post("/{id}/advance", s.advance)
		api.Get("/{id}/assignments", s.listAssignments)
		api.Post("/{id}/invite", s.invite)
	})

	r.Route("/assignments", func(api chi.Router) {
		api.Post("/bulk", s.bulk)
		api.Get("/{id}", s.getAssignment)
		api.Post("/{id}/status", s.quickStatus)
		api.Post("/{id}/withdraw", s.withdraw)
		api.Post("/{id}/decline", s.decline)
		api.Post("/{id}/award", s.award)
		api.Post("/{id}/not-award", s.notAward)
		api.Post("/{id}/notes", s.addNote)
		api.Get("/{id}/notes", s.listNotes)
		api.Get("/{id}/activity", s.listActivity)
	})

	r.Post("/notifications/redeliver", s.redeliver)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: write response", zap.Error(err))
	}
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps workflow sentinel errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"
	switch {
	case errors.Is(err, model.ErrValidation):
		status, code = http.StatusBadRequest, "validation"
	case errors.Is(err, model.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, model.ErrInvalidTransition):
		status, code = http.StatusUnprocessableEntity, "invalid_transition"
	case errors.Is(err, model.ErrPreconditionFailed):
		status, code = http.StatusUnprocessableEntity, "precondition_failed"
	case errors.Is(err, model.ErrStageGate):
		status, code = http.StatusUnprocessableEntity, "stage_gate"
	case errors.Is(err, model.ErrExternalService):
		status, code = http.StatusBadGateway, "external_service"
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Code: code})
}
