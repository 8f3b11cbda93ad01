// Package api provides HTTP handlers and the main API server logic for the
// arena backend.
//
// It exposes RESTful endpoints for evaluations (blocking and streaming),
// user journeys, and conversation state management. Bearer-token auth is
// validated upstream; handlers trust the user IDs they receive.
package api

import (
	"log/slog"
	"net/http"

	"github.com/aifightclub/arena/internal/conversation"
	"github.com/aifightclub/arena/internal/evaluation"
	"github.com/aifightclub/arena/internal/journey"
	"github.com/aifightclub/arena/internal/store"
)

// Server holds the API server dependencies.
type Server struct {
	evalService    *evaluation.Service
	journeyService *journey.Service
	states         conversation.StateManager
	store          store.Store
}

// NewServer creates an API server with the given dependencies.
func NewServer(evalService *evaluation.Service, journeyService *journey.Service, states conversation.StateManager, st store.Store) *Server {
	slog.Debug("Creating API server")
	return &Server{
		evalService:    evalService,
		journeyService: journeyService,
		states:         states,
		store:          st,
	}
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /evaluations", s.createEvaluationHandler)
	mux.HandleFunc("POST /evaluations/stream", s.streamEvaluationHandler)
	mux.HandleFunc("GET /evaluations/{id}", s.getEvaluationHandler)
	mux.HandleFunc("GET /users/{id}/evaluations", s.listUserEvaluationsHandler)

	mux.HandleFunc("POST /users/{id}/journey/events", s.recordJourneyEventHandler)
	mux.HandleFunc("GET /users/{id}/journey", s.getJourneyHandler)
	mux.HandleFunc("GET /users/{id}/journey/insights", s.getJourneyInsightsHandler)

	mux.HandleFunc("POST /conversations/{threadID}/archive", s.archiveConversationHandler)

	mux.HandleFunc("GET /health", s.healthHandler)

	return mux
}

// Run starts the API server on the given address and blocks.
func (s *Server) Run(addr string) error {
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}
