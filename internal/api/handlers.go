// Package api provides HTTP handlers for arena endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aifightclub/arena/internal/evaluation"
	"github.com/aifightclub/arena/internal/models"
)

func (s *Server) createEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createEvaluationHandler: processing evaluation request", "path", r.URL.Path)

	var req models.EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createEvaluationHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	result, err := s.evalService.EvaluateResponses(r.Context(), req.Challenge, req.Responses, evaluation.Options{ThreadID: req.ThreadID})
	if err != nil {
		slog.Warn("Server.createEvaluationHandler: evaluation failed", "error", err)
		writeDomainError(w, err)
		return
	}

	slog.Info("Server.createEvaluationHandler: evaluation created", "evaluationID", result.ID, "userID", result.UserID)
	writeJSONResponse(w, http.StatusCreated, models.Success(result))
}

func (s *Server) getEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	slog.Debug("Server.getEvaluationHandler: fetching evaluation", "evaluationID", id)

	result, err := s.evalService.GetEvaluation(r.Context(), id)
	if err != nil {
		slog.Warn("Server.getEvaluationHandler: fetch failed", "error", err, "evaluationID", id)
		writeDomainError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

func (s *Server) listUserEvaluationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	slog.Debug("Server.listUserEvaluationsHandler: listing evaluations", "userID", userID)

	results, err := s.evalService.ListUserEvaluations(r.Context(), userID)
	if err != nil {
		slog.Warn("Server.listUserEvaluationsHandler: list failed", "error", err, "userID", userID)
		writeDomainError(w, err)
		return
	}
	if results == nil {
		results = []models.Evaluation{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(results))
}

func (s *Server) archiveConversationHandler(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("threadID")
	slog.Debug("Server.archiveConversationHandler: archiving thread", "threadID", threadID)

	if err := s.states.ArchiveThreadState(r.Context(), threadID); err != nil {
		slog.Warn("Server.archiveConversationHandler: archive failed", "error", err, "threadID", threadID)
		writeDomainError(w, err)
		return
	}
	slog.Info("Server.archiveConversationHandler: thread archived", "threadID", threadID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation archived", nil))
}
