package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aifightclub/arena/internal/models"
)

func (s *Server) recordJourneyEventHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	userID := r.PathValue("id")
	slog.Debug("Server.recordJourneyEventHandler: processing journey event", "userID", userID)

	var event models.UserJourneyEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		slog.Warn("Server.recordJourneyEventHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	// The URL owns the user identity; a mismatched body is a client error.
	if event.UserID == "" {
		event.UserID = userID
	} else if event.UserID != userID {
		slog.Warn("Server.recordJourneyEventHandler: user mismatch", "pathUserID", userID, "bodyUserID", event.UserID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("event user does not match URL user"))
		return
	}

	journey, err := s.journeyService.RecordEvent(r.Context(), event)
	if err != nil {
		slog.Warn("Server.recordJourneyEventHandler: record failed", "error", err, "userID", userID)
		writeDomainError(w, err)
		return
	}
	slog.Info("Server.recordJourneyEventHandler: event recorded", "userID", userID, "eventType", event.EventType)
	writeJSONResponse(w, http.StatusCreated, models.Success(journey))
}

func (s *Server) getJourneyHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	slog.Debug("Server.getJourneyHandler: fetching journey", "userID", userID)

	journey, err := s.journeyService.GetJourney(r.Context(), userID)
	if err != nil {
		slog.Warn("Server.getJourneyHandler: fetch failed", "error", err, "userID", userID)
		writeDomainError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(journey))
}

func (s *Server) getJourneyInsightsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")
	slog.Debug("Server.getJourneyInsightsHandler: fetching insights", "userID", userID)

	insights, err := s.journeyService.GetInsights(r.Context(), userID)
	if err != nil {
		slog.Warn("Server.getJourneyInsightsHandler: fetch failed", "error", err, "userID", userID)
		writeDomainError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(insights))
}
