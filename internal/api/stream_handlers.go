package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/aifightclub/arena/internal/evaluation"
	"github.com/aifightclub/arena/internal/models"
)

func (s *Server) streamEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.streamEvaluationHandler: processing streaming evaluation", "path", r.URL.Path)

	var req models.EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.streamEvaluationHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.streamEvaluationHandler: validation failed", "error", err)
		writeDomainError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("Server.streamEvaluationHandler: response writer does not support flushing")
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeFrame := func(frame models.StreamFrame) {
		data, err := json.Marshal(frame)
		if err != nil {
			slog.Error("Server.streamEvaluationHandler: failed to marshal frame", "error", err)
			return
		}
		if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
			slog.Warn("Server.streamEvaluationHandler: client write failed", "error", err)
			return
		}
		flusher.Flush()
	}

	cb := evaluation.StreamCallbacks{
		OnChunk: func(chunk string) {
			writeFrame(models.StreamFrame{Type: models.StreamFrameChunk, Content: chunk})
		},
		OnComplete: func(result *models.Evaluation) {
			writeFrame(models.StreamFrame{Type: models.StreamFrameComplete, Evaluation: result})
		},
		OnError: func(err error) {
			writeFrame(models.StreamFrame{Type: models.StreamFrameError, Message: err.Error()})
		},
	}

	err := s.evalService.StreamEvaluation(r.Context(), req.Challenge, req.Responses, evaluation.Options{ThreadID: req.ThreadID}, cb)
	if err != nil {
		// Validation passed above, so this is a post-start failure already
		// reported through the error frame.
		slog.Warn("Server.streamEvaluationHandler: streaming evaluation failed", "error", err)
		return
	}
	slog.Debug("Server.streamEvaluationHandler: stream completed")
}
