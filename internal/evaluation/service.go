// Package evaluation orchestrates LLM evaluation of challenge responses while
// preserving conversational context across requests.
package evaluation

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aifightclub/arena/internal/conversation"
	"github.com/aifightclub/arena/internal/genai"
	"github.com/aifightclub/arena/internal/journey"
	"github.com/aifightclub/arena/internal/models"
	"github.com/aifightclub/arena/internal/store"
)

// LLMClient defines the generation operations the evaluation workflow needs.
type LLMClient interface {
	Generate(ctx context.Context, req genai.Request) (*genai.Result, error)
	GenerateStream(ctx context.Context, req genai.Request, onChunk func(string)) (*genai.Result, error)
}

// Options carries per-call options for an evaluation.
type Options struct {
	// ThreadID scopes the conversation context; evaluations with the same
	// thread ID share continuity.
	ThreadID string
}

// StreamCallbacks delivers streaming evaluation output. OnChunk receives
// partial text; exactly one of OnComplete or OnError fires at the end.
type StreamCallbacks struct {
	OnChunk    func(chunk string)
	OnComplete func(evaluation *models.Evaluation)
	OnError    func(err error)
}

// Service coordinates conversation state, the LLM, and persistence to produce
// structured evaluations.
type Service struct {
	states  conversation.StateManager
	llm     LLMClient
	store   store.Store
	journey *journey.Service
}

// NewService creates an evaluation service. The journey service is optional;
// nil disables journey event recording.
func NewService(states conversation.StateManager, llm LLMClient, st store.Store, js *journey.Service) *Service {
	return &Service{states: states, llm: llm, store: st, journey: js}
}

// EvaluateResponses produces a structured evaluation of the user's responses
// to a challenge. Validation failures return before any LLM or storage I/O.
func (s *Service) EvaluateResponses(ctx context.Context, challenge *models.Challenge, responses []models.ChallengeResponse, opts Options) (*models.Evaluation, error) {
	req := models.EvaluationRequest{Challenge: challenge, Responses: responses, ThreadID: opts.ThreadID}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	state, previousResponseID, err := s.resolveContext(ctx, challenge.UserID, opts.ThreadID)
	if err != nil {
		return nil, err
	}

	instructions, input := buildEvaluationPrompt(challenge, responses)
	result, err := s.llm.Generate(ctx, genai.Request{
		Input:              input,
		Instructions:       instructions,
		PreviousResponseID: previousResponseID,
		JSONOutput:         true,
	})
	if err != nil {
		slog.Error("EvaluationService LLM call failed", "error", err, "userID", challenge.UserID)
		return nil, models.NewProcessingError("generate evaluation", err)
	}

	evaluation, err := s.finishEvaluation(ctx, challenge, state, result)
	if err != nil {
		return nil, err
	}
	return evaluation, nil
}

// StreamEvaluation is EvaluateResponses with partial text delivery.
// Validation errors return before any callback fires so the handler can
// still reply with a normal HTTP error; every later failure goes through
// cb.OnError as well as the return value.
func (s *Service) StreamEvaluation(ctx context.Context, challenge *models.Challenge, responses []models.ChallengeResponse, opts Options, cb StreamCallbacks) error {
	req := models.EvaluationRequest{Challenge: challenge, Responses: responses, ThreadID: opts.ThreadID}
	if err := req.Validate(); err != nil {
		return err
	}

	state, previousResponseID, err := s.resolveContext(ctx, challenge.UserID, opts.ThreadID)
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return err
	}

	instructions, input := buildEvaluationPrompt(challenge, responses)
	result, err := s.llm.GenerateStream(ctx, genai.Request{
		Input:              input,
		Instructions:       instructions,
		PreviousResponseID: previousResponseID,
		JSONOutput:         true,
	}, cb.OnChunk)
	if err != nil {
		slog.Error("EvaluationService streaming LLM call failed", "error", err, "userID", challenge.UserID)
		wrapped := models.NewProcessingError("stream evaluation", err)
		if cb.OnError != nil {
			cb.OnError(wrapped)
		}
		return wrapped
	}

	evaluation, err := s.finishEvaluation(ctx, challenge, state, result)
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return err
	}
	if cb.OnComplete != nil {
		cb.OnComplete(evaluation)
	}
	return nil
}

// GetEvaluation returns a stored evaluation by ID.
func (s *Service) GetEvaluation(ctx context.Context, id string) (*models.Evaluation, error) {
	evaluation, err := s.store.GetEvaluation(id)
	if err != nil {
		return nil, models.NewRepositoryError("load evaluation", err)
	}
	if evaluation == nil {
		return nil, models.NewNotFoundError("evaluation", id)
	}
	return evaluation, nil
}

// ListUserEvaluations returns a user's evaluations, newest first.
func (s *Service) ListUserEvaluations(ctx context.Context, userID string) ([]models.Evaluation, error) {
	if userID == "" {
		return nil, models.ErrMissingUserID
	}
	evaluations, err := s.store.ListUserEvaluations(userID)
	if err != nil {
		return nil, models.NewRepositoryError("list evaluations", err)
	}
	return evaluations, nil
}

// resolveContext finds or creates the conversation state for the evaluation
// thread and fetches the continuity token. A token fetch failure degrades to
// a fresh exchange rather than failing the evaluation.
func (s *Service) resolveContext(ctx context.Context, userID, threadID string) (*models.ConversationState, string, error) {
	state, err := s.states.FindOrCreateConversationState(ctx, userID, models.ContextTypeEvaluation, threadID, nil)
	if err != nil {
		return nil, "", err
	}
	previousResponseID, err := s.states.GetLastResponseID(ctx, state.ThreadID)
	if err != nil {
		slog.Warn("EvaluationService continuity token fetch failed, starting fresh", "error", err, "threadID", state.ThreadID)
		previousResponseID = ""
	}
	return state, previousResponseID, nil
}

// finishEvaluation parses the LLM output, persists continuity and the
// evaluation, and records the journey event. Continuity and journey failures
// are logged but do not void a successful evaluation.
func (s *Service) finishEvaluation(ctx context.Context, challenge *models.Challenge, state *models.ConversationState, result *genai.Result) (*models.Evaluation, error) {
	if result.ResponseID != "" {
		if err := s.states.UpdateLastResponseID(ctx, state.ThreadID, result.ResponseID); err != nil {
			slog.Warn("EvaluationService continuity update failed", "error", err, "threadID", state.ThreadID)
		}
	}

	var parsed models.EvaluationResult
	if err := json.Unmarshal([]byte(result.Text), &parsed); err != nil {
		slog.Error("EvaluationService malformed LLM payload", "error", err, "userID", challenge.UserID)
		return nil, models.NewProcessingError("parse evaluation payload", err)
	}
	if parsed.Score < models.MinScore {
		parsed.Score = models.MinScore
	}
	if parsed.Score > models.MaxScore {
		parsed.Score = models.MaxScore
	}

	now := time.Now()
	evaluation := &models.Evaluation{
		ID:                  uuid.NewString(),
		UserID:              challenge.UserID,
		ChallengeID:         challenge.ID,
		Score:               parsed.Score,
		Feedback:            parsed.Feedback,
		Strengths:           parsed.Strengths,
		AreasForImprovement: parsed.AreasForImprovement,
		Metrics:             parsed.Metrics,
		GrowthData:          parsed.GrowthData,
		Status:              models.EvaluationStatusCompleted,
		ThreadID:            state.ThreadID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := evaluation.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveEvaluation(*evaluation); err != nil {
		slog.Error("EvaluationService save failed", "error", err, "evaluationID", evaluation.ID)
		return nil, models.NewRepositoryError("save evaluation", err)
	}
	slog.Info("EvaluationService evaluation saved", "evaluationID", evaluation.ID, "userID", evaluation.UserID, "score", evaluation.Score)

	s.recordCompletion(ctx, evaluation)
	return evaluation, nil
}

func (s *Service) recordCompletion(ctx context.Context, evaluation *models.Evaluation) {
	if s.journey == nil {
		return
	}
	score := evaluation.Score
	event := models.UserJourneyEvent{
		UserID:      evaluation.UserID,
		EventType:   models.EventChallengeCompleted,
		EventData:   models.JourneyEventData{Score: &score},
		ChallengeID: evaluation.ChallengeID,
		Timestamp:   evaluation.CreatedAt,
	}
	if _, err := s.journey.RecordEvent(ctx, event); err != nil {
		slog.Warn("EvaluationService journey event failed", "error", err, "userID", evaluation.UserID)
	}
}
