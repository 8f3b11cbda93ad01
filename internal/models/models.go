// Package models defines the core data structures for the arena backend.
//
// It includes challenge and evaluation types, shared validation, and the API
// response envelope used by every HTTP handler.
package models

import (
	"time"
)

// Validation constants for input validation
const (
	// MaxScore is the upper bound of an evaluation score.
	MaxScore = 100
	// MinScore is the lower bound of an evaluation score.
	MinScore = 0
	// MaxResponseLength defines the maximum allowed length of a single challenge response.
	MaxResponseLength = 16384
	// MaxResponsesPerEvaluation defines the maximum number of responses in one evaluation request.
	MaxResponsesPerEvaluation = 20
)

// Error variables for better error handling and testability. All are
// validation errors so HTTP handlers map them to 400.
var (
	ErrMissingChallenge  = NewValidationError("challenge is required")
	ErrMissingUserID     = NewValidationError("user ID is required")
	ErrEmptyResponses    = NewValidationError("at least one response is required")
	ErrTooManyResponses  = NewValidationError("too many responses")
	ErrResponseTooLong   = NewValidationError("response exceeds maximum length")
	ErrMissingThreadID   = NewValidationError("thread ID is required")
	ErrScoreOutOfRange   = NewValidationError("score must be between 0 and 100")
	ErrMissingEventType  = NewValidationError("event type is required")
	ErrEventUserMismatch = NewValidationError("event user does not match journey user")
)

// Challenge represents a challenge a user responds to. Challenges are owned by
// the challenge catalog upstream; evaluation requests carry them inline.
type Challenge struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	ChallengeType string    `json:"challenge_type,omitempty"`
	FocusArea     string    `json:"focus_area,omitempty"`
	Difficulty    string    `json:"difficulty,omitempty"`
	Content       string    `json:"content,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// ChallengeResponse is a single answer the user submitted for a challenge.
type ChallengeResponse struct {
	Question string `json:"question,omitempty"`
	Answer   string `json:"answer"`
}

// EvaluationStatus represents the lifecycle status of an evaluation.
type EvaluationStatus string

const (
	// EvaluationStatusCompleted indicates the evaluation finished and is persisted.
	EvaluationStatusCompleted EvaluationStatus = "completed"
	// EvaluationStatusFailed indicates the evaluation could not be produced.
	EvaluationStatusFailed EvaluationStatus = "failed"
)

// EvaluationMetrics holds per-dimension scores the LLM assigns alongside the
// overall score. Typed rather than an open map so the storage contract cannot
// drift silently.
type EvaluationMetrics struct {
	Clarity         int     `json:"clarity,omitempty"`
	Reasoning       int     `json:"reasoning,omitempty"`
	Originality     int     `json:"originality,omitempty"`
	NormalizedScore float64 `json:"normalized_score,omitempty"`
}

// GrowthData captures what the evaluation suggests the user should work on next.
type GrowthData struct {
	RecommendedFocusAreas []string     `json:"recommended_focus_areas,omitempty"`
	SkillDeltas           []SkillDelta `json:"skill_deltas,omitempty"`
}

// SkillDelta records movement on a single tracked skill.
type SkillDelta struct {
	Skill string `json:"skill"`
	Delta int    `json:"delta"`
}

// Evaluation is the structured outcome of evaluating a user's challenge
// responses. Created once per evaluation request; immutable after persistence
// in normal flow.
type Evaluation struct {
	ID                  string            `json:"id"`
	UserID              string            `json:"user_id"`
	ChallengeID         string            `json:"challenge_id,omitempty"`
	Score               int               `json:"score"`
	Feedback            string            `json:"feedback,omitempty"`
	Strengths           []string          `json:"strengths,omitempty"`
	AreasForImprovement []string          `json:"areas_for_improvement,omitempty"`
	Metrics             EvaluationMetrics `json:"metrics"`
	GrowthData          GrowthData        `json:"growth_data"`
	Status              EvaluationStatus  `json:"status"`
	ThreadID            string            `json:"thread_id,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// Validate performs validation on an Evaluation before persistence.
func (e *Evaluation) Validate() error {
	if e.UserID == "" {
		return ErrMissingUserID
	}
	if e.Score < MinScore || e.Score > MaxScore {
		return ErrScoreOutOfRange
	}
	return nil
}

// AddStrength appends a strength to the evaluation prior to persistence.
func (e *Evaluation) AddStrength(strength string) {
	if strength == "" {
		return
	}
	e.Strengths = append(e.Strengths, strength)
	e.UpdatedAt = time.Now()
}

// EvaluationResult is the payload shape requested from the LLM as a JSON
// object completion. Parsed strictly; malformed payloads are a processing error.
type EvaluationResult struct {
	Score               int               `json:"score"`
	Feedback            string            `json:"feedback"`
	Strengths           []string          `json:"strengths"`
	AreasForImprovement []string          `json:"areas_for_improvement"`
	Metrics             EvaluationMetrics `json:"metrics"`
	GrowthData          GrowthData        `json:"growth_data"`
}

// EvaluationRequest is the body of POST /evaluations.
type EvaluationRequest struct {
	Challenge *Challenge          `json:"challenge"`
	Responses []ChallengeResponse `json:"responses"`
	ThreadID  string              `json:"thread_id"`
}

// Validate checks the evaluation request before any I/O happens.
func (r *EvaluationRequest) Validate() error {
	if r.Challenge == nil {
		return ErrMissingChallenge
	}
	if r.Challenge.UserID == "" {
		return ErrMissingUserID
	}
	if len(r.Responses) == 0 {
		return ErrEmptyResponses
	}
	if len(r.Responses) > MaxResponsesPerEvaluation {
		return ErrTooManyResponses
	}
	for _, resp := range r.Responses {
		if len(resp.Answer) > MaxResponseLength {
			return ErrResponseTooLong
		}
	}
	if r.ThreadID == "" {
		return ErrMissingThreadID
	}
	return nil
}

// StreamFrameType identifies a server-sent-event frame on the streaming
// evaluation endpoint.
type StreamFrameType string

const (
	// StreamFrameChunk carries a partial text chunk.
	StreamFrameChunk StreamFrameType = "chunk"
	// StreamFrameComplete carries the final parsed evaluation.
	StreamFrameComplete StreamFrameType = "complete"
	// StreamFrameError terminates the stream with an error message.
	StreamFrameError StreamFrameType = "error"
)

// StreamFrame is one SSE frame emitted by POST /evaluations/stream.
type StreamFrame struct {
	Type       StreamFrameType `json:"type"`
	Content    string          `json:"content,omitempty"`
	Evaluation *Evaluation     `json:"evaluation,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// APIStatus represents the status field of an API response.
type APIStatus string

const (
	// APIStatusOK indicates a successful operation.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates a failed operation.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
