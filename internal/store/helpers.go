package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aifightclub/arena/internal/models"
)

// rowScanner abstracts *sql.Row and *sql.Rows so scan helpers are shared
// between the Postgres and SQLite backends.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// nowFunc is swappable in tests that need deterministic timestamps.
var nowFunc = time.Now

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nilIfZeroTime returns nil if t is the zero time, otherwise returns t.
// Used for nullable timestamp columns.
func nilIfZeroTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

// marshalJSON serializes v for a JSON column, returning nil for empty values
// so the column stays NULL.
func marshalJSON(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal JSON column: %w", err)
	}
	if string(data) == "null" || string(data) == "{}" || string(data) == "[]" {
		return nil, nil
	}
	return string(data), nil
}

// unmarshalJSON deserializes a nullable JSON column into v. Corrupt payloads
// are logged and skipped rather than failing the whole read.
func unmarshalJSON(raw sql.NullString, v interface{}, column string) {
	if !raw.Valid || raw.String == "" {
		return
	}
	if err := json.Unmarshal([]byte(raw.String), v); err != nil {
		slog.Error("store: failed to unmarshal JSON column", "column", column, "error", err)
	}
}

// scanConversationState scans a conversation state row. Column order:
// id, thread_id, user_id, context_type, context_id, last_response_id,
// message_count, run_count, status, metadata, last_activity, created_at, updated_at.
func scanConversationState(row rowScanner) (*models.ConversationState, error) {
	var state models.ConversationState
	var lastResponseID, metadataJSON sql.NullString
	var contextType, status string

	err := row.Scan(
		&state.ID, &state.ThreadID, &state.UserID, &contextType, &state.ContextID,
		&lastResponseID, &state.MessageCount, &state.RunCount, &status,
		&metadataJSON, &state.LastActivity, &state.CreatedAt, &state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	state.ContextType = models.ContextType(contextType)
	state.Status = models.ConversationStatus(status)
	state.LastResponseID = lastResponseID.String
	unmarshalJSON(metadataJSON, &state.Metadata, "conversation_states.metadata")
	return &state, nil
}

// scanJourneyEvent scans a journey event row. Column order:
// id, user_id, event_type, event_data, challenge_id, session_id,
// event_timestamp, created_at.
func scanJourneyEvent(row rowScanner) (*models.UserJourneyEvent, error) {
	var event models.UserJourneyEvent
	var eventType string
	var eventDataJSON, challengeID, sessionID sql.NullString

	err := row.Scan(
		&event.ID, &event.UserID, &eventType, &eventDataJSON,
		&challengeID, &sessionID, &event.Timestamp, &event.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	event.EventType = models.JourneyEventType(eventType)
	event.ChallengeID = challengeID.String
	event.SessionID = sessionID.String
	unmarshalJSON(eventDataJSON, &event.EventData, "user_journey_events.event_data")
	return &event, nil
}

// scanUserJourney scans a journey snapshot row. Column order:
// id, user_id, last_activity, session_count, current_session_started_at,
// engagement_level, current_phase, total_challenges, average_score,
// streak_days, last_challenge, metadata, version, created_at, updated_at.
func scanUserJourney(row rowScanner) (*models.UserJourney, error) {
	var journey models.UserJourney
	var engagement, phase string
	var metadataJSON sql.NullString
	var lastActivity, sessionStartedAt, lastChallenge sql.NullTime

	err := row.Scan(
		&journey.ID, &journey.UserID, &lastActivity, &journey.SessionCount,
		&sessionStartedAt, &engagement, &phase, &journey.Metrics.TotalChallenges,
		&journey.Metrics.AverageScore, &journey.Metrics.StreakDays, &lastChallenge,
		&metadataJSON, &journey.Version, &journey.CreatedAt, &journey.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	journey.EngagementLevel = models.EngagementLevel(engagement)
	journey.CurrentPhase = models.JourneyPhase(phase)
	if lastActivity.Valid {
		journey.LastActivity = lastActivity.Time
	}
	if sessionStartedAt.Valid {
		journey.CurrentSessionStartedAt = sessionStartedAt.Time
	}
	if lastChallenge.Valid {
		journey.Metrics.LastChallenge = lastChallenge.Time
	}
	unmarshalJSON(metadataJSON, &journey.Metadata, "user_journeys.metadata")
	return &journey, nil
}

// scanEvaluation scans an evaluation row. Column order:
// id, user_id, challenge_id, score, feedback, strengths,
// areas_for_improvement, metrics, growth_data, status, thread_id,
// created_at, updated_at.
func scanEvaluation(row rowScanner) (*models.Evaluation, error) {
	var evaluation models.Evaluation
	var status string
	var challengeID, feedback, threadID sql.NullString
	var strengthsJSON, areasJSON, metricsJSON, growthJSON sql.NullString

	err := row.Scan(
		&evaluation.ID, &evaluation.UserID, &challengeID, &evaluation.Score,
		&feedback, &strengthsJSON, &areasJSON, &metricsJSON, &growthJSON,
		&status, &threadID, &evaluation.CreatedAt, &evaluation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	evaluation.Status = models.EvaluationStatus(status)
	evaluation.ChallengeID = challengeID.String
	evaluation.Feedback = feedback.String
	evaluation.ThreadID = threadID.String
	unmarshalJSON(strengthsJSON, &evaluation.Strengths, "evaluations.strengths")
	unmarshalJSON(areasJSON, &evaluation.AreasForImprovement, "evaluations.areas_for_improvement")
	unmarshalJSON(metricsJSON, &evaluation.Metrics, "evaluations.metrics")
	unmarshalJSON(growthJSON, &evaluation.GrowthData, "evaluations.growth_data")
	return &evaluation, nil
}
