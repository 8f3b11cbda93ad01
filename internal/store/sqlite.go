// Package store provides storage backends for the arena backend.
//
// This file implements a SQLite-backed store for local single-node
// deployments, mirroring the PostgreSQL implementation.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/aifightclub/arena/internal/models"
	"github.com/mattn/go-sqlite3"
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore implements Store on top of SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store based on provided options.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("SQLiteStore.NewSQLiteStore: creating SQLite store", "path_set", cfg.DSN != "")
	if cfg.DSN == "" {
		slog.Error("SQLiteStore path not set")
		return nil, fmt.Errorf("database path not set")
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open SQLite database", "error", err, "path", cfg.DSN)
		return nil, err
	}

	// SQLite handles one writer at a time; serialize through a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run SQLite migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")
	return &SQLiteStore{db: db}, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// CreateConversationState inserts a new conversation state; see PostgresStore.
func (s *SQLiteStore) CreateConversationState(state models.ConversationState) error {
	metadataJSON, err := marshalJSON(state.Metadata)
	if err != nil {
		return fmt.Errorf("failed to serialize conversation state metadata: %w", err)
	}

	query := `
		INSERT INTO conversation_states
			(id, thread_id, user_id, context_type, context_id, last_response_id,
			 message_count, run_count, status, metadata, last_activity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`

	_, err = s.db.Exec(query, state.ID, state.ThreadID, state.UserID, string(state.ContextType),
		state.ContextID, nilIfEmpty(state.LastResponseID), state.MessageCount, state.RunCount,
		string(state.Status), metadataJSON, state.LastActivity, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateConversationState failed", "error", err, "userID", state.UserID, "contextType", state.ContextType)
		return fmt.Errorf("failed to insert conversation state: %w", err)
	}
	slog.Debug("SQLiteStore CreateConversationState succeeded", "threadID", state.ThreadID, "userID", state.UserID)
	return nil
}

// GetActiveConversationState retrieves the active state for a (user, context) tuple.
func (s *SQLiteStore) GetActiveConversationState(userID string, contextType models.ContextType, contextID string) (*models.ConversationState, error) {
	query := `SELECT ` + conversationStateColumns + `
		FROM conversation_states
		WHERE user_id = ? AND context_type = ? AND context_id = ? AND status = 'active'`

	state, err := scanConversationState(s.db.QueryRow(query, userID, string(contextType), contextID))
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetActiveConversationState not found", "userID", userID, "contextType", contextType, "contextID", contextID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetActiveConversationState failed", "error", err, "userID", userID)
		return nil, err
	}
	return state, nil
}

// GetConversationStateByThread retrieves a state by its thread handle.
func (s *SQLiteStore) GetConversationStateByThread(threadID string) (*models.ConversationState, error) {
	query := `SELECT ` + conversationStateColumns + ` FROM conversation_states WHERE thread_id = ?`

	state, err := scanConversationState(s.db.QueryRow(query, threadID))
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetConversationStateByThread not found", "threadID", threadID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationStateByThread failed", "error", err, "threadID", threadID)
		return nil, err
	}
	return state, nil
}

// UpdateConversationResponseID stores the new continuity token and bumps counters.
func (s *SQLiteStore) UpdateConversationResponseID(threadID, responseID string) (bool, error) {
	query := `
		UPDATE conversation_states
		SET last_response_id = ?,
			message_count = message_count + 1,
			run_count = run_count + 1,
			last_activity = ?,
			updated_at = ?
		WHERE thread_id = ?`

	now := time.Now()
	result, err := s.db.Exec(query, responseID, now, now, threadID)
	if err != nil {
		slog.Error("SQLiteStore UpdateConversationResponseID failed", "error", err, "threadID", threadID)
		return false, fmt.Errorf("failed to update conversation response id: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	slog.Debug("SQLiteStore UpdateConversationResponseID succeeded", "threadID", threadID, "found", affected > 0)
	return affected > 0, nil
}

// ArchiveConversationState marks a state archived so the tuple can start fresh.
func (s *SQLiteStore) ArchiveConversationState(threadID string) (bool, error) {
	query := `UPDATE conversation_states SET status = 'archived', updated_at = ? WHERE thread_id = ? AND status = 'active'`

	result, err := s.db.Exec(query, time.Now(), threadID)
	if err != nil {
		slog.Error("SQLiteStore ArchiveConversationState failed", "error", err, "threadID", threadID)
		return false, fmt.Errorf("failed to archive conversation state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	slog.Debug("SQLiteStore ArchiveConversationState succeeded", "threadID", threadID, "found", affected > 0)
	return affected > 0, nil
}

// AddJourneyEvent appends an immutable event to the journey log.
func (s *SQLiteStore) AddJourneyEvent(event models.UserJourneyEvent) error {
	eventDataJSON, err := marshalJSON(event.EventData)
	if err != nil {
		return fmt.Errorf("failed to serialize event data: %w", err)
	}

	query := `
		INSERT INTO user_journey_events
			(id, user_id, event_type, event_data, challenge_id, session_id, event_timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.Exec(query, event.ID, event.UserID, string(event.EventType), eventDataJSON,
		nilIfEmpty(event.ChallengeID), nilIfEmpty(event.SessionID), event.Timestamp, event.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore AddJourneyEvent failed", "error", err, "userID", event.UserID, "eventType", event.EventType)
		return fmt.Errorf("failed to insert journey event: %w", err)
	}
	slog.Debug("SQLiteStore AddJourneyEvent succeeded", "id", event.ID, "userID", event.UserID, "eventType", event.EventType)
	return nil
}

// GetJourneyEvents retrieves all events for a user ordered by timestamp.
func (s *SQLiteStore) GetJourneyEvents(userID string) ([]models.UserJourneyEvent, error) {
	query := `SELECT id, user_id, event_type, event_data, challenge_id, session_id, event_timestamp, created_at
		FROM user_journey_events WHERE user_id = ? ORDER BY event_timestamp ASC, created_at ASC`

	rows, err := s.db.Query(query, userID)
	if err != nil {
		slog.Error("SQLiteStore GetJourneyEvents query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query journey events: %w", err)
	}
	defer rows.Close()

	var events []models.UserJourneyEvent
	for rows.Next() {
		event, err := scanJourneyEvent(rows)
		if err != nil {
			slog.Error("SQLiteStore GetJourneyEvents scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan journey event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journey events: %w", err)
	}
	slog.Debug("SQLiteStore GetJourneyEvents succeeded", "userID", userID, "count", len(events))
	return events, nil
}

// GetUserJourney retrieves the journey snapshot for a user.
func (s *SQLiteStore) GetUserJourney(userID string) (*models.UserJourney, error) {
	query := `SELECT ` + userJourneyColumns + ` FROM user_journeys WHERE user_id = ?`

	journey, err := scanUserJourney(s.db.QueryRow(query, userID))
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetUserJourney not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUserJourney failed", "error", err, "userID", userID)
		return nil, err
	}
	return journey, nil
}

// SaveUserJourney persists the snapshot with compare-and-swap versioning.
func (s *SQLiteStore) SaveUserJourney(journey models.UserJourney) error {
	metadataJSON, err := marshalJSON(journey.Metadata)
	if err != nil {
		return fmt.Errorf("failed to serialize journey metadata: %w", err)
	}

	if journey.Version == 0 {
		query := `
			INSERT INTO user_journeys
				(id, user_id, last_activity, session_count, current_session_started_at,
				 engagement_level, current_phase, total_challenges, average_score,
				 streak_days, last_challenge, metadata, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`

		_, err := s.db.Exec(query, journey.ID, journey.UserID, nilIfZeroTime(journey.LastActivity),
			journey.SessionCount, nilIfZeroTime(journey.CurrentSessionStartedAt),
			string(journey.EngagementLevel), string(journey.CurrentPhase),
			journey.Metrics.TotalChallenges, journey.Metrics.AverageScore, journey.Metrics.StreakDays,
			nilIfZeroTime(journey.Metrics.LastChallenge), metadataJSON, journey.CreatedAt, journey.UpdatedAt)
		if err != nil {
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
				slog.Debug("SQLiteStore SaveUserJourney insert lost race", "userID", journey.UserID)
				return ErrVersionConflict
			}
			slog.Error("SQLiteStore SaveUserJourney insert failed", "error", err, "userID", journey.UserID)
			return fmt.Errorf("failed to insert user journey: %w", err)
		}
		slog.Debug("SQLiteStore SaveUserJourney inserted", "userID", journey.UserID)
		return nil
	}

	query := `
		UPDATE user_journeys
		SET last_activity = ?, session_count = ?, current_session_started_at = ?,
			engagement_level = ?, current_phase = ?, total_challenges = ?,
			average_score = ?, streak_days = ?, last_challenge = ?,
			metadata = ?, version = version + 1, updated_at = ?
		WHERE user_id = ? AND version = ?`

	result, err := s.db.Exec(query,
		nilIfZeroTime(journey.LastActivity), journey.SessionCount,
		nilIfZeroTime(journey.CurrentSessionStartedAt),
		string(journey.EngagementLevel), string(journey.CurrentPhase),
		journey.Metrics.TotalChallenges, journey.Metrics.AverageScore, journey.Metrics.StreakDays,
		nilIfZeroTime(journey.Metrics.LastChallenge), metadataJSON, journey.UpdatedAt,
		journey.UserID, journey.Version)
	if err != nil {
		slog.Error("SQLiteStore SaveUserJourney update failed", "error", err, "userID", journey.UserID)
		return fmt.Errorf("failed to update user journey: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		slog.Debug("SQLiteStore SaveUserJourney version conflict", "userID", journey.UserID, "version", journey.Version)
		return ErrVersionConflict
	}
	slog.Debug("SQLiteStore SaveUserJourney succeeded", "userID", journey.UserID, "version", journey.Version+1)
	return nil
}

// SaveEvaluation stores an evaluation.
func (s *SQLiteStore) SaveEvaluation(evaluation models.Evaluation) error {
	strengthsJSON, err := marshalJSON(evaluation.Strengths)
	if err != nil {
		return fmt.Errorf("failed to serialize strengths: %w", err)
	}
	areasJSON, err := marshalJSON(evaluation.AreasForImprovement)
	if err != nil {
		return fmt.Errorf("failed to serialize areas for improvement: %w", err)
	}
	metricsJSON, err := marshalJSON(evaluation.Metrics)
	if err != nil {
		return fmt.Errorf("failed to serialize metrics: %w", err)
	}
	growthJSON, err := marshalJSON(evaluation.GrowthData)
	if err != nil {
		return fmt.Errorf("failed to serialize growth data: %w", err)
	}

	query := `
		INSERT INTO evaluations
			(id, user_id, challenge_id, score, feedback, strengths, areas_for_improvement,
			 metrics, growth_data, status, thread_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			score = EXCLUDED.score,
			feedback = EXCLUDED.feedback,
			strengths = EXCLUDED.strengths,
			areas_for_improvement = EXCLUDED.areas_for_improvement,
			metrics = EXCLUDED.metrics,
			growth_data = EXCLUDED.growth_data,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at`

	_, err = s.db.Exec(query, evaluation.ID, evaluation.UserID, nilIfEmpty(evaluation.ChallengeID),
		evaluation.Score, nilIfEmpty(evaluation.Feedback), strengthsJSON, areasJSON,
		metricsJSON, growthJSON, string(evaluation.Status), nilIfEmpty(evaluation.ThreadID),
		evaluation.CreatedAt, evaluation.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveEvaluation failed", "error", err, "id", evaluation.ID)
		return fmt.Errorf("failed to save evaluation: %w", err)
	}
	slog.Debug("SQLiteStore SaveEvaluation succeeded", "id", evaluation.ID, "userID", evaluation.UserID)
	return nil
}

// GetEvaluation retrieves an evaluation by ID.
func (s *SQLiteStore) GetEvaluation(id string) (*models.Evaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM evaluations WHERE id = ?`

	evaluation, err := scanEvaluation(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetEvaluation not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetEvaluation failed", "error", err, "id", id)
		return nil, err
	}
	return evaluation, nil
}

// ListUserEvaluations retrieves a user's evaluations, newest first.
func (s *SQLiteStore) ListUserEvaluations(userID string) ([]models.Evaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM evaluations WHERE user_id = ? ORDER BY created_at DESC`

	rows, err := s.db.Query(query, userID)
	if err != nil {
		slog.Error("SQLiteStore ListUserEvaluations query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var evaluations []models.Evaluation
	for rows.Next() {
		evaluation, err := scanEvaluation(rows)
		if err != nil {
			slog.Error("SQLiteStore ListUserEvaluations scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		evaluations = append(evaluations, *evaluation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evaluations: %w", err)
	}
	slog.Debug("SQLiteStore ListUserEvaluations succeeded", "userID", userID, "count", len(evaluations))
	return evaluations, nil
}
