// Package store provides storage backends for the arena backend.
//
// This file implements the PostgreSQL-backed store used in production.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/aifightclub/arena/internal/models"
	"github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore implements Store on top of PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run Postgres migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}

// CreateConversationState inserts a new conversation state. The partial unique
// index on active states makes concurrent creation for the same tuple a no-op
// for the loser; callers re-read the active state afterwards.
func (s *PostgresStore) CreateConversationState(state models.ConversationState) error {
	metadataJSON, err := marshalJSON(state.Metadata)
	if err != nil {
		return fmt.Errorf("failed to serialize conversation state metadata: %w", err)
	}

	query := `
		INSERT INTO conversation_states
			(id, thread_id, user_id, context_type, context_id, last_response_id,
			 message_count, run_count, status, metadata, last_activity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT DO NOTHING`

	_, err = s.db.Exec(query, state.ID, state.ThreadID, state.UserID, string(state.ContextType),
		state.ContextID, nilIfEmpty(state.LastResponseID), state.MessageCount, state.RunCount,
		string(state.Status), metadataJSON, state.LastActivity, state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateConversationState failed", "error", err, "userID", state.UserID, "contextType", state.ContextType)
		return fmt.Errorf("failed to insert conversation state: %w", err)
	}
	slog.Debug("PostgresStore CreateConversationState succeeded", "threadID", state.ThreadID, "userID", state.UserID)
	return nil
}

const conversationStateColumns = `id, thread_id, user_id, context_type, context_id, last_response_id,
	message_count, run_count, status, metadata, last_activity, created_at, updated_at`

// GetActiveConversationState retrieves the active state for a (user, context) tuple.
func (s *PostgresStore) GetActiveConversationState(userID string, contextType models.ContextType, contextID string) (*models.ConversationState, error) {
	query := `SELECT ` + conversationStateColumns + `
		FROM conversation_states
		WHERE user_id = $1 AND context_type = $2 AND context_id = $3 AND status = 'active'`

	state, err := scanConversationState(s.db.QueryRow(query, userID, string(contextType), contextID))
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetActiveConversationState not found", "userID", userID, "contextType", contextType, "contextID", contextID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetActiveConversationState failed", "error", err, "userID", userID)
		return nil, err
	}
	return state, nil
}

// GetConversationStateByThread retrieves a state by its thread handle.
func (s *PostgresStore) GetConversationStateByThread(threadID string) (*models.ConversationState, error) {
	query := `SELECT ` + conversationStateColumns + ` FROM conversation_states WHERE thread_id = $1`

	state, err := scanConversationState(s.db.QueryRow(query, threadID))
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetConversationStateByThread not found", "threadID", threadID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationStateByThread failed", "error", err, "threadID", threadID)
		return nil, err
	}
	return state, nil
}

// UpdateConversationResponseID stores the new continuity token and bumps counters.
func (s *PostgresStore) UpdateConversationResponseID(threadID, responseID string) (bool, error) {
	query := `
		UPDATE conversation_states
		SET last_response_id = $2,
			message_count = message_count + 1,
			run_count = run_count + 1,
			last_activity = $3,
			updated_at = $3
		WHERE thread_id = $1`

	result, err := s.db.Exec(query, threadID, responseID, time.Now())
	if err != nil {
		slog.Error("PostgresStore UpdateConversationResponseID failed", "error", err, "threadID", threadID)
		return false, fmt.Errorf("failed to update conversation response id: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	slog.Debug("PostgresStore UpdateConversationResponseID succeeded", "threadID", threadID, "found", affected > 0)
	return affected > 0, nil
}

// ArchiveConversationState marks a state archived so the tuple can start fresh.
func (s *PostgresStore) ArchiveConversationState(threadID string) (bool, error) {
	query := `UPDATE conversation_states SET status = 'archived', updated_at = $2 WHERE thread_id = $1 AND status = 'active'`

	result, err := s.db.Exec(query, threadID, time.Now())
	if err != nil {
		slog.Error("PostgresStore ArchiveConversationState failed", "error", err, "threadID", threadID)
		return false, fmt.Errorf("failed to archive conversation state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	slog.Debug("PostgresStore ArchiveConversationState succeeded", "threadID", threadID, "found", affected > 0)
	return affected > 0, nil
}

// AddJourneyEvent appends an immutable event to the journey log.
func (s *PostgresStore) AddJourneyEvent(event models.UserJourneyEvent) error {
	eventDataJSON, err := marshalJSON(event.EventData)
	if err != nil {
		return fmt.Errorf("failed to serialize event data: %w", err)
	}

	query := `
		INSERT INTO user_journey_events
			(id, user_id, event_type, event_data, challenge_id, session_id, event_timestamp, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.db.Exec(query, event.ID, event.UserID, string(event.EventType), eventDataJSON,
		nilIfEmpty(event.ChallengeID), nilIfEmpty(event.SessionID), event.Timestamp, event.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore AddJourneyEvent failed", "error", err, "userID", event.UserID, "eventType", event.EventType)
		return fmt.Errorf("failed to insert journey event: %w", err)
	}
	slog.Debug("PostgresStore AddJourneyEvent succeeded", "id", event.ID, "userID", event.UserID, "eventType", event.EventType)
	return nil
}

// GetJourneyEvents retrieves all events for a user ordered by timestamp.
func (s *PostgresStore) GetJourneyEvents(userID string) ([]models.UserJourneyEvent, error) {
	query := `SELECT id, user_id, event_type, event_data, challenge_id, session_id, event_timestamp, created_at
		FROM user_journey_events WHERE user_id = $1 ORDER BY event_timestamp ASC, created_at ASC`

	rows, err := s.db.Query(query, userID)
	if err != nil {
		slog.Error("PostgresStore GetJourneyEvents query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query journey events: %w", err)
	}
	defer rows.Close()

	var events []models.UserJourneyEvent
	for rows.Next() {
		event, err := scanJourneyEvent(rows)
		if err != nil {
			slog.Error("PostgresStore GetJourneyEvents scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan journey event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journey events: %w", err)
	}
	slog.Debug("PostgresStore GetJourneyEvents succeeded", "userID", userID, "count", len(events))
	return events, nil
}

const userJourneyColumns = `id, user_id, last_activity, session_count, current_session_started_at,
	engagement_level, current_phase, total_challenges, average_score, streak_days,
	last_challenge, metadata, version, created_at, updated_at`

// GetUserJourney retrieves the journey snapshot for a user.
func (s *PostgresStore) GetUserJourney(userID string) (*models.UserJourney, error) {
	query := `SELECT ` + userJourneyColumns + ` FROM user_journeys WHERE user_id = $1`

	journey, err := scanUserJourney(s.db.QueryRow(query, userID))
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetUserJourney not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUserJourney failed", "error", err, "userID", userID)
		return nil, err
	}
	return journey, nil
}

// SaveUserJourney persists the snapshot with compare-and-swap versioning.
func (s *PostgresStore) SaveUserJourney(journey models.UserJourney) error {
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
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1, $13, $14)`

		_, err := s.db.Exec(query, journey.ID, journey.UserID, nilIfZeroTime(journey.LastActivity),
			journey.SessionCount, nilIfZeroTime(journey.CurrentSessionStartedAt),
			string(journey.EngagementLevel), string(journey.CurrentPhase),
			journey.Metrics.TotalChallenges, journey.Metrics.AverageScore, journey.Metrics.StreakDays,
			nilIfZeroTime(journey.Metrics.LastChallenge), metadataJSON, journey.CreatedAt, journey.UpdatedAt)
		if err != nil {
			// A concurrent insert for the same user surfaces as a unique
			// violation; report it as a version conflict so the caller retries.
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				slog.Debug("PostgresStore SaveUserJourney insert lost race", "userID", journey.UserID)
				return ErrVersionConflict
			}
			slog.Error("PostgresStore SaveUserJourney insert failed", "error", err, "userID", journey.UserID)
			return fmt.Errorf("failed to insert user journey: %w", err)
		}
		slog.Debug("PostgresStore SaveUserJourney inserted", "userID", journey.UserID)
		return nil
	}

	query := `
		UPDATE user_journeys
		SET last_activity = $3, session_count = $4, current_session_started_at = $5,
			engagement_level = $6, current_phase = $7, total_challenges = $8,
			average_score = $9, streak_days = $10, last_challenge = $11,
			metadata = $12, version = version + 1, updated_at = $13
		WHERE user_id = $1 AND version = $2`

	result, err := s.db.Exec(query, journey.UserID, journey.Version,
		nilIfZeroTime(journey.LastActivity), journey.SessionCount,
		nilIfZeroTime(journey.CurrentSessionStartedAt),
		string(journey.EngagementLevel), string(journey.CurrentPhase),
		journey.Metrics.TotalChallenges, journey.Metrics.AverageScore, journey.Metrics.StreakDays,
		nilIfZeroTime(journey.Metrics.LastChallenge), metadataJSON, journey.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveUserJourney update failed", "error", err, "userID", journey.UserID)
		return fmt.Errorf("failed to update user journey: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		slog.Debug("PostgresStore SaveUserJourney version conflict", "userID", journey.UserID, "version", journey.Version)
		return ErrVersionConflict
	}
	slog.Debug("PostgresStore SaveUserJourney succeeded", "userID", journey.UserID, "version", journey.Version+1)
	return nil
}

// SaveEvaluation stores an evaluation.
func (s *PostgresStore) SaveEvaluation(evaluation models.Evaluation) error {
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
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
		slog.Error("PostgresStore SaveEvaluation failed", "error", err, "id", evaluation.ID)
		return fmt.Errorf("failed to save evaluation: %w", err)
	}
	slog.Debug("PostgresStore SaveEvaluation succeeded", "id", evaluation.ID, "userID", evaluation.UserID)
	return nil
}

const evaluationColumns = `id, user_id, challenge_id, score, feedback, strengths,
	areas_for_improvement, metrics, growth_data, status, thread_id, created_at, updated_at`

// GetEvaluation retrieves an evaluation by ID.
func (s *PostgresStore) GetEvaluation(id string) (*models.Evaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM evaluations WHERE id = $1`

	evaluation, err := scanEvaluation(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetEvaluation not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetEvaluation failed", "error", err, "id", id)
		return nil, err
	}
	return evaluation, nil
}

// ListUserEvaluations retrieves a user's evaluations, newest first.
func (s *PostgresStore) ListUserEvaluations(userID string) ([]models.Evaluation, error) {
	query := `SELECT ` + evaluationColumns + ` FROM evaluations WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.Query(query, userID)
	if err != nil {
		slog.Error("PostgresStore ListUserEvaluations query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query evaluations: %w", err)
	}
	defer rows.Close()

	var evaluations []models.Evaluation
	for rows.Next() {
		evaluation, err := scanEvaluation(rows)
		if err != nil {
			slog.Error("PostgresStore ListUserEvaluations scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		evaluations = append(evaluations, *evaluation)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate evaluations: %w", err)
	}
	slog.Debug("PostgresStore ListUserEvaluations succeeded", "userID", userID, "count", len(evaluations))
	return evaluations, nil
}
