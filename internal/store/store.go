// Package store provides storage backends for the arena backend.
//
// Three implementations exist: PostgresStore for production (managed Postgres),
// SQLiteStore for local single-node deployments, and InMemoryStore for tests.
// All enforce the same semantics: at most one active conversation state per
// (user, context) tuple, an append-only journey event log, and
// compare-and-swap versioning on journey snapshots.
package store

import (
	"errors"

	"github.com/aifightclub/arena/internal/models"
)

// ErrVersionConflict is returned by SaveUserJourney when the snapshot was
// modified since it was loaded. Callers reload and retry.
var ErrVersionConflict = errors.New("user journey version conflict")

// Store defines the persistence operations the services depend on.
type Store interface {
	// CreateConversationState inserts a new state. If an active state already
	// exists for the same (user, context type, context id) tuple the insert is
	// a no-op; callers re-read the active state afterwards.
	CreateConversationState(state models.ConversationState) error

	// GetActiveConversationState returns the active state for the tuple, or
	// nil if none exists.
	GetActiveConversationState(userID string, contextType models.ContextType, contextID string) (*models.ConversationState, error)

	// GetConversationStateByThread returns the state for a thread handle, or
	// nil if unknown.
	GetConversationStateByThread(threadID string) (*models.ConversationState, error)

	// UpdateConversationResponseID stores a new continuity token for the
	// thread and bumps its counters. Returns false if the thread is unknown.
	UpdateConversationResponseID(threadID, responseID string) (bool, error)

	// ArchiveConversationState marks the thread's state archived. Returns
	// false if the thread is unknown.
	ArchiveConversationState(threadID string) (bool, error)

	// AddJourneyEvent appends an immutable event to the journey log.
	AddJourneyEvent(event models.UserJourneyEvent) error

	// GetJourneyEvents returns all events for a user ordered by timestamp.
	GetJourneyEvents(userID string) ([]models.UserJourneyEvent, error)

	// GetUserJourney returns the journey snapshot for a user, or nil if the
	// user has no journey yet.
	GetUserJourney(userID string) (*models.UserJourney, error)

	// SaveUserJourney persists the snapshot. A journey with Version 0 is
	// inserted; otherwise the row is updated only if the stored version still
	// matches, returning ErrVersionConflict when it does not.
	SaveUserJourney(journey models.UserJourney) error

	// SaveEvaluation persists an evaluation.
	SaveEvaluation(evaluation models.Evaluation) error

	// GetEvaluation returns an evaluation by ID, or nil if unknown.
	GetEvaluation(id string) (*models.Evaluation, error)

	// ListUserEvaluations returns a user's evaluations, newest first.
	ListUserEvaluations(userID string) ([]models.Evaluation, error)

	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	// DSN is the database connection string (Postgres URL or SQLite path).
	DSN string
}

// Option defines a functional option for store configuration.
type Option func(*Opts)

// WithPostgresDSN sets the Postgres connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLitePath sets the SQLite database file path.
func WithSQLitePath(path string) Option {
	return func(o *Opts) { o.DSN = path }
}
