// Package conversation provides conversation continuity management.
//
// It guarantees that a logically continuous multi-turn LLM exchange for a
// given (user, purpose) pair can resume from its last known response without
// callers tracking continuity tokens themselves.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aifightclub/arena/internal/models"
	"github.com/aifightclub/arena/internal/store"
	"github.com/aifightclub/arena/internal/util"
)

// StateManager defines the interface for managing conversation state.
type StateManager interface {
	// FindOrCreateConversationState returns the existing active state for the
	// (user, context) tuple or atomically creates a new one. It never creates
	// duplicates under concurrent calls for the same tuple.
	FindOrCreateConversationState(ctx context.Context, userID string, contextType models.ContextType, contextID string, metadata map[string]string) (*models.ConversationState, error)

	// GetLastResponseID returns the stored continuity token, or empty if the
	// thread has no token yet.
	GetLastResponseID(ctx context.Context, threadID string) (string, error)

	// UpdateLastResponseID persists a new continuity token for the thread.
	UpdateLastResponseID(ctx context.Context, threadID, responseID string) error

	// ArchiveThreadState marks the thread inactive; a subsequent
	// FindOrCreateConversationState for the same context creates a fresh state.
	ArchiveThreadState(ctx context.Context, threadID string) error
}

// StoreBasedStateManager implements StateManager using a Store backend.
type StoreBasedStateManager struct {
	store store.Store
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
func NewStoreBasedStateManager(st store.Store) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st}
}

// FindOrCreateConversationState retrieves or atomically creates the active
// state for a (user, context) tuple. The store's uniqueness constraint on
// active tuples makes concurrent creation safe: the losing insert is a no-op
// and both callers read back the same row.
func (sm *StoreBasedStateManager) FindOrCreateConversationState(ctx context.Context, userID string, contextType models.ContextType, contextID string, metadata map[string]string) (*models.ConversationState, error) {
	slog.Debug("StateManager FindOrCreateConversationState", "userID", userID, "contextType", contextType, "contextID", contextID)

	if userID == "" {
		return nil, models.NewValidationError("user ID is required")
	}
	if contextType == "" {
		return nil, models.NewValidationError("context type is required")
	}

	state, err := sm.store.GetActiveConversationState(userID, contextType, contextID)
	if err != nil {
		slog.Error("StateManager FindOrCreateConversationState lookup failed", "error", err, "userID", userID)
		return nil, models.NewRepositoryError("find conversation state", err)
	}
	if state != nil {
		slog.Debug("StateManager FindOrCreateConversationState found existing", "threadID", state.ThreadID, "userID", userID)
		return state, nil
	}

	now := time.Now()
	candidate := models.ConversationState{
		ID:           uuid.NewString(),
		ThreadID:     util.GenerateThreadID(),
		UserID:       userID,
		ContextType:  contextType,
		ContextID:    contextID,
		Status:       models.ConversationStatusActive,
		Metadata:     metadata,
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := sm.store.CreateConversationState(candidate); err != nil {
		slog.Error("StateManager FindOrCreateConversationState create failed", "error", err, "userID", userID)
		return nil, models.NewRepositoryError("create conversation state", err)
	}

	// Re-read rather than returning the candidate: under a concurrent create
	// for the same tuple our insert may have been the no-op loser.
	state, err = sm.store.GetActiveConversationState(userID, contextType, contextID)
	if err != nil {
		slog.Error("StateManager FindOrCreateConversationState re-read failed", "error", err, "userID", userID)
		return nil, models.NewRepositoryError("find conversation state", err)
	}
	if state == nil {
		return nil, models.NewRepositoryError("find conversation state", fmt.Errorf("state missing after create for user %s", userID))
	}

	slog.Info("StateManager FindOrCreateConversationState created", "threadID", state.ThreadID, "userID", userID, "contextType", contextType)
	return state, nil
}

// GetLastResponseID returns the stored continuity token for a thread.
func (sm *StoreBasedStateManager) GetLastResponseID(ctx context.Context, threadID string) (string, error) {
	slog.Debug("StateManager GetLastResponseID", "threadID", threadID)

	state, err := sm.store.GetConversationStateByThread(threadID)
	if err != nil {
		slog.Error("StateManager GetLastResponseID failed", "error", err, "threadID", threadID)
		return "", models.NewRepositoryError("get last response id", err)
	}
	if state == nil {
		slog.Debug("StateManager GetLastResponseID thread not found", "threadID", threadID)
		return "", models.NewNotFoundError("conversation state", threadID)
	}
	return state.LastResponseID, nil
}

// UpdateLastResponseID persists the new continuity token for a thread.
func (sm *StoreBasedStateManager) UpdateLastResponseID(ctx context.Context, threadID, responseID string) error {
	slog.Debug("StateManager UpdateLastResponseID", "threadID", threadID)

	if responseID == "" {
		return models.NewValidationError("response ID is required")
	}
	found, err := sm.store.UpdateConversationResponseID(threadID, responseID)
	if err != nil {
		slog.Error("StateManager UpdateLastResponseID failed", "error", err, "threadID", threadID)
		return models.NewRepositoryError("update last response id", err)
	}
	if !found {
		slog.Warn("StateManager UpdateLastResponseID thread not found", "threadID", threadID)
		return models.NewNotFoundError("conversation state", threadID)
	}
	slog.Debug("StateManager UpdateLastResponseID succeeded", "threadID", threadID)
	return nil
}

// ArchiveThreadState marks the thread's state inactive.
func (sm *StoreBasedStateManager) ArchiveThreadState(ctx context.Context, threadID string) error {
	slog.Debug("StateManager ArchiveThreadState", "threadID", threadID)

	found, err := sm.store.ArchiveConversationState(threadID)
	if err != nil {
		slog.Error("StateManager ArchiveThreadState failed", "error", err, "threadID", threadID)
		return models.NewRepositoryError("archive thread state", err)
	}
	if !found {
		slog.Warn("StateManager ArchiveThreadState thread not found or not active", "threadID", threadID)
		return models.NewNotFoundError("conversation state", threadID)
	}
	slog.Info("StateManager ArchiveThreadState succeeded", "threadID", threadID)
	return nil
}
