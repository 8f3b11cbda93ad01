// Package store provides storage backends for the arena backend.
//
// This file implements an in-memory store used in tests and as a zero-setup
// fallback. It enforces the same semantics as the SQL backends: one active
// conversation state per tuple and versioned journey snapshots.
package store

import (
	"sort"
	"sync"

	"github.com/aifightclub/arena/internal/models"
)

// InMemoryStore is a mutex-guarded in-memory implementation of Store.
type InMemoryStore struct {
	mu           sync.Mutex
	statesByID   map[string]models.ConversationState // keyed by thread ID
	events       []models.UserJourneyEvent
	journeys     map[string]models.UserJourney // keyed by user ID
	evaluations  map[string]models.Evaluation  // keyed by evaluation ID
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		statesByID:  make(map[string]models.ConversationState),
		journeys:    make(map[string]models.UserJourney),
		evaluations: make(map[string]models.Evaluation),
	}
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// CreateConversationState inserts a state unless an active one already exists
// for the same tuple.
func (s *InMemoryStore) CreateConversationState(state models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.statesByID {
		if existing.Status == models.ConversationStatusActive &&
			existing.UserID == state.UserID &&
			existing.ContextType == state.ContextType &&
			existing.ContextID == state.ContextID {
			return nil // active state already present, insert is a no-op
		}
	}
	s.statesByID[state.ThreadID] = state
	return nil
}

// GetActiveConversationState returns the active state for the tuple, or nil.
func (s *InMemoryStore) GetActiveConversationState(userID string, contextType models.ContextType, contextID string) (*models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, state := range s.statesByID {
		if state.Status == models.ConversationStatusActive &&
			state.UserID == userID &&
			state.ContextType == contextType &&
			state.ContextID == contextID {
			found := state
			return &found, nil
		}
	}
	return nil, nil
}

// GetConversationStateByThread returns the state for a thread handle, or nil.
func (s *InMemoryStore) GetConversationStateByThread(threadID string) (*models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.statesByID[threadID]
	if !ok {
		return nil, nil
	}
	found := state
	return &found, nil
}

// UpdateConversationResponseID stores the new continuity token for the thread.
func (s *InMemoryStore) UpdateConversationResponseID(threadID, responseID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.statesByID[threadID]
	if !ok {
		return false, nil
	}
	state.LastResponseID = responseID
	state.MessageCount++
	state.RunCount++
	state.LastActivity = nowFunc()
	state.UpdatedAt = state.LastActivity
	s.statesByID[threadID] = state
	return true, nil
}

// ArchiveConversationState marks the state archived.
func (s *InMemoryStore) ArchiveConversationState(threadID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.statesByID[threadID]
	if !ok || state.Status != models.ConversationStatusActive {
		return false, nil
	}
	state.Status = models.ConversationStatusArchived
	state.UpdatedAt = nowFunc()
	s.statesByID[threadID] = state
	return true, nil
}

// AddJourneyEvent appends an event to the log.
func (s *InMemoryStore) AddJourneyEvent(event models.UserJourneyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// GetJourneyEvents returns a user's events ordered by timestamp.
func (s *InMemoryStore) GetJourneyEvents(userID string) ([]models.UserJourneyEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []models.UserJourneyEvent
	for _, event := range s.events {
		if event.UserID == userID {
			events = append(events, event)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events, nil
}

// GetUserJourney returns the journey snapshot for a user, or nil.
func (s *InMemoryStore) GetUserJourney(userID string) (*models.UserJourney, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	journey, ok := s.journeys[userID]
	if !ok {
		return nil, nil
	}
	found := journey
	return &found, nil
}

// SaveUserJourney persists the snapshot with compare-and-swap versioning.
func (s *InMemoryStore) SaveUserJourney(journey models.UserJourney) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.journeys[journey.UserID]
	if journey.Version == 0 {
		if ok {
			return ErrVersionConflict
		}
		journey.Version = 1
		s.journeys[journey.UserID] = journey
		return nil
	}
	if !ok || existing.Version != journey.Version {
		return ErrVersionConflict
	}
	journey.Version++
	s.journeys[journey.UserID] = journey
	return nil
}

// SaveEvaluation stores an evaluation.
func (s *InMemoryStore) SaveEvaluation(evaluation models.Evaluation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluations[evaluation.ID] = evaluation
	return nil
}

// GetEvaluation returns an evaluation by ID, or nil.
func (s *InMemoryStore) GetEvaluation(id string) (*models.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evaluation, ok := s.evaluations[id]
	if !ok {
		return nil, nil
	}
	found := evaluation
	return &found, nil
}

// ListUserEvaluations returns a user's evaluations, newest first.
func (s *InMemoryStore) ListUserEvaluations(userID string) ([]models.Evaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var evaluations []models.Evaluation
	for _, evaluation := range s.evaluations {
		if evaluation.UserID == userID {
			evaluations = append(evaluations, evaluation)
		}
	}
	sort.SliceStable(evaluations, func(i, j int) bool {
		return evaluations[i].CreatedAt.After(evaluations[j].CreatedAt)
	})
	return evaluations, nil
}
