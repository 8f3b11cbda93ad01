// Package models defines conversation state structures for the arena backend.
package models

import "time"

// ContextType identifies the purpose a conversation thread serves.
type ContextType string

const (
	// ContextTypeEvaluation threads carry multi-turn evaluation exchanges.
	ContextTypeEvaluation ContextType = "evaluation"
	// ContextTypeRivalChallenge threads carry rival-challenge exchanges.
	ContextTypeRivalChallenge ContextType = "rival_challenge"
)

// ConversationStatus represents the lifecycle status of a conversation state.
type ConversationStatus string

const (
	// ConversationStatusActive indicates the thread can continue.
	ConversationStatusActive ConversationStatus = "active"
	// ConversationStatusArchived indicates the thread was retired; a new
	// FindOrCreate for the same context starts a fresh state.
	ConversationStatusArchived ConversationStatus = "archived"
)

// ConversationState binds a (user, purpose) pair to its current LLM
// continuity token so a logically continuous multi-turn exchange can resume
// across independent HTTP requests. At most one active state exists per
// (UserID, ContextType, ContextID) tuple; states are archived, never
// hard-deleted in normal flow.
type ConversationState struct {
	ID             string             `json:"id"`
	ThreadID       string             `json:"thread_id"` // opaque continuity handle callers hold
	UserID         string             `json:"user_id"`
	ContextType    ContextType        `json:"context_type"`
	ContextID      string             `json:"context_id"`
	LastResponseID string             `json:"last_response_id,omitempty"`
	MessageCount   int                `json:"message_count"`
	RunCount       int                `json:"run_count"`
	Status         ConversationStatus `json:"status"`
	Metadata       map[string]string  `json:"metadata,omitempty"`
	LastActivity   time.Time          `json:"last_activity"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}
