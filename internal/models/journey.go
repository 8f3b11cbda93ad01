// Package models defines journey tracking structures for the arena backend.
package models

import "time"

// EngagementLevel classifies how recently a user has been active.
type EngagementLevel string

const (
	// EngagementNew indicates no recorded activity yet.
	EngagementNew EngagementLevel = "NEW"
	// EngagementActive indicates activity within the last two days.
	EngagementActive EngagementLevel = "ACTIVE"
	// EngagementEngaged indicates activity within the last week.
	EngagementEngaged EngagementLevel = "ENGAGED"
	// EngagementCasual indicates activity within the last thirty days.
	EngagementCasual EngagementLevel = "CASUAL"
	// EngagementInactive indicates no activity for thirty days or more.
	EngagementInactive EngagementLevel = "INACTIVE"
)

// JourneyPhase classifies how deep into the product a user is.
type JourneyPhase string

const (
	PhaseOnboarding   JourneyPhase = "ONBOARDING"
	PhaseBeginner     JourneyPhase = "BEGINNER"
	PhaseExplorer     JourneyPhase = "EXPLORER"
	PhasePractitioner JourneyPhase = "PRACTITIONER"
	PhaseAdvanced     JourneyPhase = "ADVANCED"
	PhaseMaster       JourneyPhase = "MASTER"
)

// JourneyEventType identifies the kind of user action a journey event records.
type JourneyEventType string

const (
	// EventLogin records a user signing in.
	EventLogin JourneyEventType = "login"
	// EventChallengeStarted records a user opening a challenge.
	EventChallengeStarted JourneyEventType = "challenge_started"
	// EventChallengeCompleted records a scored challenge completion.
	EventChallengeCompleted JourneyEventType = "challenge_completed"
	// EventOnboardingCompleted records the user finishing onboarding.
	EventOnboardingCompleted JourneyEventType = "onboarding_completed"
)

// IsValidJourneyEventType checks if the given event type is supported.
func IsValidJourneyEventType(t JourneyEventType) bool {
	switch t {
	case EventLogin, EventChallengeStarted, EventChallengeCompleted, EventOnboardingCompleted:
		return true
	default:
		return false
	}
}

// JourneyEventData is the typed payload attached to a journey event. Fields
// are per event kind: Score accompanies challenge_completed, Source
// accompanies login. Typed rather than a free-form map so the serialization
// contract is validated at the storage boundary.
type JourneyEventData struct {
	Score         *int   `json:"score,omitempty"`
	ChallengeType string `json:"challenge_type,omitempty"`
	Source        string `json:"source,omitempty"`
}

// UserJourneyEvent is an immutable fact about a user action. Events are
// append-only: never updated or deleted once created.
type UserJourneyEvent struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	EventType   JourneyEventType `json:"event_type"`
	EventData   JourneyEventData `json:"event_data"`
	ChallengeID string           `json:"challenge_id,omitempty"`
	SessionID   string           `json:"session_id,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Validate checks the event before it is appended to the log.
func (e *UserJourneyEvent) Validate() error {
	if e.UserID == "" {
		return ErrMissingUserID
	}
	if e.EventType == "" {
		return ErrMissingEventType
	}
	if !IsValidJourneyEventType(e.EventType) {
		return NewValidationError("unsupported event type %q", e.EventType)
	}
	return nil
}

// JourneyMetrics holds the rolling activity metrics derived from
// challenge-completion events.
type JourneyMetrics struct {
	TotalChallenges int       `json:"total_challenges"`
	AverageScore    float64   `json:"average_score"`
	StreakDays      int       `json:"streak_days"`
	LastChallenge   time.Time `json:"last_challenge,omitempty"`
}

// JourneyMetadata holds flags about the journey that are derived from events
// but not numeric metrics.
type JourneyMetadata struct {
	OnboardingCompleted bool `json:"onboarding_completed"`
}

// UserJourney is the aggregate snapshot of a user's behavioral history, one
// per user. Engagement level, phase, and metrics are pure derived functions of
// the event history plus the session-timeout configuration; they must never
// drift from what a full replay would produce.
type UserJourney struct {
	ID                      string          `json:"id"`
	UserID                  string          `json:"user_id"`
	LastActivity            time.Time       `json:"last_activity,omitempty"`
	SessionCount            int             `json:"session_count"`
	CurrentSessionStartedAt time.Time       `json:"current_session_started_at,omitempty"`
	EngagementLevel         EngagementLevel `json:"engagement_level"`
	CurrentPhase            JourneyPhase    `json:"current_phase"`
	Metrics                 JourneyMetrics  `json:"metrics"`
	Metadata                JourneyMetadata `json:"metadata"`
	Version                 int64           `json:"-"` // optimistic concurrency token, managed by the store
	CreatedAt               time.Time       `json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`
}
