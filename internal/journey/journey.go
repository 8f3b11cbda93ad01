// Package journey derives user engagement state from an append-only event log.
//
// The aggregate keeps a snapshot of derived fields (engagement level, phase,
// rolling metrics, session bookkeeping). Every derived field is a pure
// function of the ordered event history plus the session-timeout
// configuration: RecalculateFromEvents folds the same AddEvent routine over
// the full log, so the incremental and replay paths cannot diverge.
package journey

import (
	"time"

	"github.com/google/uuid"

	"github.com/aifightclub/arena/internal/models"
)

// DefaultSessionTimeout bounds how long a single session may run before a new
// event opens a fresh one.
const DefaultSessionTimeout = 30 * time.Minute

// Config carries the tunables the derivation depends on. Now is swappable so
// engagement levels are deterministic in tests; nil means time.Now.
type Config struct {
	SessionTimeout time.Duration
	Now            func() time.Time
}

func (c Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c Config) sessionTimeout() time.Duration {
	if c.SessionTimeout > 0 {
		return c.SessionTimeout
	}
	return DefaultSessionTimeout
}

// Update records what a single AddEvent changed. It is a notification record
// for callers (logging, event-bus publication), not an executed side effect.
type Update struct {
	UserID             string                  `json:"user_id"`
	EventType          models.JourneyEventType `json:"event_type"`
	NewSession         bool                    `json:"new_session"`
	EngagementChanged  bool                    `json:"engagement_changed"`
	PreviousEngagement models.EngagementLevel  `json:"previous_engagement,omitempty"`
	Engagement         models.EngagementLevel  `json:"engagement"`
	PhaseChanged       bool                    `json:"phase_changed"`
	PreviousPhase      models.JourneyPhase     `json:"previous_phase,omitempty"`
	Phase              models.JourneyPhase     `json:"phase"`
}

// NewJourney creates the empty aggregate for a user. Journeys are created
// lazily on the first event and never deleted.
func NewJourney(userID string) *models.UserJourney {
	now := time.Now()
	return &models.UserJourney{
		ID:              uuid.NewString(),
		UserID:          userID,
		EngagementLevel: models.EngagementNew,
		CurrentPhase:    models.PhaseOnboarding,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// AddEvent folds one event into the aggregate and returns the resulting
// update record. The event must belong to the aggregate's user.
func AddEvent(j *models.UserJourney, event models.UserJourneyEvent, cfg Config) (Update, error) {
	if err := event.Validate(); err != nil {
		return Update{}, err
	}
	if event.UserID != j.UserID {
		return Update{}, models.ErrEventUserMismatch
	}

	prevEngagement := j.EngagementLevel
	prevPhase := j.CurrentPhase

	newSession := applySession(j, event.Timestamp, cfg)
	j.LastActivity = event.Timestamp

	switch event.EventType {
	case models.EventChallengeCompleted:
		applyChallengeCompletion(j, event)
	case models.EventOnboardingCompleted:
		j.Metadata.OnboardingCompleted = true
	}

	j.EngagementLevel = EngagementLevelAt(j.LastActivity, cfg.now())
	j.CurrentPhase = PhaseFor(j.Metadata.OnboardingCompleted, j.Metrics.TotalChallenges)
	j.UpdatedAt = cfg.now()

	return Update{
		UserID:             j.UserID,
		EventType:          event.EventType,
		NewSession:         newSession,
		EngagementChanged:  j.EngagementLevel != prevEngagement,
		PreviousEngagement: prevEngagement,
		Engagement:         j.EngagementLevel,
		PhaseChanged:       j.CurrentPhase != prevPhase,
		PreviousPhase:      prevPhase,
		Phase:              j.CurrentPhase,
	}, nil
}

// applySession opens a new session when the event falls outside the timeout
// window measured from the current session's start. Returns whether a new
// session was opened.
func applySession(j *models.UserJourney, ts time.Time, cfg Config) bool {
	if j.SessionCount == 0 {
		j.SessionCount = 1
		j.CurrentSessionStartedAt = ts
		return true
	}
	if ts.Sub(j.CurrentSessionStartedAt) > cfg.sessionTimeout() {
		j.SessionCount++
		j.CurrentSessionStartedAt = ts
		return true
	}
	return false
}

// applyChallengeCompletion updates the rolling metrics. The incremental mean
// and trailing-run streak are exactly what a full replay over the ordered
// event list would produce.
func applyChallengeCompletion(j *models.UserJourney, event models.UserJourneyEvent) {
	score := 0
	if event.EventData.Score != nil {
		score = *event.EventData.Score
	}

	n := float64(j.Metrics.TotalChallenges)
	j.Metrics.AverageScore = (j.Metrics.AverageScore*n + float64(score)) / (n + 1)
	j.Metrics.TotalChallenges++

	switch {
	case j.Metrics.LastChallenge.IsZero():
		j.Metrics.StreakDays = 1
	case sameCalendarDay(j.Metrics.LastChallenge, event.Timestamp):
		// streak unchanged
	case consecutiveCalendarDays(j.Metrics.LastChallenge, event.Timestamp):
		j.Metrics.StreakDays++
	default:
		j.Metrics.StreakDays = 1
	}
	j.Metrics.LastChallenge = event.Timestamp
}

// RecalculateFromEvents rebuilds all derived fields from scratch by folding
// the ordered event list through AddEvent. Identity fields and timestamps of
// record creation are preserved.
func RecalculateFromEvents(j *models.UserJourney, events []models.UserJourneyEvent, cfg Config) error {
	j.LastActivity = time.Time{}
	j.SessionCount = 0
	j.CurrentSessionStartedAt = time.Time{}
	j.EngagementLevel = models.EngagementNew
	j.CurrentPhase = models.PhaseOnboarding
	j.Metrics = models.JourneyMetrics{}
	j.Metadata = models.JourneyMetadata{}

	for _, event := range events {
		if _, err := AddEvent(j, event, cfg); err != nil {
			return err
		}
	}
	return nil
}

// EngagementLevelAt classifies activity recency. The lower bound of each
// bucket is exclusive: exactly two days since last activity is ENGAGED, not
// ACTIVE, and exactly thirty days is INACTIVE.
func EngagementLevelAt(lastActivity, now time.Time) models.EngagementLevel {
	if lastActivity.IsZero() {
		return models.EngagementNew
	}
	since := now.Sub(lastActivity)
	switch {
	case since < 2*24*time.Hour:
		return models.EngagementActive
	case since < 7*24*time.Hour:
		return models.EngagementEngaged
	case since < 30*24*time.Hour:
		return models.EngagementCasual
	default:
		return models.EngagementInactive
	}
}

// PhaseFor classifies product depth by challenge volume once onboarding is
// done.
func PhaseFor(onboardingCompleted bool, totalChallenges int) models.JourneyPhase {
	if !onboardingCompleted {
		return models.PhaseOnboarding
	}
	switch {
	case totalChallenges < 5:
		return models.PhaseBeginner
	case totalChallenges < 20:
		return models.PhaseExplorer
	case totalChallenges < 50:
		return models.PhasePractitioner
	case totalChallenges < 100:
		return models.PhaseAdvanced
	default:
		return models.PhaseMaster
	}
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func consecutiveCalendarDays(prev, next time.Time) bool {
	return sameCalendarDay(prev.UTC().AddDate(0, 0, 1), next)
}
