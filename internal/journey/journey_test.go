package journey

import (
	"testing"
	"time"

	"github.com/aifightclub/arena/internal/models"
)

var testBase = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func intPtr(v int) *int { return &v }

func completionEvent(userID string, ts time.Time, score int) models.UserJourneyEvent {
	return models.UserJourneyEvent{
		ID:        "evt-" + ts.Format(time.RFC3339),
		UserID:    userID,
		EventType: models.EventChallengeCompleted,
		EventData: models.JourneyEventData{Score: intPtr(score)},
		Timestamp: ts,
		CreatedAt: ts,
	}
}

func loginEvent(userID string, ts time.Time) models.UserJourneyEvent {
	return models.UserJourneyEvent{
		ID:        "evt-login-" + ts.Format(time.RFC3339),
		UserID:    userID,
		EventType: models.EventLogin,
		EventData: models.JourneyEventData{Source: "web"},
		Timestamp: ts,
		CreatedAt: ts,
	}
}

func onboardingEvent(userID string, ts time.Time) models.UserJourneyEvent {
	return models.UserJourneyEvent{
		ID:        "evt-onboarding",
		UserID:    userID,
		EventType: models.EventOnboardingCompleted,
		Timestamp: ts,
		CreatedAt: ts,
	}
}

func TestEngagementLevelAtBoundaries(t *testing.T) {
	now := testBase
	tests := []struct {
		name         string
		lastActivity time.Time
		want         models.EngagementLevel
	}{
		{"no activity", time.Time{}, models.EngagementNew},
		{"one hour ago", now.Add(-time.Hour), models.EngagementActive},
		{"just under two days", now.Add(-2*24*time.Hour + time.Second), models.EngagementActive},
		{"exactly two days", now.Add(-2 * 24 * time.Hour), models.EngagementEngaged},
		{"six days", now.Add(-6 * 24 * time.Hour), models.EngagementEngaged},
		{"exactly seven days", now.Add(-7 * 24 * time.Hour), models.EngagementCasual},
		{"twenty-nine days", now.Add(-29 * 24 * time.Hour), models.EngagementCasual},
		{"exactly thirty days", now.Add(-30 * 24 * time.Hour), models.EngagementInactive},
		{"ninety days", now.Add(-90 * 24 * time.Hour), models.EngagementInactive},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := EngagementLevelAt(tc.lastActivity, now); got != tc.want {
				t.Errorf("EngagementLevelAt() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestPhaseForBoundaries(t *testing.T) {
	tests := []struct {
		name            string
		onboardingDone  bool
		totalChallenges int
		want            models.JourneyPhase
	}{
		{"onboarding incomplete", false, 50, models.PhaseOnboarding},
		{"zero challenges", true, 0, models.PhaseBeginner},
		{"four challenges", true, 4, models.PhaseBeginner},
		{"five challenges", true, 5, models.PhaseExplorer},
		{"nineteen challenges", true, 19, models.PhaseExplorer},
		{"twenty challenges", true, 20, models.PhasePractitioner},
		{"fifty challenges", true, 50, models.PhaseAdvanced},
		{"one hundred challenges", true, 100, models.PhaseMaster},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := PhaseFor(tc.onboardingDone, tc.totalChallenges); got != tc.want {
				t.Errorf("PhaseFor(%v, %d) = %s, want %s", tc.onboardingDone, tc.totalChallenges, got, tc.want)
			}
		})
	}
}

func TestAddEventRejectsWrongUser(t *testing.T) {
	j := NewJourney("user-1")
	event := loginEvent("user-2", testBase)

	_, err := AddEvent(j, event, Config{})
	if !models.IsValidation(err) {
		t.Errorf("expected validation error for mismatched user, got %v", err)
	}
}

func TestAddEventAverageScore(t *testing.T) {
	j := NewJourney("user-1")
	cfg := Config{Now: fixedNow(testBase.Add(4 * 24 * time.Hour))}

	scores := []int{60, 70, 80, 90}
	for i, score := range scores {
		ts := testBase.Add(time.Duration(i) * time.Hour)
		if _, err := AddEvent(j, completionEvent("user-1", ts, score), cfg); err != nil {
			t.Fatalf("AddEvent() error = %v", err)
		}
	}

	if j.Metrics.TotalChallenges != 4 {
		t.Errorf("TotalChallenges = %d, want 4", j.Metrics.TotalChallenges)
	}
	if j.Metrics.AverageScore != 75 {
		t.Errorf("AverageScore = %v, want 75", j.Metrics.AverageScore)
	}
}

func TestAddEventStreakConsecutiveDays(t *testing.T) {
	j := NewJourney("user-1")
	cfg := Config{Now: fixedNow(testBase.Add(3 * 24 * time.Hour))}

	for day := 0; day < 3; day++ {
		ts := testBase.AddDate(0, 0, day)
		if _, err := AddEvent(j, completionEvent("user-1", ts, 80), cfg); err != nil {
			t.Fatalf("AddEvent() error = %v", err)
		}
	}
	if j.Metrics.StreakDays != 3 {
		t.Errorf("StreakDays = %d, want 3", j.Metrics.StreakDays)
	}
}

func TestAddEventStreakSameDayUnchanged(t *testing.T) {
	j := NewJourney("user-1")
	cfg := Config{Now: fixedNow(testBase.Add(24 * time.Hour))}

	if _, err := AddEvent(j, completionEvent("user-1", testBase, 70), cfg); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	if _, err := AddEvent(j, completionEvent("user-1", testBase.Add(2*time.Hour), 90), cfg); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	if j.Metrics.StreakDays != 1 {
		t.Errorf("StreakDays = %d, want 1 for two completions on the same day", j.Metrics.StreakDays)
	}
}

func TestAddEventStreakResetsOnGap(t *testing.T) {
	j := NewJourney("user-1")
	cfg := Config{Now: fixedNow(testBase.Add(3 * 24 * time.Hour))}

	if _, err := AddEvent(j, completionEvent("user-1", testBase, 70), cfg); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	// Day 3, skipping day 2.
	if _, err := AddEvent(j, completionEvent("user-1", testBase.AddDate(0, 0, 2), 90), cfg); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	if j.Metrics.StreakDays != 1 {
		t.Errorf("StreakDays = %d, want 1 after a calendar gap", j.Metrics.StreakDays)
	}
}

func TestAddEventSessionCounting(t *testing.T) {
	j := NewJourney("user-1")
	cfg := Config{
		SessionTimeout: 30 * time.Minute,
		Now:            fixedNow(testBase.Add(24 * time.Hour)),
	}

	if _, err := AddEvent(j, loginEvent("user-1", testBase), cfg); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	if j.SessionCount != 1 {
		t.Fatalf("SessionCount = %d after first event, want 1", j.SessionCount)
	}

	// Within the timeout window measured from session start.
	if _, err := AddEvent(j, loginEvent("user-1", testBase.Add(20*time.Minute)), cfg); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	if j.SessionCount != 1 {
		t.Errorf("SessionCount = %d within timeout, want 1", j.SessionCount)
	}

	// Past the timeout window.
	if _, err := AddEvent(j, loginEvent("user-1", testBase.Add(2*time.Hour)), cfg); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	if j.SessionCount != 2 {
		t.Errorf("SessionCount = %d past timeout, want 2", j.SessionCount)
	}
	if !j.CurrentSessionStartedAt.Equal(testBase.Add(2 * time.Hour)) {
		t.Errorf("CurrentSessionStartedAt = %v, want session reset to event time", j.CurrentSessionStartedAt)
	}
}

func TestAddEventOnboardingUnlocksPhases(t *testing.T) {
	j := NewJourney("user-1")
	cfg := Config{Now: fixedNow(testBase.Add(time.Hour))}

	if _, err := AddEvent(j, completionEvent("user-1", testBase, 80), cfg); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	if j.CurrentPhase != models.PhaseOnboarding {
		t.Errorf("phase = %s before onboarding, want %s", j.CurrentPhase, models.PhaseOnboarding)
	}

	update, err := AddEvent(j, onboardingEvent("user-1", testBase.Add(10*time.Minute)), cfg)
	if err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	if j.CurrentPhase != models.PhaseBeginner {
		t.Errorf("phase = %s after onboarding, want %s", j.CurrentPhase, models.PhaseBeginner)
	}
	if !update.PhaseChanged {
		t.Error("expected PhaseChanged in the update record")
	}
}

func TestReplayEquivalence(t *testing.T) {
	cfg := Config{
		SessionTimeout: 30 * time.Minute,
		Now:            fixedNow(testBase.Add(5 * 24 * time.Hour)),
	}

	events := []models.UserJourneyEvent{
		loginEvent("user-1", testBase),
		onboardingEvent("user-1", testBase.Add(5*time.Minute)),
		completionEvent("user-1", testBase.Add(10*time.Minute), 70),
		completionEvent("user-1", testBase.AddDate(0, 0, 1), 80),
		loginEvent("user-1", testBase.AddDate(0, 0, 1).Add(10*time.Minute)),
		completionEvent("user-1", testBase.AddDate(0, 0, 2), 90),
		completionEvent("user-1", testBase.AddDate(0, 0, 4), 60),
	}

	incremental := NewJourney("user-1")
	for _, event := range events {
		if _, err := AddEvent(incremental, event, cfg); err != nil {
			t.Fatalf("AddEvent() error = %v", err)
		}
	}

	replayed := NewJourney("user-1")
	if err := RecalculateFromEvents(replayed, events, cfg); err != nil {
		t.Fatalf("RecalculateFromEvents() error = %v", err)
	}

	if incremental.EngagementLevel != replayed.EngagementLevel {
		t.Errorf("engagement: incremental %s, replay %s", incremental.EngagementLevel, replayed.EngagementLevel)
	}
	if incremental.CurrentPhase != replayed.CurrentPhase {
		t.Errorf("phase: incremental %s, replay %s", incremental.CurrentPhase, replayed.CurrentPhase)
	}
	if incremental.SessionCount != replayed.SessionCount {
		t.Errorf("sessions: incremental %d, replay %d", incremental.SessionCount, replayed.SessionCount)
	}
	if incremental.Metrics != replayed.Metrics {
		t.Errorf("metrics: incremental %+v, replay %+v", incremental.Metrics, replayed.Metrics)
	}
	if !incremental.LastActivity.Equal(replayed.LastActivity) {
		t.Errorf("lastActivity: incremental %v, replay %v", incremental.LastActivity, replayed.LastActivity)
	}
}

func TestThreeDayScenario(t *testing.T) {
	cfg := Config{
		SessionTimeout: 30 * time.Minute,
		Now:            fixedNow(testBase.AddDate(0, 0, 2).Add(time.Hour)),
	}

	j := NewJourney("user-1")
	if _, err := AddEvent(j, onboardingEvent("user-1", testBase.Add(-time.Hour)), cfg); err != nil {
		t.Fatalf("AddEvent() error = %v", err)
	}
	for day, score := range []int{70, 80, 90} {
		ts := testBase.AddDate(0, 0, day)
		if _, err := AddEvent(j, completionEvent("user-1", ts, score), cfg); err != nil {
			t.Fatalf("AddEvent() error = %v", err)
		}
	}

	if j.Metrics.TotalChallenges != 3 {
		t.Errorf("TotalChallenges = %d, want 3", j.Metrics.TotalChallenges)
	}
	if j.Metrics.AverageScore != 80 {
		t.Errorf("AverageScore = %v, want 80", j.Metrics.AverageScore)
	}
	if j.Metrics.StreakDays != 3 {
		t.Errorf("StreakDays = %d, want 3", j.Metrics.StreakDays)
	}
	if j.EngagementLevel != models.EngagementActive {
		t.Errorf("EngagementLevel = %s, want %s", j.EngagementLevel, models.EngagementActive)
	}
	if j.CurrentPhase != models.PhaseBeginner {
		t.Errorf("CurrentPhase = %s, want %s", j.CurrentPhase, models.PhaseBeginner)
	}
}

func TestInsightsForKnownPairs(t *testing.T) {
	insights := InsightsFor(models.PhaseBeginner, models.EngagementActive)
	if insights.Phase != models.PhaseBeginner || insights.EngagementLevel != models.EngagementActive {
		t.Errorf("insights echo wrong identity: %+v", insights)
	}
	if insights.Insight == "" || len(insights.Recommendations) == 0 {
		t.Errorf("expected non-empty guidance, got %+v", insights)
	}

	again := InsightsFor(models.PhaseBeginner, models.EngagementActive)
	if insights.Insight != again.Insight || len(insights.Recommendations) != len(again.Recommendations) {
		t.Error("expected deterministic insights for the same pair")
	}
}

func TestInsightsForUnknownPhaseFallsBack(t *testing.T) {
	insights := InsightsFor(models.JourneyPhase("UNKNOWN"), models.EngagementNew)
	if insights.Insight == "" {
		t.Error("expected fallback guidance for unknown phase")
	}
}
