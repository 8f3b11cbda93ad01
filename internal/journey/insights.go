package journey

import "github.com/aifightclub/arena/internal/models"

// Insights is the personalization summary derived from a journey snapshot.
// It is a deterministic lookup on (phase, engagement level), not LLM output.
type Insights struct {
	Phase           models.JourneyPhase    `json:"phase"`
	EngagementLevel models.EngagementLevel `json:"engagement_level"`
	Insight         string                 `json:"insight"`
	Recommendations []string               `json:"recommendations"`
}

type phaseGuidance struct {
	insight         string
	recommendations []string
}

var phaseGuidanceTable = map[models.JourneyPhase]phaseGuidance{
	models.PhaseOnboarding: {
		insight: "You are just getting started. Finish onboarding to unlock challenges tuned to you.",
		recommendations: []string{
			"Complete the onboarding questionnaire",
			"Try your first warm-up challenge",
		},
	},
	models.PhaseBeginner: {
		insight: "You are building your foundations. Short, frequent practice beats long rare sessions.",
		recommendations: []string{
			"Complete one challenge per day to build a streak",
			"Review the feedback on your last evaluation",
		},
	},
	models.PhaseExplorer: {
		insight: "You are exploring the breadth of challenge types. Variety sharpens reasoning.",
		recommendations: []string{
			"Try a challenge type you have not attempted yet",
			"Revisit a low-scoring challenge and improve your answer",
		},
	},
	models.PhasePractitioner: {
		insight: "You practice consistently. Focus on the skill areas flagged in your evaluations.",
		recommendations: []string{
			"Pick challenges that target your weakest skill delta",
			"Compare your recent scores against your average",
		},
	},
	models.PhaseAdvanced: {
		insight: "You are among the most experienced users. Depth matters more than volume now.",
		recommendations: []string{
			"Attempt the hardest difficulty tier",
			"Mentor a rival by sharing a challenge",
		},
	},
	models.PhaseMaster: {
		insight: "You have mastered the core challenge set. Keep your edge with deliberate practice.",
		recommendations: []string{
			"Set a personal best target for your average score",
			"Maintain your streak with one challenge per day",
		},
	},
}

var engagementNudges = map[models.EngagementLevel]string{
	models.EngagementNew:      "Welcome! Your journey starts with your first challenge.",
	models.EngagementActive:   "You are on a roll. Keep the momentum going today.",
	models.EngagementEngaged:  "You were active this week. A challenge today restores your streak.",
	models.EngagementCasual:   "It has been a while. A quick challenge gets you back in rhythm.",
	models.EngagementInactive: "Welcome back whenever you are ready. Start small with one challenge.",
}

// InsightsFor maps a (phase, engagement level) pair to fixed human-readable
// guidance. Unknown values fall back to onboarding guidance.
func InsightsFor(phase models.JourneyPhase, level models.EngagementLevel) Insights {
	guidance, ok := phaseGuidanceTable[phase]
	if !ok {
		guidance = phaseGuidanceTable[models.PhaseOnboarding]
	}
	recommendations := append([]string{}, guidance.recommendations...)
	if nudge, ok := engagementNudges[level]; ok {
		recommendations = append(recommendations, nudge)
	}
	return Insights{
		Phase:           phase,
		EngagementLevel: level,
		Insight:         guidance.insight,
		Recommendations: recommendations,
	}
}
