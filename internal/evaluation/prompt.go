package evaluation

import (
	"fmt"
	"strings"

	"github.com/aifightclub/arena/internal/models"
)

const evaluatorInstructions = `You are an expert evaluator for a learning platform where users sharpen their thinking by answering challenges.
Score the user's responses on a 0-100 scale and return ONLY a JSON object with this shape:
{"score": <int 0-100>, "feedback": <string>, "strengths": [<string>], "areas_for_improvement": [<string>], "metrics": {"clarity": <int 0-100>, "reasoning": <int 0-100>, "originality": <int 0-100>}, "growth_data": {"recommended_focus_areas": [<string>], "skill_deltas": [{"skill": <string>, "delta": <int>}]}}
Be specific and constructive. Reference the user's actual wording in feedback.`

// buildEvaluationPrompt renders the instructions and input for an evaluation
// call. Challenge-type metadata steers the evaluator's emphasis.
func buildEvaluationPrompt(challenge *models.Challenge, responses []models.ChallengeResponse) (instructions, input string) {
	var b strings.Builder

	fmt.Fprintf(&b, "Challenge: %s\n", challenge.Title)
	if challenge.ChallengeType != "" {
		fmt.Fprintf(&b, "Challenge type: %s\n", challenge.ChallengeType)
	}
	if challenge.FocusArea != "" {
		fmt.Fprintf(&b, "Focus area: %s\n", challenge.FocusArea)
	}
	if challenge.Difficulty != "" {
		fmt.Fprintf(&b, "Difficulty: %s\n", challenge.Difficulty)
	}
	if challenge.Content != "" {
		fmt.Fprintf(&b, "\nChallenge prompt:\n%s\n", challenge.Content)
	}

	b.WriteString("\nUser responses:\n")
	for i, response := range responses {
		if response.Question != "" {
			fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n", i+1, response.Question, response.Answer)
		} else {
			fmt.Fprintf(&b, "%d. %s\n", i+1, response.Answer)
		}
	}

	return evaluatorInstructions, b.String()
}
