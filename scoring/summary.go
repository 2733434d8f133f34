package scoring

import (
	"fmt"
	"strings"

	"votematch/models"
)

const (
	emptySummary          = "No preferences recorded yet."
	maxStatementsPerTopic = 3
)

// GetUserPreferencesSummary renders a plain-text digest of a user's answers,
// one line per topic in the order topics were first answered.
func GetUserPreferencesSummary(profile models.UserProfile) string {
	if len(profile.Answers) == 0 {
		return emptySummary
	}

	var order []string
	byTopic := make(map[string][]string)
	for _, a := range profile.Answers {
		if _, seen := byTopic[a.Topic]; !seen {
			order = append(order, a.Topic)
		}
		item := a.Statement
		if !a.Agree {
			item = "disagrees with: " + a.Statement
		}
		byTopic[a.Topic] = append(byTopic[a.Topic], item)
	}

	lines := make([]string, 0, len(order))
	for _, topic := range order {
		items := byTopic[topic]
		shown := items
		if len(items) > maxStatementsPerTopic {
			shown = items[:maxStatementsPerTopic]
		}
		line := fmt.Sprintf("%s: %s", topic, strings.Join(shown, "; "))
		if extra := len(items) - len(shown); extra > 0 {
			line += fmt.Sprintf(" (and %d more)", extra)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
