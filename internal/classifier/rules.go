package classifier

import (
	"strings"

	"github.com/sortdesk/mailtriage/internal/feature"
	"github.com/sortdesk/mailtriage/internal/model"
)

// Keyword lists for the pre-training fallback ranking.
var (
	urgentKeywords      = []string{"urgent", "asap", "deadline", "action required"}
	serviceKeywords     = []string{"invoice", "meeting", "support", "request"}
	lowPriorityKeywords = []string{"offer", "sale", "newsletter", "unsubscribe"}
)

// RuleRank scores text against the keyword lists and maps the score onto a
// priority label. It serves as the classifier until the first training run
// produces a model.
func RuleRank(text string) model.Label {
	t := feature.Clean(text)

	score := 0
	for _, w := range urgentKeywords {
		if strings.Contains(t, w) {
			score += 3
		}
	}
	for _, w := range serviceKeywords {
		if strings.Contains(t, w) {
			score += 2
		}
	}
	for _, w := range lowPriorityKeywords {
		if strings.Contains(t, w) {
			score -= 3
		}
	}

	switch {
	case score >= 3:
		return model.LabelHigh
	case score >= 1:
		return model.LabelMedium
	default:
		return model.LabelLow
	}
}
