package sets

import (
	"fmt"
	"math/rand"
)

// Question is one multiple-choice item. The question text doubles as
// its identifier for answered-state lookups, matching the source feed
// which carries no stable ids.
type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// QuestionSet is a named, ordered collection of questions. Name may be
// empty; display falls back to a positional label.
type QuestionSet struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// DisplayName resolves the label shown for a set: its own name, or
// "Set N" when the feed left it null or blank.
func DisplayName(set QuestionSet, index int) string {
	if set.Name != "" {
		return set.Name
	}
	return fmt.Sprintf("Set %d", index+1)
}

// ShuffledOptions returns the question's options in a random display
// order without touching the underlying set.
func ShuffledOptions(q Question) []string {
	out := make([]string, len(q.Options))
	copy(out, q.Options)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
