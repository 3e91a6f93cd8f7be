package session

import (
	"github.com/nocdn/mcqsr/internal/sets"
)

// Option correctness statuses. Derived per render, never stored.
const (
	StatusCorrect   = "correct"
	StatusIncorrect = "incorrect"
	StatusDefault   = "default"
)

type OptionView struct {
	Label  string `json:"label"`
	Status string `json:"status"`
}

type QuestionView struct {
	Question string       `json:"question"`
	Number   int          `json:"number"`
	Options  []OptionView `json:"options"`
	Answered bool         `json:"answered"`
	Selected string       `json:"selected,omitempty"`
}

type State struct {
	SetIndex         int           `json:"set_index"`
	SetName          string        `json:"set_name,omitempty"`
	SetCount         int           `json:"set_count"`
	QuestionIndex    int           `json:"question_index"`
	TotalQuestions   int           `json:"total_questions"`
	Question         *QuestionView `json:"question,omitempty"`
	AnsweredCount    int           `json:"answered_count"`
	Streak           int           `json:"streak"`
	ProgressRestored bool          `json:"progress_restored,omitempty"`
}

// correctness implements the derived status: the correct option is
// always "correct", the chosen-but-wrong option is "incorrect", every
// other option stays "default" even after answering.
func correctness(q sets.Question, option, selected string) string {
	switch {
	case option == q.Answer:
		return StatusCorrect
	case option == selected:
		return StatusIncorrect
	default:
		return StatusDefault
	}
}

func (c *Controller) stateLocked(cur []sets.QuestionSet, shuffleOptions bool) State {
	st := State{
		SetIndex:         c.setIndex,
		SetCount:         len(cur),
		QuestionIndex:    c.questionIndex,
		AnsweredCount:    len(c.answered),
		Streak:           c.streak,
		ProgressRestored: c.now().Before(c.restoredUntil),
	}
	if c.setIndex >= 0 && c.setIndex < len(cur) {
		st.SetName = sets.DisplayName(cur[c.setIndex], c.setIndex)
	}

	qs := c.activeQuestionsLocked(cur)
	st.TotalQuestions = len(qs)
	if len(qs) == 0 || c.questionIndex < 0 || c.questionIndex >= len(qs) {
		return st
	}

	q := qs[c.questionIndex]
	_, answered := c.answeredSet[q.Question]
	selected := c.selected[q.Question]

	labels := q.Options
	if shuffleOptions && !answered {
		labels = sets.ShuffledOptions(q)
	}

	view := &QuestionView{
		Question: q.Question,
		Number:   c.questionIndex + 1,
		Answered: answered,
		Selected: selected,
		Options:  make([]OptionView, 0, len(labels)),
	}
	for _, label := range labels {
		status := StatusDefault
		if answered {
			status = correctness(q, label, selected)
		}
		view.Options = append(view.Options, OptionView{Label: label, Status: status})
	}
	st.Question = view
	return st
}
