package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nocdn/mcqsr/internal/sets"
	"github.com/nocdn/mcqsr/internal/store"
)

type fakeRegistry struct {
	sets []sets.QuestionSet
	gen  uint64
}

func (f *fakeRegistry) Current(context.Context) []sets.QuestionSet { return f.sets }
func (f *fakeRegistry) Generation() uint64                         { return f.gen }

type countingStore struct {
	*store.MemoryStore
	writes map[string]int
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: store.NewMemoryStore(), writes: make(map[string]int)}
}

func (c *countingStore) Set(ctx context.Context, key, value string) error {
	c.writes[key]++
	return c.MemoryStore.Set(ctx, key, value)
}

func twoSetRegistry() *fakeRegistry {
	return &fakeRegistry{sets: []sets.QuestionSet{
		{Name: "Networking", Questions: []sets.Question{
			{Question: "Q1", Options: []string{"A", "B", "C"}, Answer: "B"},
			{Question: "Q2", Options: []string{"A", "B"}, Answer: "A"},
		}},
		{Name: "Storage", Questions: []sets.Question{
			{Question: "Q3", Options: []string{"X", "Y"}, Answer: "Y"},
		}},
	}}
}

func newTestController(st store.Store, reg Registry) *Controller {
	c := NewController(st, reg, Config{})
	c.transitionDelay = 0
	return c
}

func mustGet(t *testing.T, st store.Store, key string) string {
	t.Helper()
	v, ok, err := st.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("expected %s to be stored (ok=%v err=%v)", key, ok, err)
	}
	return v
}

func storedPos(t *testing.T, st store.Store) storedPosition {
	t.Helper()
	var pos storedPosition
	if err := json.Unmarshal([]byte(mustGet(t, st, keyPosition)), &pos); err != nil {
		t.Fatalf("malformed stored position: %v", err)
	}
	return pos
}

func TestRestoreNoPersistedState(t *testing.T) {
	st := store.NewMemoryStore()
	c := newTestController(st, twoSetRegistry())

	got := c.State(context.Background(), false)
	if got.SetIndex != 0 || got.QuestionIndex != 0 {
		t.Fatalf("expected position (0,0), got (%d,%d)", got.SetIndex, got.QuestionIndex)
	}
	if got.Question == nil || got.Question.Question != "Q1" {
		t.Fatalf("expected current question Q1, got %+v", got.Question)
	}
	if v := mustGet(t, st, keyLastSet); v != "0" {
		t.Fatalf("expected lastSelectedSet=0, got %q", v)
	}
	if pos := storedPos(t, st); pos.SetID != 0 || pos.QuestionID != 0 {
		t.Fatalf("expected stored position {0,0}, got %+v", pos)
	}
}

func TestRestoreValidPositionShowsNotice(t *testing.T) {
	st := store.NewMemoryStore()
	_ = st.Set(context.Background(), keyLastSet, "0")
	_ = st.Set(context.Background(), keyPosition, `{"setId":0,"questionId":1}`)

	c := newTestController(st, twoSetRegistry())
	base := time.Now()
	c.now = func() time.Time { return base }

	got := c.State(context.Background(), false)
	if got.SetIndex != 0 || got.QuestionIndex != 1 {
		t.Fatalf("expected restored position (0,1), got (%d,%d)", got.SetIndex, got.QuestionIndex)
	}
	if !got.ProgressRestored {
		t.Fatalf("expected restore notice to be visible")
	}

	c.now = func() time.Time { return base.Add(2 * time.Second) }
	if got := c.State(context.Background(), false); got.ProgressRestored {
		t.Fatalf("expected restore notice to auto-dismiss")
	}
}

func TestRestoreZeroPositionNoNotice(t *testing.T) {
	st := store.NewMemoryStore()
	_ = st.Set(context.Background(), keyLastSet, "0")
	_ = st.Set(context.Background(), keyPosition, `{"setId":0,"questionId":0}`)

	c := newTestController(st, twoSetRegistry())
	if got := c.State(context.Background(), false); got.ProgressRestored {
		t.Fatalf("restoring index 0 should not raise the notice")
	}
}

func TestRestoreOutOfRangeSetIndex(t *testing.T) {
	tests := []struct {
		name   string
		stored string
	}{
		{name: "too large", stored: "5"},
		{name: "negative", stored: "-1"},
		{name: "not a number", stored: "abc"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			_ = st.Set(context.Background(), keyLastSet, tc.stored)

			c := newTestController(st, twoSetRegistry())
			got := c.State(context.Background(), false)
			if got.SetIndex != 0 {
				t.Fatalf("expected fallback to set 0, got %d", got.SetIndex)
			}
			if v := mustGet(t, st, keyLastSet); v != "0" {
				t.Fatalf("expected corrected lastSelectedSet=0, got %q", v)
			}
		})
	}
}

func TestRestoreMismatchedPositionResets(t *testing.T) {
	st := store.NewMemoryStore()
	_ = st.Set(context.Background(), keyLastSet, "1")
	_ = st.Set(context.Background(), keyPosition, `{"setId":0,"questionId":1}`)

	c := newTestController(st, twoSetRegistry())
	got := c.State(context.Background(), false)
	if got.SetIndex != 1 || got.QuestionIndex != 0 {
		t.Fatalf("expected (1,0), got (%d,%d)", got.SetIndex, got.QuestionIndex)
	}
	if pos := storedPos(t, st); pos.SetID != 1 || pos.QuestionID != 0 {
		t.Fatalf("expected rewritten position {1,0}, got %+v", pos)
	}
}

func TestRestoreOutOfRangeQuestionResets(t *testing.T) {
	st := store.NewMemoryStore()
	_ = st.Set(context.Background(), keyLastSet, "0")
	_ = st.Set(context.Background(), keyPosition, `{"setId":0,"questionId":9}`)

	c := newTestController(st, twoSetRegistry())
	if got := c.State(context.Background(), false); got.QuestionIndex != 0 {
		t.Fatalf("expected question index reset to 0, got %d", got.QuestionIndex)
	}
	if pos := storedPos(t, st); pos.SetID != 0 || pos.QuestionID != 0 {
		t.Fatalf("expected rewritten position {0,0}, got %+v", pos)
	}
}

func TestRestoreMalformedValues(t *testing.T) {
	st := store.NewMemoryStore()
	_ = st.Set(context.Background(), keyAnswered, "{not json")
	_ = st.Set(context.Background(), keyPosition, "{{{")

	c := newTestController(st, twoSetRegistry())
	got := c.State(context.Background(), false)
	if got.QuestionIndex != 0 || got.AnsweredCount != 0 {
		t.Fatalf("malformed values should read as absent, got %+v", got)
	}
	if pos := storedPos(t, st); pos.SetID != 0 || pos.QuestionID != 0 {
		t.Fatalf("expected corrected position, got %+v", pos)
	}
}

func TestRestoreEmptyRegistryClearsKeys(t *testing.T) {
	st := store.NewMemoryStore()
	_ = st.Set(context.Background(), keyLastSet, "1")
	_ = st.Set(context.Background(), keyPosition, `{"setId":1,"questionId":0}`)

	c := newTestController(st, &fakeRegistry{})
	got := c.State(context.Background(), false)
	if got.SetIndex != 0 || got.QuestionIndex != 0 || got.Question != nil {
		t.Fatalf("expected empty default state, got %+v", got)
	}
	for _, key := range []string{keyLastSet, keyPosition} {
		if _, ok, _ := st.Get(context.Background(), key); ok {
			t.Fatalf("expected %s to be removed", key)
		}
	}
}

func TestAnsweredListRestored(t *testing.T) {
	st := store.NewMemoryStore()
	_ = st.Set(context.Background(), keyAnswered, `["Q1","Q2"]`)

	c := newTestController(st, twoSetRegistry())
	got := c.State(context.Background(), false)
	if got.AnsweredCount != 2 {
		t.Fatalf("expected 2 answered questions, got %d", got.AnsweredCount)
	}
	if !c.IsAnswered("Q1") || !c.IsAnswered("Q2") || c.IsAnswered("Q3") {
		t.Fatalf("answered membership mismatch")
	}
}

func TestAdvanceRetreatClamped(t *testing.T) {
	st := store.NewMemoryStore()
	c := newTestController(st, twoSetRegistry())

	if got := c.Advance(context.Background()); got.QuestionIndex != 1 {
		t.Fatalf("expected advance to 1, got %d", got.QuestionIndex)
	}
	if got := c.Advance(context.Background()); got.QuestionIndex != 1 {
		t.Fatalf("advance past last question should be a no-op, got %d", got.QuestionIndex)
	}
	if got := c.Retreat(context.Background()); got.QuestionIndex != 0 {
		t.Fatalf("expected retreat to 0, got %d", got.QuestionIndex)
	}
	if got := c.Retreat(context.Background()); got.QuestionIndex != 0 {
		t.Fatalf("retreat at index 0 should be a no-op, got %d", got.QuestionIndex)
	}
}

func TestNavigationSingleFlight(t *testing.T) {
	reg := &fakeRegistry{sets: []sets.QuestionSet{
		{Questions: []sets.Question{
			{Question: "Q1", Options: []string{"A"}, Answer: "A"},
			{Question: "Q2", Options: []string{"A"}, Answer: "A"},
			{Question: "Q3", Options: []string{"A"}, Answer: "A"},
		}},
	}}
	st := store.NewMemoryStore()
	c := NewController(st, reg, Config{TransitionDelay: 100 * time.Millisecond})
	base := time.Now()
	c.now = func() time.Time { return base }

	if got := c.Advance(context.Background()); got.QuestionIndex != 1 {
		t.Fatalf("first advance should move, got %d", got.QuestionIndex)
	}
	if got := c.Advance(context.Background()); got.QuestionIndex != 1 {
		t.Fatalf("advance inside the transition window should be ignored, got %d", got.QuestionIndex)
	}

	base = base.Add(150 * time.Millisecond)
	if got := c.Advance(context.Background()); got.QuestionIndex != 2 {
		t.Fatalf("advance after the window should move, got %d", got.QuestionIndex)
	}
}

func TestSelectSetResetsQuestionIndex(t *testing.T) {
	st := store.NewMemoryStore()
	_ = st.Set(context.Background(), keyLastSet, "0")
	_ = st.Set(context.Background(), keyPosition, `{"setId":0,"questionId":1}`)

	c := newTestController(st, twoSetRegistry())
	got, err := c.SelectSet(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SetIndex != 1 || got.QuestionIndex != 0 {
		t.Fatalf("expected (1,0), got (%d,%d)", got.SetIndex, got.QuestionIndex)
	}
	if v := mustGet(t, st, keyLastSet); v != "1" {
		t.Fatalf("expected lastSelectedSet=1, got %q", v)
	}
	if pos := storedPos(t, st); pos.SetID != 1 || pos.QuestionID != 0 {
		t.Fatalf("expected stored position {1,0}, got %+v", pos)
	}
}

func TestSelectSetOutOfRange(t *testing.T) {
	c := newTestController(store.NewMemoryStore(), twoSetRegistry())
	if _, err := c.SelectSet(context.Background(), 5); err != ErrSetOutOfRange {
		t.Fatalf("expected ErrSetOutOfRange, got %v", err)
	}
}

func TestRecordAnswerFirstWins(t *testing.T) {
	st := store.NewMemoryStore()
	c := newTestController(st, twoSetRegistry())

	if _, err := c.RecordAnswer(context.Background(), "Q1", "A"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.RecordAnswer(context.Background(), "Q1", "B"); err != nil {
		t.Fatalf("repeat answer should be a silent no-op: %v", err)
	}

	if v, ok := c.SelectedOptionFor("Q1"); !ok || v != "A" {
		t.Fatalf("expected first answer to stick, got %q ok=%v", v, ok)
	}
	var answered []string
	if err := json.Unmarshal([]byte(mustGet(t, st, keyAnswered)), &answered); err != nil {
		t.Fatalf("malformed answered list: %v", err)
	}
	if len(answered) != 1 || answered[0] != "Q1" {
		t.Fatalf("expected persisted [Q1], got %v", answered)
	}
}

func TestRecordAnswerUnknownQuestion(t *testing.T) {
	c := newTestController(store.NewMemoryStore(), twoSetRegistry())
	if _, err := c.RecordAnswer(context.Background(), "nope", "A"); err != ErrUnknownQuestion {
		t.Fatalf("expected ErrUnknownQuestion, got %v", err)
	}
}

func TestStreakResetsOnWrongAnswer(t *testing.T) {
	c := newTestController(store.NewMemoryStore(), twoSetRegistry())

	if got, _ := c.RecordAnswer(context.Background(), "Q1", "B"); got.Streak != 1 {
		t.Fatalf("expected streak 1, got %d", got.Streak)
	}
	if got, _ := c.RecordAnswer(context.Background(), "Q2", "B"); got.Streak != 0 {
		t.Fatalf("expected streak reset on wrong answer, got %d", got.Streak)
	}
}

func TestStreakRollsOverAtTarget(t *testing.T) {
	questions := make([]sets.Question, streakTarget)
	for i := range questions {
		questions[i] = sets.Question{
			Question: "Q" + string(rune('a'+i)),
			Options:  []string{"right", "wrong"},
			Answer:   "right",
		}
	}
	reg := &fakeRegistry{sets: []sets.QuestionSet{{Questions: questions}}}
	c := newTestController(store.NewMemoryStore(), reg)

	var last State
	for _, q := range questions {
		last, _ = c.RecordAnswer(context.Background(), q.Question, "right")
	}
	if last.Streak != 0 {
		t.Fatalf("expected streak to roll over at %d, got %d", streakTarget, last.Streak)
	}
}

func TestPositionWriteSkippedWhenUnchanged(t *testing.T) {
	st := newCountingStore()
	c := newTestController(st, twoSetRegistry())

	c.State(context.Background(), false)
	if st.writes[keyPosition] != 1 {
		t.Fatalf("expected exactly one position write on restore, got %d", st.writes[keyPosition])
	}

	c.State(context.Background(), false)
	if _, err := c.SelectSet(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.writes[keyPosition] != 1 {
		t.Fatalf("re-persisting an unchanged position should be skipped, got %d writes", st.writes[keyPosition])
	}

	c.Advance(context.Background())
	if st.writes[keyPosition] != 2 {
		t.Fatalf("expected a write after a real move, got %d", st.writes[keyPosition])
	}
}

func TestResetAnswers(t *testing.T) {
	st := store.NewMemoryStore()
	c := newTestController(st, twoSetRegistry())

	_, _ = c.RecordAnswer(context.Background(), "Q1", "B")
	got := c.ResetAnswers(context.Background())
	if got.AnsweredCount != 0 || got.Streak != 0 {
		t.Fatalf("expected cleared ledger, got %+v", got)
	}
	if c.IsAnswered("Q1") {
		t.Fatalf("Q1 should be answerable again")
	}
	if _, ok, _ := st.Get(context.Background(), keyAnswered); ok {
		t.Fatalf("expected %s to be removed", keyAnswered)
	}
}

func TestResetProgress(t *testing.T) {
	st := store.NewMemoryStore()
	c := newTestController(st, twoSetRegistry())

	c.Advance(context.Background())
	got := c.ResetProgress(context.Background())
	if got.QuestionIndex != 0 {
		t.Fatalf("expected question index 0, got %d", got.QuestionIndex)
	}
	if _, ok, _ := st.Get(context.Background(), keyPosition); ok {
		t.Fatalf("expected %s to be removed", keyPosition)
	}
}

func TestCorrectnessStatuses(t *testing.T) {
	c := newTestController(store.NewMemoryStore(), twoSetRegistry())

	before := c.State(context.Background(), false)
	for _, opt := range before.Question.Options {
		if opt.Status != StatusDefault {
			t.Fatalf("option %q should be default before answering, got %s", opt.Label, opt.Status)
		}
	}

	got, _ := c.RecordAnswer(context.Background(), "Q1", "A")
	want := map[string]string{"A": StatusIncorrect, "B": StatusCorrect, "C": StatusDefault}
	for _, opt := range got.Question.Options {
		if opt.Status != want[opt.Label] {
			t.Fatalf("option %q: expected %s, got %s", opt.Label, want[opt.Label], opt.Status)
		}
	}
	if !got.Question.Answered || got.Question.Selected != "A" {
		t.Fatalf("expected answered view with selection A, got %+v", got.Question)
	}
}

func TestRegistryReplacementRevalidatesPosition(t *testing.T) {
	st := store.NewMemoryStore()
	reg := twoSetRegistry()
	c := newTestController(st, reg)

	c.Advance(context.Background())
	if pos := storedPos(t, st); pos.QuestionID != 1 {
		t.Fatalf("expected stored position {0,1}, got %+v", pos)
	}

	// The feed shrinks the first set to a single question.
	reg.sets = []sets.QuestionSet{{Questions: []sets.Question{
		{Question: "Q1", Options: []string{"A", "B"}, Answer: "A"},
	}}}
	reg.gen++

	got := c.State(context.Background(), false)
	if got.SetIndex != 0 || got.QuestionIndex != 0 {
		t.Fatalf("expected revalidated position (0,0), got (%d,%d)", got.SetIndex, got.QuestionIndex)
	}
	if pos := storedPos(t, st); pos.SetID != 0 || pos.QuestionID != 0 {
		t.Fatalf("expected corrected stored position, got %+v", pos)
	}
}
