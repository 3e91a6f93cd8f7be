package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nocdn/mcqsr/internal/sets"
	"github.com/nocdn/mcqsr/internal/store"
)

// Storage keys. Kept bit-exact for compatibility with state persisted
// by earlier installations.
const (
	keyAnswered = "answeredQuestions"
	keyLastSet  = "lastSelectedSet"
	keyPosition = "lastKnownPosition"
)

const streakTarget = 10

var (
	ErrSetOutOfRange   = errors.New("set index out of range")
	ErrUnknownQuestion = errors.New("question not in active set")
)

// Registry is the read side of the set registry the controller
// validates its position against.
type Registry interface {
	Current(ctx context.Context) []sets.QuestionSet
	Generation() uint64
}

type Config struct {
	// TransitionDelay is how long a navigation holds the single-flight
	// guard; further navigation inside the window is ignored.
	TransitionDelay time.Duration
	// RestoreNotice is how long the "progress restored" notice stays
	// visible after a successful non-zero restoration.
	RestoreNotice time.Duration
}

// Controller owns the session position and the answer ledger, and
// mirrors both into the store. All mutation goes through its methods;
// the mutex stands in for the single event thread of the original
// browser client.
type Controller struct {
	mu       sync.Mutex
	store    store.Store
	registry Registry

	transitionDelay time.Duration
	restoreNotice   time.Duration
	now             func() time.Time

	loaded bool
	synced bool
	gen    uint64

	setIndex      int
	questionIndex int

	answered    []string
	answeredSet map[string]struct{}
	selected    map[string]string
	streak      int

	transitionUntil time.Time
	restoredUntil   time.Time
}

type storedPosition struct {
	SetID      int `json:"setId"`
	QuestionID int `json:"questionId"`
}

func NewController(st store.Store, registry Registry, cfg Config) *Controller {
	delay := cfg.TransitionDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	notice := cfg.RestoreNotice
	if notice <= 0 {
		notice = time.Second
	}
	return &Controller{
		store:           st,
		registry:        registry,
		transitionDelay: delay,
		restoreNotice:   notice,
		now:             time.Now,
		answeredSet:     make(map[string]struct{}),
		selected:        make(map[string]string),
	}
}

// ensureLocked returns the current registry, re-running restoration
// whenever the registry was replaced since the last call. Restoration
// always reads the freshly loaded list, never a stale one.
func (c *Controller) ensureLocked(ctx context.Context) []sets.QuestionSet {
	cur := c.registry.Current(ctx)
	if gen := c.registry.Generation(); !c.synced || gen != c.gen {
		c.restoreLocked(ctx, cur)
		c.gen = gen
		c.synced = true
	}
	return cur
}

func (c *Controller) restoreLocked(ctx context.Context, fetched []sets.QuestionSet) {
	if !c.loaded {
		c.loadAnsweredLocked(ctx)
		c.loaded = true
	}

	if len(fetched) == 0 {
		c.setIndex, c.questionIndex = 0, 0
		c.deleteKey(ctx, keyLastSet)
		c.deleteKey(ctx, keyPosition)
		return
	}

	setIdx := 0
	raw, ok, err := c.store.Get(ctx, keyLastSet)
	if err != nil {
		log.Printf("session: read %s: %v", keyLastSet, err)
		ok = false
	}
	if ok {
		parsed, perr := strconv.Atoi(strings.TrimSpace(raw))
		if perr == nil && parsed >= 0 && parsed < len(fetched) {
			setIdx = parsed
		} else {
			c.setKey(ctx, keyLastSet, "0")
		}
	} else {
		c.setKey(ctx, keyLastSet, "0")
	}

	qIdx := 0
	restored := false
	rawPos, ok, err := c.store.Get(ctx, keyPosition)
	if err != nil {
		log.Printf("session: read %s: %v", keyPosition, err)
		ok = false
	}
	if ok {
		var pos storedPosition
		if json.Unmarshal([]byte(rawPos), &pos) == nil &&
			pos.SetID == setIdx &&
			pos.QuestionID >= 0 && pos.QuestionID < len(fetched[setIdx].Questions) {
			qIdx = pos.QuestionID
			restored = qIdx > 0
		} else {
			c.writePositionLocked(ctx, setIdx, 0)
		}
	} else {
		c.writePositionLocked(ctx, setIdx, 0)
	}

	c.setIndex, c.questionIndex = setIdx, qIdx
	if restored {
		c.restoredUntil = c.now().Add(c.restoreNotice)
	}
}

func (c *Controller) loadAnsweredLocked(ctx context.Context) {
	c.answeredSet = make(map[string]struct{})
	c.answered = nil

	raw, ok, err := c.store.Get(ctx, keyAnswered)
	if err != nil {
		log.Printf("session: read %s: %v", keyAnswered, err)
		return
	}
	if !ok {
		return
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		// Corrupt entry reads as absent and is overwritten on the
		// next answer.
		log.Printf("session: malformed %s, ignoring", keyAnswered)
		return
	}
	c.answered = list
	for _, q := range list {
		c.answeredSet[q] = struct{}{}
	}
}

// writePositionLocked persists the position, skipping the write when
// the stored value already matches.
func (c *Controller) writePositionLocked(ctx context.Context, setIdx, qIdx int) {
	if raw, ok, err := c.store.Get(ctx, keyPosition); err == nil && ok {
		var stored storedPosition
		if json.Unmarshal([]byte(raw), &stored) == nil &&
			stored.SetID == setIdx && stored.QuestionID == qIdx {
			return
		}
	}
	b, _ := json.Marshal(storedPosition{SetID: setIdx, QuestionID: qIdx})
	c.setKey(ctx, keyPosition, string(b))
}

func (c *Controller) setKey(ctx context.Context, key, value string) {
	if err := c.store.Set(ctx, key, value); err != nil {
		log.Printf("session: write %s: %v", key, err)
	}
}

func (c *Controller) deleteKey(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		log.Printf("session: delete %s: %v", key, err)
	}
}

// State reports the session without mutating it. With shuffleOptions
// the options of a not-yet-answered question come back in a random
// display order; the underlying set is untouched.
func (c *Controller) State(ctx context.Context, shuffleOptions bool) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.ensureLocked(ctx)
	return c.stateLocked(cur, shuffleOptions)
}

// SelectSet activates a set. A user selection always wins over any
// previous position: the question index resets to zero and both keys
// are persisted.
func (c *Controller) SelectSet(ctx context.Context, index int) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.ensureLocked(ctx)
	if index < 0 || index >= len(cur) {
		return c.stateLocked(cur, false), ErrSetOutOfRange
	}
	c.setIndex = index
	c.questionIndex = 0
	c.setKey(ctx, keyLastSet, strconv.Itoa(index))
	c.writePositionLocked(ctx, index, 0)
	return c.stateLocked(cur, false), nil
}

// Advance moves to the next question. Past the last question it is a
// no-op, and a call landing inside the transition window of a previous
// navigation is ignored rather than queued.
func (c *Controller) Advance(ctx context.Context) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.ensureLocked(ctx)
	if c.transitioningLocked() {
		return c.stateLocked(cur, false)
	}
	if qs := c.activeQuestionsLocked(cur); c.questionIndex < len(qs)-1 {
		c.beginTransitionLocked()
		c.questionIndex++
		c.writePositionLocked(ctx, c.setIndex, c.questionIndex)
	}
	return c.stateLocked(cur, false)
}

// Retreat moves to the previous question, clamped at zero.
func (c *Controller) Retreat(ctx context.Context) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.ensureLocked(ctx)
	if c.transitioningLocked() {
		return c.stateLocked(cur, false)
	}
	if c.questionIndex > 0 {
		c.beginTransitionLocked()
		c.questionIndex--
		c.writePositionLocked(ctx, c.setIndex, c.questionIndex)
	}
	return c.stateLocked(cur, false)
}

// RecordAnswer locks in the chosen option for a question. The first
// answer wins: repeat calls, with any option, change nothing.
func (c *Controller) RecordAnswer(ctx context.Context, questionText, option string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.ensureLocked(ctx)

	if _, done := c.answeredSet[questionText]; done {
		return c.stateLocked(cur, false), nil
	}
	q, found := findQuestion(c.activeQuestionsLocked(cur), questionText)
	if !found {
		return c.stateLocked(cur, false), ErrUnknownQuestion
	}

	c.answered = append(c.answered, questionText)
	c.answeredSet[questionText] = struct{}{}
	c.selected[questionText] = option
	c.persistAnsweredLocked(ctx)

	if option == q.Answer {
		c.streak++
		if c.streak == streakTarget {
			log.Printf("session: %d consecutive correct answers", streakTarget)
			c.streak = 0
		}
	} else {
		c.streak = 0
	}
	return c.stateLocked(cur, false), nil
}

// ResetAnswers clears the ledger. Explicit user action only.
func (c *Controller) ResetAnswers(ctx context.Context) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.ensureLocked(ctx)
	c.answered = nil
	c.answeredSet = make(map[string]struct{})
	c.selected = make(map[string]string)
	c.streak = 0
	c.deleteKey(ctx, keyAnswered)
	return c.stateLocked(cur, false)
}

// ResetProgress returns to the first question of the active set and
// drops the persisted position.
func (c *Controller) ResetProgress(ctx context.Context) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.ensureLocked(ctx)
	c.questionIndex = 0
	c.deleteKey(ctx, keyPosition)
	return c.stateLocked(cur, false)
}

// IsAnswered reports whether a question is locked.
func (c *Controller) IsAnswered(questionText string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.answeredSet[questionText]
	return ok
}

// SelectedOptionFor returns the recorded choice, if any.
func (c *Controller) SelectedOptionFor(questionText string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.selected[questionText]
	return v, ok
}

func (c *Controller) persistAnsweredLocked(ctx context.Context) {
	b, _ := json.Marshal(c.answered)
	c.setKey(ctx, keyAnswered, string(b))
}

func (c *Controller) transitioningLocked() bool {
	return c.now().Before(c.transitionUntil)
}

func (c *Controller) beginTransitionLocked() {
	c.transitionUntil = c.now().Add(c.transitionDelay)
}

func (c *Controller) activeQuestionsLocked(cur []sets.QuestionSet) []sets.Question {
	if c.setIndex < 0 || c.setIndex >= len(cur) {
		return nil
	}
	return cur[c.setIndex].Questions
}

func findQuestion(qs []sets.Question, text string) (sets.Question, bool) {
	for _, q := range qs {
		if q.Question == text {
			return q, true
		}
	}
	return sets.Question{}, false
}
