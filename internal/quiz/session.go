package quiz

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/azdrill/internal/model"
)

const (
	// DefaultBatchSize is the number of items shown per practice page.
	DefaultBatchSize = 4
	// DefaultReviewCooldown is how long answers stay disabled after a review.
	DefaultReviewCooldown = 45 * time.Second
	// StatusCompleted is recorded when a session finishes.
	StatusCompleted = "Completed"
)

// ItemStore loads and saves the A-Z mapping.
type ItemStore interface {
	Load(ctx context.Context) (model.Mapping, error)
	Save(ctx context.Context, m model.Mapping) error
}

// ResultsSink records completed sessions.
type ResultsSink interface {
	Record(ctx context.Context, label, status string) error
}

// Options configures a session.
type Options struct {
	Label           string
	BatchSize       int
	ReviewThreshold int
	ReviewCooldown  time.Duration
	Rand            *rand.Rand
	Now             func() time.Time
}

// OptionsFromConfig builds session options from resolved settings.
func OptionsFromConfig(cfg model.Config) Options {
	return Options{
		Label:           cfg.Sheet,
		BatchSize:       cfg.BatchSize,
		ReviewThreshold: cfg.ReviewThreshold,
		ReviewCooldown:  cfg.ReviewCooldown,
	}
}

// Prompt describes the question currently awaiting an answer.
type Prompt struct {
	Phase     model.Phase
	Index     int
	Key       model.Key
	Values    []string
	Required  int
	Streak    int
	Submitted int
	Total     int
	Position  int
	Count     int
}

// Feedback is the result of a single submitted answer.
type Feedback struct {
	Outcome     Outcome
	Phase       model.Phase
	Item        model.QuizItem
	Key         model.Key
	Expected    string
	Pending     Pending
	Retired     int
	Remaining   int
	Restarted   bool
	Review      []model.QuizItem
	ReviewUntil time.Time
	Completed   bool
	Saved       bool
	Warning     error
}

// Snapshot is the observable state rendered by the presentation adapters.
type Snapshot struct {
	ID                string
	Label             string
	Phase             model.Phase
	Mode              model.Mode
	ShouldSaveResults bool
	Items             int
	Practice          []model.QuizItem
	PracticeFrom      int
	Prompt            *Prompt
	Remaining         int
	FinalIndex        int
	FinalTotal        int
	ReviewUntil       time.Time
}

// Session is the phase state machine for one pass over the item set.
type Session struct {
	id         string
	label      string
	items      []model.QuizItem
	sink       ResultsSink
	batchSize  int
	threshold  int
	cooldown   time.Duration
	rnd        *rand.Rand
	now        func() time.Time
	phase      model.Phase
	mode       model.Mode
	shouldSave bool
	recorded   bool

	practiceCursor int

	sched      *Scheduler
	quizReview *ReviewTrigger

	finalKeys   []model.Key
	finalIndex  int
	finalReview *ReviewTrigger

	reviewUntil time.Time
}

// Start loads the mapping from store and opens a session in stage selection.
func Start(ctx context.Context, store ItemStore, sink ResultsSink, opts Options) (*Session, error) {
	m, err := store.Load(ctx)
	if err != nil {
		return nil, &CollaboratorError{Op: "load items", Err: err}
	}
	return New(BuildItems(m), sink, opts)
}

// New opens a session over items. It returns ErrNoData when items is empty.
func New(items []model.QuizItem, sink ResultsSink, opts Options) (*Session, error) {
	if len(items) == 0 {
		return nil, ErrNoData
	}
	s := &Session{
		id:        uuid.NewString(),
		label:     opts.Label,
		items:     items,
		sink:      sink,
		batchSize: opts.BatchSize,
		threshold: opts.ReviewThreshold,
		cooldown:  opts.ReviewCooldown,
		rnd:       opts.Rand,
		now:       opts.Now,
		phase:     model.PhaseStageSelect,
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.cooldown < 0 {
		s.cooldown = 0
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Label returns the label recorded on completion.
func (s *Session) Label() string { return s.label }

// Phase returns the active phase.
func (s *Session) Phase() model.Phase { return s.phase }

// Mode returns the selected mode, zero before selection.
func (s *Session) Mode() model.Mode { return s.mode }

// Review returns every item of the session, not only the remaining ones.
func (s *Session) Review() []model.QuizItem {
	out := make([]model.QuizItem, len(s.items))
	copy(out, s.items)
	return out
}

// SelectStage chooses the mode and enters its first phase.
func (s *Session) SelectStage(mode model.Mode) error {
	if s.phase != model.PhaseStageSelect {
		return fmt.Errorf("select stage in %s: %w", s.phase, ErrWrongPhase)
	}
	if !mode.Valid() {
		return fmt.Errorf("stage %v: %w", mode, ErrInvalidSelection)
	}
	s.mode = mode
	s.shouldSave = mode != model.ModePracticeOnly
	switch mode {
	case model.ModePracticeOnly, model.ModeAllStages:
		s.phase = model.PhasePractice
		s.practiceCursor = 0
	case model.ModeQuizOnly:
		s.enterQuiz()
	case model.ModeFinalOnly:
		s.enterFinal()
	}
	return nil
}

// PracticeBatch returns the items on the current practice page.
func (s *Session) PracticeBatch() ([]model.QuizItem, error) {
	if s.phase != model.PhasePractice {
		return nil, fmt.Errorf("practice batch in %s: %w", s.phase, ErrWrongPhase)
	}
	end := min(s.practiceCursor+s.batchSize, len(s.items))
	return s.items[s.practiceCursor:end], nil
}

// Advance moves to the next practice page, leaving practice after the last one.
func (s *Session) Advance() error {
	if s.phase != model.PhasePractice {
		return fmt.Errorf("advance in %s: %w", s.phase, ErrWrongPhase)
	}
	s.practiceCursor += s.batchSize
	if s.practiceCursor < len(s.items) {
		return nil
	}
	if s.mode == model.ModePracticeOnly {
		s.phase = model.PhaseDone
		return nil
	}
	s.enterQuiz()
	return nil
}

// Prompt returns the question awaiting an answer in the quiz or final phase.
func (s *Session) Prompt() (Prompt, error) {
	switch s.phase {
	case model.PhaseQuiz:
		index, ok := s.sched.Next()
		if !ok {
			return Prompt{}, fmt.Errorf("quiz has no remaining items: %w", ErrWrongPhase)
		}
		item := s.items[index]
		p, _ := s.sched.Pending(index)
		submitted, total := s.sched.Progress(item.Key)
		return Prompt{
			Phase:     s.phase,
			Index:     index,
			Key:       item.Key,
			Required:  p.Required,
			Streak:    p.Streak,
			Submitted: submitted,
			Total:     total,
			Position:  len(s.items) - s.sched.Remaining() + 1,
			Count:     len(s.items),
		}, nil
	case model.PhaseFinalReview:
		key := s.finalKeys[s.finalIndex]
		return Prompt{
			Phase:    s.phase,
			Key:      key,
			Values:   ValuesFor(s.items, key),
			Position: s.finalIndex + 1,
			Count:    len(s.finalKeys),
		}, nil
	default:
		return Prompt{}, fmt.Errorf("prompt in %s: %w", s.phase, ErrWrongPhase)
	}
}

// ReviewRemaining returns how long answers stay disabled, zero when enabled.
func (s *Session) ReviewRemaining() time.Duration {
	now := s.now()
	if now.Before(s.reviewUntil) {
		return s.reviewUntil.Sub(now)
	}
	return 0
}

// Submit grades an answer for the active prompt.
func (s *Session) Submit(ctx context.Context, answer string) (Feedback, error) {
	if s.phase != model.PhaseQuiz && s.phase != model.PhaseFinalReview {
		return Feedback{}, fmt.Errorf("submit in %s: %w", s.phase, ErrWrongPhase)
	}
	if s.ReviewRemaining() > 0 {
		return Feedback{ReviewUntil: s.reviewUntil, Phase: s.phase}, ErrReviewCooldown
	}
	if s.phase == model.PhaseQuiz {
		return s.submitQuiz(ctx, answer)
	}
	return s.submitFinal(ctx, answer), nil
}

// Snapshot captures the observable session state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		ID:                s.id,
		Label:             s.label,
		Phase:             s.phase,
		Mode:              s.mode,
		ShouldSaveResults: s.shouldSave,
		Items:             len(s.items),
		ReviewUntil:       s.reviewUntil,
		FinalIndex:        s.finalIndex,
		FinalTotal:        len(s.finalKeys),
	}
	if batch, err := s.PracticeBatch(); err == nil {
		snap.Practice = batch
		snap.PracticeFrom = s.practiceCursor
	}
	if s.sched != nil {
		snap.Remaining = s.sched.Remaining()
	}
	if p, err := s.Prompt(); err == nil {
		snap.Prompt = &p
	}
	return snap
}

func (s *Session) submitQuiz(ctx context.Context, answer string) (Feedback, error) {
	index, ok := s.sched.Next()
	if !ok {
		return Feedback{}, fmt.Errorf("quiz has no remaining items: %w", ErrWrongPhase)
	}
	res, err := s.sched.Submit(index, answer)
	if err != nil {
		return Feedback{}, err
	}
	fb := Feedback{
		Outcome:   res.Outcome,
		Phase:     s.phase,
		Item:      res.Item,
		Key:       res.Item.Key,
		Expected:  res.Item.Value,
		Pending:   res.Pending,
		Retired:   len(res.Retired),
		Remaining: s.sched.Remaining(),
	}
	switch res.Outcome {
	case OutcomeCorrect:
		s.quizReview.Hit()
	case OutcomeIncorrect:
		if s.quizReview.Miss() {
			s.openReview(&fb)
		}
	}
	if s.sched.Done() {
		if s.mode == model.ModeQuizOnly {
			s.complete(ctx, &fb)
		} else {
			s.enterFinal()
		}
		fb.Phase = s.phase
	}
	return fb, nil
}

func (s *Session) submitFinal(ctx context.Context, answer string) Feedback {
	key := s.finalKeys[s.finalIndex]
	fb := Feedback{
		Phase:    s.phase,
		Key:      key,
		Expected: string(key),
	}
	if fold(answer) != fold(string(key)) {
		fb.Outcome = OutcomeIncorrect
		fb.Restarted = true
		s.finalIndex = 0
		if s.finalReview.Miss() {
			s.openReview(&fb)
		}
		fb.Remaining = len(s.finalKeys)
		return fb
	}
	fb.Outcome = OutcomeCorrect
	s.finalReview.Hit()
	s.finalIndex++
	fb.Remaining = len(s.finalKeys) - s.finalIndex
	if s.finalIndex >= len(s.finalKeys) {
		s.complete(ctx, &fb)
		fb.Phase = s.phase
	}
	return fb
}

func (s *Session) openReview(fb *Feedback) {
	fb.Review = s.Review()
	if s.cooldown > 0 {
		s.reviewUntil = s.now().Add(s.cooldown)
		fb.ReviewUntil = s.reviewUntil
	}
}

func (s *Session) enterQuiz() {
	s.phase = model.PhaseQuiz
	s.sched = NewScheduler(s.items, s.rnd)
	s.quizReview = NewReviewTrigger(s.threshold)
}

func (s *Session) enterFinal() {
	s.phase = model.PhaseFinalReview
	s.finalKeys = FinalKeys(s.items)
	s.finalIndex = 0
	s.finalReview = NewReviewTrigger(s.threshold)
}

func (s *Session) complete(ctx context.Context, fb *Feedback) {
	s.phase = model.PhaseDone
	fb.Completed = true
	if !s.shouldSave || s.recorded || s.sink == nil {
		return
	}
	s.recorded = true
	if err := s.sink.Record(ctx, s.label, StatusCompleted); err != nil {
		fb.Warning = &CollaboratorError{Op: "record result", Err: err}
		return
	}
	fb.Saved = true
}
