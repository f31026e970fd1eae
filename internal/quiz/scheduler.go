package quiz

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/verte-zerg/azdrill/internal/model"
)

// Outcome classifies a submitted answer.
type Outcome int

const (
	OutcomeCorrect Outcome = iota + 1
	OutcomeIncorrect
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCorrect:
		return "correct"
	case OutcomeIncorrect:
		return "incorrect"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Pending tracks the consecutive correct answers an item still needs.
type Pending struct {
	Required int
	Streak   int
}

// Answer is the scheduler's verdict on a submission.
type Answer struct {
	Outcome  Outcome
	Index    int
	Item     model.QuizItem
	Pending  Pending
	Retired  []int
	Accepted string
}

// Scheduler drives the adaptive quiz over a working set of items.
type Scheduler struct {
	items     []model.QuizItem
	remaining map[int]struct{}
	pending   map[int]*Pending
	values    map[model.Key]map[string]struct{}
	submitted map[model.Key]map[string]struct{}
	active    int
	rnd       *rand.Rand
}

// NewScheduler starts a scheduling phase over items.
func NewScheduler(items []model.QuizItem, rnd *rand.Rand) *Scheduler {
	s := &Scheduler{
		items:     items,
		remaining: make(map[int]struct{}, len(items)),
		pending:   make(map[int]*Pending, len(items)),
		values:    map[model.Key]map[string]struct{}{},
		submitted: map[model.Key]map[string]struct{}{},
		active:    -1,
		rnd:       rnd,
	}
	for i, item := range items {
		s.remaining[i] = struct{}{}
		s.pending[i] = &Pending{Required: 1}
		if s.values[item.Key] == nil {
			s.values[item.Key] = map[string]struct{}{}
		}
		s.values[item.Key][fold(item.Value)] = struct{}{}
	}
	return s
}

// Next returns the active item index, choosing one at random among the
// remaining items when none is active. ok is false once all items retired.
func (s *Scheduler) Next() (int, bool) {
	if len(s.remaining) == 0 {
		return -1, false
	}
	if _, ok := s.remaining[s.active]; ok {
		return s.active, true
	}
	indices := s.remainingIndices()
	s.active = indices[s.rnd.Intn(len(indices))]
	return s.active, true
}

// Submit grades answer against the item at index.
func (s *Scheduler) Submit(index int, answer string) (Answer, error) {
	if _, ok := s.remaining[index]; !ok {
		return Answer{}, fmt.Errorf("item %d: %w", index, ErrInvalidSelection)
	}
	item := s.items[index]
	p := s.pending[index]
	got := fold(answer)
	result := Answer{Index: index, Item: item}

	_, known := s.values[item.Key][got]
	_, already := s.submitted[item.Key][got]
	switch {
	case got != "" && got == fold(item.Value):
		result.Outcome = OutcomeCorrect
	case known && already:
		result.Outcome = OutcomeDuplicate
		result.Pending = *p
		return result, nil
	case known:
		result.Outcome = OutcomeCorrect
	default:
		result.Outcome = OutcomeIncorrect
	}
	s.active = -1

	if result.Outcome == OutcomeIncorrect {
		p.Required = max(2, p.Required*2)
		p.Streak = 0
		result.Pending = *p
		return result, nil
	}

	p.Streak++
	result.Pending = *p
	result.Accepted = got
	if s.submitted[item.Key] == nil {
		s.submitted[item.Key] = map[string]struct{}{}
	}
	s.submitted[item.Key][got] = struct{}{}
	// A key whose every value was accepted retires with all its items,
	// whatever their streaks.
	if len(s.submitted[item.Key]) >= len(s.values[item.Key]) {
		for _, i := range s.remainingIndices() {
			if s.items[i].Key == item.Key {
				result.Retired = append(result.Retired, i)
				s.retire(i)
			}
		}
		return result, nil
	}
	if p.Streak >= p.Required {
		result.Retired = append(result.Retired, index)
		s.retire(index)
	}
	return result, nil
}

// Pending returns the streak state of a remaining item.
func (s *Scheduler) Pending(index int) (Pending, bool) {
	if _, ok := s.remaining[index]; !ok {
		return Pending{}, false
	}
	return *s.pending[index], true
}

// Progress returns how many distinct values of key were accepted so far and
// how many the key has.
func (s *Scheduler) Progress(key model.Key) (submitted, total int) {
	return len(s.submitted[key]), len(s.values[key])
}

// Remaining returns the number of items not yet retired.
func (s *Scheduler) Remaining() int {
	return len(s.remaining)
}

// Done reports whether every item retired.
func (s *Scheduler) Done() bool {
	return len(s.remaining) == 0
}

func (s *Scheduler) retire(index int) {
	delete(s.remaining, index)
	delete(s.pending, index)
	if s.active == index {
		s.active = -1
	}
}

func (s *Scheduler) remainingIndices() []int {
	indices := make([]int, 0, len(s.remaining))
	for i := range s.remaining {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	return indices
}
