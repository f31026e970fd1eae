package quiz

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/verte-zerg/azdrill/internal/model"
)

func newTestScheduler(items []model.QuizItem) *Scheduler {
	return NewScheduler(items, rand.New(rand.NewSource(1)))
}

func TestSchedulerMissDoublesRequired(t *testing.T) {
	s := newTestScheduler([]model.QuizItem{{Key: "A", Value: "Apple"}})
	idx, ok := s.Next()
	if !ok || idx != 0 {
		t.Fatalf("expected item 0, got %d (ok=%v)", idx, ok)
	}
	for _, want := range []int{2, 4, 8} {
		res, err := s.Submit(idx, "Orange")
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if res.Outcome != OutcomeIncorrect {
			t.Fatalf("expected incorrect, got %s", res.Outcome)
		}
		if res.Pending.Required != want || res.Pending.Streak != 0 {
			t.Fatalf("expected required=%d streak=0, got %+v", want, res.Pending)
		}
	}
}

func TestSchedulerScenarioB(t *testing.T) {
	s := newTestScheduler([]model.QuizItem{{Key: "A", Value: "Apple"}})
	if _, err := s.Submit(0, "Orange"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	res, err := s.Submit(0, "Apple")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Outcome != OutcomeCorrect || res.Pending.Streak != 1 || res.Pending.Required != 2 {
		t.Fatalf("unexpected first correct answer: %+v", res)
	}
	if len(res.Retired) != 0 || s.Done() {
		t.Fatalf("item retired too early")
	}
	res, err = s.Submit(0, "apple")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Outcome != OutcomeCorrect || len(res.Retired) != 1 {
		t.Fatalf("expected retirement, got %+v", res)
	}
	if !s.Done() {
		t.Fatalf("expected scheduler to be done")
	}
	if _, ok := s.Next(); ok {
		t.Fatalf("expected no next item")
	}
}

func TestSchedulerRetiredItemIsNeverRevisited(t *testing.T) {
	items := []model.QuizItem{{Key: "A", Value: "Apple"}, {Key: "B", Value: "Banana"}, {Key: "C", Value: "Cherry"}}
	s := newTestScheduler(items)
	idx, _ := s.Next()
	if _, err := s.Submit(idx, items[idx].Value); err != nil {
		t.Fatalf("submit: %v", err)
	}
	for i := 0; i < 50; i++ {
		next, ok := s.Next()
		if !ok {
			t.Fatalf("expected remaining items")
		}
		if next == idx {
			t.Fatalf("retired item %d returned again", idx)
		}
	}
	if _, err := s.Submit(idx, items[idx].Value); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection for retired item, got %v", err)
	}
}

func TestSchedulerKeepsActiveUntilAnswered(t *testing.T) {
	items := []model.QuizItem{{Key: "A", Value: "Apple"}, {Key: "B", Value: "Banana"}, {Key: "C", Value: "Cherry"}}
	s := newTestScheduler(items)
	first, _ := s.Next()
	for i := 0; i < 10; i++ {
		if next, _ := s.Next(); next != first {
			t.Fatalf("active item changed before answer: %d != %d", next, first)
		}
	}
}

func TestSchedulerRequiredNeverDecreases(t *testing.T) {
	items := []model.QuizItem{{Key: "A", Value: "Apple"}, {Key: "B", Value: "Banana"}}
	s := newTestScheduler(items)
	last := map[int]int{0: 1, 1: 1}
	answers := []string{"x", "y", "Apple", "Banana", "z", "Apple", "Banana", "Apple", "Banana"}
	for _, answer := range answers {
		idx, ok := s.Next()
		if !ok {
			break
		}
		res, err := s.Submit(idx, answer)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if res.Pending.Required < last[idx] {
			t.Fatalf("required decreased for %d: %d < %d", idx, res.Pending.Required, last[idx])
		}
		last[idx] = res.Pending.Required
		for i := range last {
			if p, ok := s.Pending(i); ok && p.Streak >= p.Required {
				t.Fatalf("remaining item %d has streak %d >= required %d", i, p.Streak, p.Required)
			}
		}
	}
}

func TestSchedulerMultiValueKey(t *testing.T) {
	items := BuildItems(model.Mapping{"A": {"Apple", "Apricot"}, "B": {"Banana"}})
	s := newTestScheduler(items)
	var apple int
	for i, item := range items {
		if item.Value == "Apple" {
			apple = i
		}
	}

	res, err := s.Submit(apple, "APRICOT")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Outcome != OutcomeCorrect {
		t.Fatalf("expected sibling value to count as correct, got %s", res.Outcome)
	}
	if submitted, total := s.Progress("A"); submitted != 1 || total != 2 {
		t.Fatalf("expected progress 1/2, got %d/%d", submitted, total)
	}
	if s.Remaining() != 2 {
		t.Fatalf("expected 2 remaining, got %d", s.Remaining())
	}

	var apricot int
	for i, item := range items {
		if item.Value == "Apricot" {
			apricot = i
		}
	}
	res, err = s.Submit(apricot, "apricot")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Outcome != OutcomeCorrect {
		t.Fatalf("own value must always be accepted, got %s", res.Outcome)
	}
	if s.Remaining() != 1 {
		t.Fatalf("expected only key B to remain, got %d", s.Remaining())
	}
}

func TestSchedulerDuplicateSubmission(t *testing.T) {
	items := BuildItems(model.Mapping{"A": {"Apple", "Apricot", "Avocado"}})
	s := newTestScheduler(items)
	// items sorted: Apple(0), Apricot(1), Avocado(2)
	if _, err := s.Submit(1, "x"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.Submit(0, "Avocado"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	before, _ := s.Pending(1)
	res, err := s.Submit(1, "avocado")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Outcome != OutcomeDuplicate {
		t.Fatalf("expected duplicate, got %s", res.Outcome)
	}
	after, _ := s.Pending(1)
	if before != after {
		t.Fatalf("duplicate changed state: %+v -> %+v", before, after)
	}
}

func TestSchedulerSiblingsRetireWhenKeyCovered(t *testing.T) {
	items := BuildItems(model.Mapping{"A": {"Apple", "Apricot"}, "B": {"Banana"}})
	s := newTestScheduler(items)
	// Apple(0), Apricot(1), Banana(2)
	if _, err := s.Submit(0, "wrong"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.Submit(0, "Apricot"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	res, err := s.Submit(0, "Apple")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(res.Retired) != 2 {
		t.Fatalf("expected item and sibling to retire, got %v", res.Retired)
	}
	if _, ok := s.Pending(1); ok {
		t.Fatalf("sibling item should have retired")
	}
	if s.Remaining() != 1 {
		t.Fatalf("expected 1 remaining, got %d", s.Remaining())
	}
}

func TestSchedulerCoveredKeyRetiresBelowStreak(t *testing.T) {
	items := BuildItems(model.Mapping{"A": {"Apple", "Apricot"}, "B": {"Banana"}})
	s := newTestScheduler(items)
	// Apple(0), Apricot(1), Banana(2)
	if _, err := s.Submit(0, "wrong"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	res, err := s.Submit(1, "Apricot")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(res.Retired) != 1 || res.Retired[0] != 1 {
		t.Fatalf("expected only Apricot to retire, got %v", res.Retired)
	}
	if p, ok := s.Pending(0); !ok || p.Required != 2 {
		t.Fatalf("Apple should still need 2, got %+v (ok=%v)", p, ok)
	}

	res, err = s.Submit(0, "Apple")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Outcome != OutcomeCorrect || res.Pending.Streak != 1 || res.Pending.Required != 2 {
		t.Fatalf("unexpected answer %+v", res)
	}
	if len(res.Retired) != 1 || res.Retired[0] != 0 {
		t.Fatalf("expected Apple to retire with its key covered, got %v", res.Retired)
	}
	for i := 0; i < 2; i++ {
		if _, ok := s.Pending(i); ok {
			t.Fatalf("item %d of a covered key is still remaining", i)
		}
	}
	if s.Remaining() != 1 {
		t.Fatalf("expected only Banana to remain, got %d", s.Remaining())
	}
}

func TestSchedulerSiblingShortOfStreakWaitsForKey(t *testing.T) {
	items := BuildItems(model.Mapping{"A": {"Apple", "Apricot", "Avocado"}})
	s := newTestScheduler(items)
	// Apple(0), Apricot(1), Avocado(2)
	for i := 0; i < 2; i++ {
		if _, err := s.Submit(1, "wrong"); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	res, err := s.Submit(0, "Apple")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(res.Retired) != 1 || res.Retired[0] != 0 {
		t.Fatalf("expected only Apple to retire, got %v", res.Retired)
	}
	if p, ok := s.Pending(1); !ok || p.Required != 4 || p.Streak != 0 {
		t.Fatalf("Apricot must keep its streak state, got %+v (ok=%v)", p, ok)
	}
	if s.Remaining() != 2 {
		t.Fatalf("expected 2 remaining, got %d", s.Remaining())
	}
}
