package web

import (
	"time"

	"github.com/verte-zerg/azdrill/internal/model"
	"github.com/verte-zerg/azdrill/internal/quiz"
)

type itemView struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type promptView struct {
	Phase     string   `json:"phase"`
	Key       string   `json:"key,omitempty"`
	Values    []string `json:"values,omitempty"`
	Required  int      `json:"required,omitempty"`
	Streak    int      `json:"streak,omitempty"`
	Submitted int      `json:"submitted,omitempty"`
	Total     int      `json:"total,omitempty"`
	Position  int      `json:"position"`
	Count     int      `json:"count"`
}

type sessionView struct {
	ID                string      `json:"id"`
	Label             string      `json:"label"`
	Phase             string      `json:"phase"`
	Mode              string      `json:"mode,omitempty"`
	ShouldSaveResults bool        `json:"should_save_results"`
	Items             int         `json:"items"`
	Practice          []itemView  `json:"practice,omitempty"`
	Prompt            *promptView `json:"prompt,omitempty"`
	Remaining         int         `json:"remaining"`
	ReviewUntil       *time.Time  `json:"review_until,omitempty"`
}

type feedbackView struct {
	Outcome     string     `json:"outcome"`
	Phase       string     `json:"phase"`
	Key         string     `json:"key,omitempty"`
	Expected    string     `json:"expected,omitempty"`
	Required    int        `json:"required,omitempty"`
	Streak      int        `json:"streak,omitempty"`
	Retired     int        `json:"retired,omitempty"`
	Remaining   int        `json:"remaining"`
	Restarted   bool       `json:"restarted,omitempty"`
	Review      []itemView `json:"review,omitempty"`
	ReviewUntil *time.Time `json:"review_until,omitempty"`
	Completed   bool       `json:"completed,omitempty"`
	Saved       bool       `json:"saved,omitempty"`
	Warning     string     `json:"warning,omitempty"`
}

type resultView struct {
	ID         string    `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`
	Label      string    `json:"label"`
	Status     string    `json:"status"`
}

type sheetsView struct {
	Active string   `json:"active"`
	Sheets []string `json:"sheets"`
}

func newSessionView(s *quiz.Session) sessionView {
	snap := s.Snapshot()
	view := sessionView{
		ID:                snap.ID,
		Label:             snap.Label,
		Phase:             snap.Phase.String(),
		ShouldSaveResults: snap.ShouldSaveResults,
		Items:             snap.Items,
		Practice:          newItemViews(snap.Practice),
		Remaining:         snap.Remaining,
		ReviewUntil:       optionalTime(snap.ReviewUntil, s.ReviewRemaining() > 0),
	}
	if snap.Mode.Valid() {
		view.Mode = snap.Mode.String()
	}
	if snap.Phase == model.PhaseFinalReview {
		view.Remaining = snap.FinalTotal - snap.FinalIndex
	}
	if p := snap.Prompt; p != nil {
		view.Prompt = &promptView{
			Phase:     p.Phase.String(),
			Key:       promptKey(p),
			Values:    p.Values,
			Required:  p.Required,
			Streak:    p.Streak,
			Submitted: p.Submitted,
			Total:     p.Total,
			Position:  p.Position,
			Count:     p.Count,
		}
	}
	return view
}

// promptKey hides the answer during final review.
func promptKey(p *quiz.Prompt) string {
	if p.Phase == model.PhaseFinalReview {
		return ""
	}
	return string(p.Key)
}

func newFeedbackView(fb quiz.Feedback) feedbackView {
	view := feedbackView{
		Outcome:     fb.Outcome.String(),
		Phase:       fb.Phase.String(),
		Key:         string(fb.Key),
		Expected:    fb.Expected,
		Required:    fb.Pending.Required,
		Streak:      fb.Pending.Streak,
		Retired:     fb.Retired,
		Remaining:   fb.Remaining,
		Restarted:   fb.Restarted,
		Review:      newItemViews(fb.Review),
		ReviewUntil: optionalTime(fb.ReviewUntil, !fb.ReviewUntil.IsZero()),
		Completed:   fb.Completed,
		Saved:       fb.Saved,
	}
	if fb.Outcome == quiz.OutcomeCorrect || fb.Outcome == quiz.OutcomeDuplicate {
		view.Expected = ""
	}
	if fb.Warning != nil {
		view.Warning = fb.Warning.Error()
	}
	return view
}

func newItemViews(items []model.QuizItem) []itemView {
	if len(items) == 0 {
		return nil
	}
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, itemView{Key: string(item.Key), Value: item.Value})
	}
	return views
}

func newMappingView(m model.Mapping) map[string][]string {
	out := make(map[string][]string, 26)
	for _, key := range model.Keys() {
		values := m[key]
		if values == nil {
			values = []string{}
		}
		out[string(key)] = values
	}
	return out
}

func newResultView(entry model.ResultEntry) resultView {
	return resultView{
		ID:         entry.ID,
		RecordedAt: entry.RecordedAt,
		Label:      entry.Label,
		Status:     entry.Status,
	}
}

func optionalTime(t time.Time, ok bool) *time.Time {
	if !ok {
		return nil
	}
	return &t
}
