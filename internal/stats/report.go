// Package stats summarizes recorded quiz completions.
package stats

import (
	"context"
	"sort"
	"time"

	"github.com/verte-zerg/azdrill/internal/model"
	"github.com/verte-zerg/azdrill/internal/store"
)

// ResultLister lists recorded completions, newest first.
type ResultLister interface {
	ListResults(ctx context.Context, filter store.Filter) ([]model.ResultEntry, error)
}

// Report contains precomputed data for results rendering.
type Report struct {
	Entries []model.ResultEntry
	Labels  []model.LabelSummary
	Streak  int
}

// BuildReport loads and prepares data for results rendering.
func BuildReport(ctx context.Context, lister ResultLister, filter store.Filter, today time.Time) (Report, error) {
	entries, err := lister.ListResults(ctx, filter)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Entries: entries,
		Labels:  Summarize(entries),
		Streak:  DayStreak(entries, today),
	}, nil
}

// Summarize aggregates completions per label, most completions first.
func Summarize(entries []model.ResultEntry) []model.LabelSummary {
	byLabel := map[string]*model.LabelSummary{}
	days := map[string]map[string]struct{}{}
	for _, e := range entries {
		sum, ok := byLabel[e.Label]
		if !ok {
			sum = &model.LabelSummary{Label: e.Label, First: e.RecordedAt, Last: e.RecordedAt}
			byLabel[e.Label] = sum
			days[e.Label] = map[string]struct{}{}
		}
		sum.Completions++
		if e.RecordedAt.Before(sum.First) {
			sum.First = e.RecordedAt
		}
		if e.RecordedAt.After(sum.Last) {
			sum.Last = e.RecordedAt
		}
		days[e.Label][dayKey(e.RecordedAt)] = struct{}{}
	}
	out := make([]model.LabelSummary, 0, len(byLabel))
	for label, sum := range byLabel {
		sum.ActiveDays = len(days[label])
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Completions == out[j].Completions {
			return out[i].Label < out[j].Label
		}
		return out[i].Completions > out[j].Completions
	})
	return out
}

// DayStreak counts consecutive days with at least one completion, ending
// today or, when today has none yet, yesterday.
func DayStreak(entries []model.ResultEntry, today time.Time) int {
	active := map[string]struct{}{}
	for _, e := range entries {
		active[dayKey(e.RecordedAt)] = struct{}{}
	}
	day := today
	if _, ok := active[dayKey(day)]; !ok {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for {
		if _, ok := active[dayKey(day)]; !ok {
			return streak
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
}

func dayKey(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// ResultSource returns every recorded completion, newest first.
type ResultSource interface {
	Results(ctx context.Context) ([]model.ResultEntry, error)
}

type filteredSource struct {
	src ResultSource
}

// Filtered adapts a source without query support into a ResultLister.
func Filtered(src ResultSource) ResultLister {
	return filteredSource{src: src}
}

func (f filteredSource) ListResults(ctx context.Context, filter store.Filter) ([]model.ResultEntry, error) {
	entries, err := f.src.Results(ctx)
	if err != nil {
		return nil, err
	}
	return FilterEntries(entries, filter), nil
}

// FilterEntries applies filter to entries already ordered newest first.
func FilterEntries(entries []model.ResultEntry, filter store.Filter) []model.ResultEntry {
	out := make([]model.ResultEntry, 0, len(entries))
	for _, entry := range entries {
		if filter.Label != "" && entry.Label != filter.Label {
			continue
		}
		if filter.Since != nil && entry.RecordedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, entry)
		if filter.Last > 0 && len(out) == filter.Last {
			break
		}
	}
	return out
}
