// Package quiz implements the practice/quiz/final-review session and its
// repetition scheduling.
package quiz

import (
	"sort"
	"strings"

	"github.com/verte-zerg/azdrill/internal/model"
)

// BuildItems flattens a mapping into one item per non-blank value, sorted by
// value case-insensitively. Ties keep key order, then value order.
func BuildItems(m model.Mapping) []model.QuizItem {
	var items []model.QuizItem
	for _, key := range model.Keys() {
		for _, value := range m[key] {
			value = strings.TrimSpace(value)
			if value == "" {
				continue
			}
			items = append(items, model.QuizItem{Key: key, Value: value})
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return strings.ToLower(items[i].Value) < strings.ToLower(items[j].Value)
	})
	return items
}

// FinalKeys returns the distinct keys of items, sorted case-insensitively.
func FinalKeys(items []model.QuizItem) []model.Key {
	seen := map[model.Key]struct{}{}
	keys := make([]model.Key, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.Key]; ok {
			continue
		}
		seen[item.Key] = struct{}{}
		keys = append(keys, item.Key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(string(keys[i])) < strings.ToLower(string(keys[j]))
	})
	return keys
}

// ValuesFor returns the values belonging to key in item order.
func ValuesFor(items []model.QuizItem, key model.Key) []string {
	var values []string
	for _, item := range items {
		if item.Key == key {
			values = append(values, item.Value)
		}
	}
	return values
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
