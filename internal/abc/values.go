// Package abc provides helpers for the A-Z value table.
package abc

import (
	"strings"

	"github.com/verte-zerg/azdrill/internal/model"
)

const valueSeparator = ", "

// SplitValues splits a stored cell into its non-blank values.
func SplitValues(cell string) []string {
	var values []string
	for _, part := range strings.Split(cell, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		values = append(values, part)
	}
	return values
}

// JoinValues formats values for storage in a single cell.
func JoinValues(values []string) string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, valueSeparator)
}

// Group assigns names to keys by their first letter. Names that do not start
// with A-Z are dropped, duplicates are kept once, and at most limit names are
// kept per key when limit is positive.
func Group(names []string, limit int) model.Mapping {
	grouped := model.Mapping{}
	seen := map[string]struct{}{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key, ok := model.ParseKey(name[:1])
		if !ok {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		if limit > 0 && len(grouped[key]) >= limit {
			continue
		}
		seen[name] = struct{}{}
		grouped[key] = append(grouped[key], name)
	}
	return grouped
}

// Merge returns base with the values of extra appended per key, skipping
// values already present case-insensitively.
func Merge(base, extra model.Mapping) model.Mapping {
	out := model.Mapping{}
	for _, key := range model.Keys() {
		existing := map[string]struct{}{}
		for _, v := range base[key] {
			existing[strings.ToLower(v)] = struct{}{}
			out[key] = append(out[key], v)
		}
		for _, v := range extra[key] {
			if _, ok := existing[strings.ToLower(v)]; ok {
				continue
			}
			existing[strings.ToLower(v)] = struct{}{}
			out[key] = append(out[key], v)
		}
	}
	return out
}
