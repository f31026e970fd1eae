// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Key is one of the 26 fixed A-Z identifiers.
type Key string

// Keys returns A through Z in order.
func Keys() []Key {
	keys := make([]Key, 0, 26)
	for ch := 'A'; ch <= 'Z'; ch++ {
		keys = append(keys, Key(string(ch)))
	}
	return keys
}

// ParseKey matches a key case-insensitively and returns its canonical form.
func ParseKey(s string) (Key, bool) {
	s = strings.TrimSpace(s)
	if len(s) != 1 {
		return "", false
	}
	ch := s[0]
	if ch >= 'a' && ch <= 'z' {
		ch -= 'a' - 'A'
	}
	if ch < 'A' || ch > 'Z' {
		return "", false
	}
	return Key(string(ch)), true
}

// Mapping is the A-Z table as loaded from the item store.
type Mapping map[Key][]string

// QuizItem is a single (key, value) pair.
type QuizItem struct {
	Key   Key
	Value string
}

// Mode is the stage selection made at the start of a session.
type Mode int

const (
	ModePracticeOnly Mode = iota + 1
	ModeQuizOnly
	ModeFinalOnly
	ModeAllStages
)

var modeNames = map[Mode]string{
	ModePracticeOnly: "practice",
	ModeQuizOnly:     "quiz",
	ModeFinalOnly:    "final",
	ModeAllStages:    "all",
}

// Modes lists the selectable modes in menu order.
func Modes() []Mode {
	return []Mode{ModeAllStages, ModePracticeOnly, ModeQuizOnly, ModeFinalOnly}
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// ParseMode parses a mode name such as "all" or "quiz".
func ParseMode(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for mode, name := range modeNames {
		if name == s {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q (expected all, practice, quiz or final)", s)
}

// Phase is the active step of a quiz session.
type Phase int

const (
	PhaseStageSelect Phase = iota
	PhasePractice
	PhaseQuiz
	PhaseFinalReview
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseStageSelect:
		return "stage-select"
	case PhasePractice:
		return "practice"
	case PhaseQuiz:
		return "quiz"
	case PhaseFinalReview:
		return "final-review"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Config defines resolved application settings.
type Config struct {
	Workbook        string
	Sheet           string
	DBPath          string
	Results         string
	BatchSize       int
	ReviewThreshold int
	ReviewCooldown  time.Duration
	WebAddr         string
	CORSOrigins     []string
}

// ResultEntry is a recorded session completion.
type ResultEntry struct {
	ID         string
	RecordedAt time.Time
	Label      string
	Status     string
}

// LabelSummary aggregates completions for a single worksheet label.
type LabelSummary struct {
	Label       string
	Completions int
	First       time.Time
	Last        time.Time
	ActiveDays  int
}
