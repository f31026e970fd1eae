// Package tui provides the Bubble Tea quiz interface.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/azdrill/internal/model"
	"github.com/verte-zerg/azdrill/internal/quiz"
)

// Starter opens a fresh session, reloading the item store.
type Starter func(ctx context.Context) (*quiz.Session, error)

type cooldownTickMsg time.Time

// Model implements the Bubble Tea quiz UI.
type Model struct {
	start  Starter
	preset model.Mode

	session   *quiz.Session
	startErr  error
	menuIndex int
	input     textinput.Model

	feedback   string
	feedbackOK bool
	warning    string
	review     []model.QuizItem

	width  int
	height int
}

var (
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	keyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	valueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#E8A33D"))
	correctStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	incorrectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a quiz TUI model. A valid preset skips stage selection.
func NewModel(start Starter, preset model.Mode) *Model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 200
	m := &Model{
		start:  start,
		preset: preset,
		input:  input,
	}
	m.restart()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.focusCmd()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case cooldownTickMsg:
		if m.session != nil && m.session.ReviewRemaining() > 0 {
			return m, cooldownTick()
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.session == nil {
		switch msg.String() {
		case "r":
			m.restart()
			return m, m.focusCmd()
		case "q":
			return m, tea.Quit
		}
		return m, nil
	}
	switch m.session.Phase() {
	case model.PhaseStageSelect:
		return m.updateStageSelect(msg)
	case model.PhasePractice:
		switch msg.String() {
		case "enter", " ", "right", "l", "n":
			m.clearFeedback()
			if err := m.session.Advance(); err != nil {
				m.setError(err)
			}
			return m, m.focusCmd()
		case "q":
			return m, tea.Quit
		}
		return m, nil
	case model.PhaseQuiz, model.PhaseFinalReview:
		if msg.Type == tea.KeyEnter {
			return m, m.submit()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	case model.PhaseDone:
		switch msg.String() {
		case "r":
			m.restart()
			return m, m.focusCmd()
		case "q", "enter":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) updateStageSelect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	modes := model.Modes()
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
		return m, nil
	case "down", "j":
		if m.menuIndex < len(modes)-1 {
			m.menuIndex++
		}
		return m, nil
	case "1", "2", "3", "4":
		m.menuIndex = int(msg.Runes[0] - '1')
		return m, m.selectStage(modes[m.menuIndex])
	case "enter":
		return m, m.selectStage(modes[m.menuIndex])
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) selectStage(mode model.Mode) tea.Cmd {
	m.clearFeedback()
	if err := m.session.SelectStage(mode); err != nil {
		m.setError(err)
		return nil
	}
	return m.focusCmd()
}

func (m *Model) submit() tea.Cmd {
	answer := strings.TrimSpace(m.input.Value())
	if answer == "" {
		return nil
	}
	fb, err := m.session.Submit(context.Background(), answer)
	if errors.Is(err, quiz.ErrReviewCooldown) {
		m.feedback = fmt.Sprintf("Review the list first: answers unlock in %ds.", int(m.session.ReviewRemaining().Seconds()+0.999))
		m.feedbackOK = false
		return nil
	}
	if err != nil {
		m.setError(err)
		return nil
	}
	m.input.SetValue("")
	m.feedback, m.feedbackOK = describeFeedback(fb)
	m.warning = ""
	if fb.Warning != nil {
		m.warning = fmt.Sprintf("Warning: %v", fb.Warning)
		logErrf("failed to record result: %v\n", fb.Warning)
	}
	switch {
	case fb.Review != nil:
		m.review = fb.Review
	case fb.Outcome == quiz.OutcomeCorrect:
		m.review = nil
	}
	if !fb.ReviewUntil.IsZero() {
		return cooldownTick()
	}
	return nil
}

func (m *Model) restart() {
	m.clearFeedback()
	m.menuIndex = 0
	m.session, m.startErr = m.start(context.Background())
	if m.startErr != nil {
		m.session = nil
		if !errors.Is(m.startErr, quiz.ErrNoData) {
			logErrf("failed to start quiz: %v\n", m.startErr)
		}
		return
	}
	if m.preset.Valid() {
		if err := m.session.SelectStage(m.preset); err != nil {
			m.setError(err)
		}
	}
	// Focus before Init so typed answers reach the input.
	_ = m.focusCmd()
}

func (m *Model) focusCmd() tea.Cmd {
	if m.session == nil {
		return nil
	}
	switch m.session.Phase() {
	case model.PhaseQuiz, model.PhaseFinalReview:
		return m.input.Focus()
	default:
		m.input.Blur()
		return nil
	}
}

func (m *Model) clearFeedback() {
	m.feedback = ""
	m.warning = ""
	m.review = nil
	m.input.SetValue("")
}

func (m *Model) setError(err error) {
	m.feedback = err.Error()
	m.feedbackOK = false
}

func describeFeedback(fb quiz.Feedback) (string, bool) {
	var lines []string
	ok := fb.Outcome == quiz.OutcomeCorrect
	switch {
	case fb.Outcome == quiz.OutcomeDuplicate:
		lines = append(lines, fmt.Sprintf("Already submitted for %s. Enter a different value.", fb.Key))
	case fb.Phase == model.PhaseQuiz && ok:
		lines = append(lines, fmt.Sprintf("Correct! %d item(s) remaining.", fb.Remaining))
	case fb.Item != (model.QuizItem{}) && !ok:
		lines = append(lines,
			fmt.Sprintf("Incorrect. Correct value is: %s", fb.Expected),
			fmt.Sprintf("You must now answer %q correctly %d times in a row.", fb.Item.Key, fb.Pending.Required))
	case fb.Restarted:
		lines = append(lines,
			fmt.Sprintf("Incorrect. Correct key is: %s", fb.Expected),
			"Restarting final review from the beginning.")
	case ok:
		lines = append(lines, "Correct!")
	}
	if fb.Completed {
		lines = append(lines, "Congratulations! You have finished the quiz.")
		if fb.Saved {
			lines = append(lines, "Your result has been saved.")
		}
	}
	return strings.Join(lines, "\n"), ok
}

func cooldownTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return cooldownTickMsg(t)
	})
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
