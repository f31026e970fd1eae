package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/azdrill/internal/abc"
	"github.com/verte-zerg/azdrill/internal/model"
	"github.com/verte-zerg/azdrill/internal/quiz"
)

const maxReviewRows = 12

var stageLabels = map[model.Mode]string{
	model.ModePracticeOnly: "Practice only",
	model.ModeQuizOnly:     "Quiz only",
	model.ModeFinalOnly:    "Final review only",
	model.ModeAllStages:    "All stages",
}

// View implements tea.Model.
func (m *Model) View() string {
	content := m.renderBody()
	if m.width == 0 || m.height == 0 {
		return content + "\n" + m.renderFooter()
	}
	contentWidth := int(float64(m.width) * 0.70)
	if contentWidth < 1 {
		contentWidth = 1
	}
	content = lipgloss.NewStyle().Width(contentWidth).Render(content)
	footer := m.renderFooter()
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	bodyHeight := m.height - 1
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderBody() string {
	if m.session == nil {
		return m.renderStartError()
	}
	sections := []string{titleStyle.Render("A-Z Quiz · " + m.session.Label())}
	switch m.session.Phase() {
	case model.PhaseStageSelect:
		sections = append(sections, m.renderStageMenu())
	case model.PhasePractice:
		sections = append(sections, m.renderPractice())
	case model.PhaseQuiz, model.PhaseFinalReview:
		sections = append(sections, m.renderQuestion())
	case model.PhaseDone:
		sections = append(sections, mutedStyle.Render("Press r to start again or q to quit."))
	}
	if m.feedback != "" {
		style := incorrectStyle
		if m.feedbackOK {
			style = correctStyle
		}
		sections = append(sections, style.Render(m.feedback))
	}
	if m.warning != "" {
		sections = append(sections, incorrectStyle.Render(m.warning))
	}
	if len(m.review) > 0 {
		sections = append(sections, m.renderReview())
	}
	return strings.Join(sections, "\n\n")
}

func (m *Model) renderStartError() string {
	if m.startErr == nil {
		return ""
	}
	msg := fmt.Sprintf("Could not start the quiz: %v", m.startErr)
	if errors.Is(m.startErr, quiz.ErrNoData) {
		msg = "No data to quiz on. Add values with `azdrill set` or `azdrill import`."
	}
	return incorrectStyle.Render(msg) + "\n\n" + mutedStyle.Render("Press r to retry or q to quit.")
}

func (m *Model) renderStageMenu() string {
	lines := []string{"Choose a stage:"}
	for i, mode := range model.Modes() {
		line := fmt.Sprintf("%d. %s", i+1, stageLabels[mode])
		if i == m.menuIndex {
			line = selectedStyle.Render("> " + line)
		} else {
			line = mutedStyle.Render("  " + line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderPractice() string {
	snap := m.session.Snapshot()
	lines := []string{fmt.Sprintf("Practice %d-%d of %d",
		snap.PracticeFrom+1, snap.PracticeFrom+len(snap.Practice), snap.Items)}
	for _, item := range snap.Practice {
		lines = append(lines, keyStyle.Render(string(item.Key))+"  "+valueStyle.Render(item.Value))
	}
	lines = append(lines, mutedStyle.Render("Press enter to continue."))
	return strings.Join(lines, "\n")
}

func (m *Model) renderQuestion() string {
	p, err := m.session.Prompt()
	if err != nil {
		return ""
	}
	var question string
	if p.Phase == model.PhaseQuiz {
		question = fmt.Sprintf("Enter a value starting with %s", keyStyle.Render(string(p.Key)))
		if p.Total > 1 {
			question += mutedStyle.Render(fmt.Sprintf("  (%d of %d given)", p.Submitted, p.Total))
		}
		if p.Required > 0 {
			question += "\n" + mutedStyle.Render(fmt.Sprintf("Streak %d/%d", p.Streak, p.Required))
		}
	} else {
		question = fmt.Sprintf("Which key holds: %s", valueStyle.Render(abc.JoinValues(p.Values)))
	}
	if remaining := m.session.ReviewRemaining(); remaining > 0 {
		return question + "\n" + mutedStyle.Render(fmt.Sprintf("Answers unlock in %ds", int(remaining.Seconds()+0.999)))
	}
	return question + "\n" + m.input.View()
}

func (m *Model) renderReview() string {
	valueWidth := 30
	if m.width > 0 {
		valueWidth = max(10, int(float64(m.width)*0.70)-10)
	}
	rows := make([]table.Row, 0, len(m.review))
	for _, item := range m.review {
		rows = append(rows, table.Row{string(item.Key), item.Value})
	}
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Key", Width: 4},
			{Title: "Value", Width: valueWidth},
		}),
		table.WithRows(rows),
		table.WithHeight(min(len(rows), maxReviewRows)+1),
	)
	return "Review the full list:\n" + t.View()
}

func (m *Model) renderFooter() string {
	if m.session == nil {
		return ""
	}
	snap := m.session.Snapshot()
	segments := []string{fmt.Sprintf("Stage %s", snap.Phase)}
	switch snap.Phase {
	case model.PhasePractice:
		segments = append(segments, fmt.Sprintf("Progress %d%%", percent(snap.PracticeFrom, snap.Items)))
	case model.PhaseQuiz:
		segments = append(segments, fmt.Sprintf("Progress %d%%", percent(snap.Items-snap.Remaining, snap.Items)),
			fmt.Sprintf("%d remaining", snap.Remaining))
	case model.PhaseFinalReview:
		segments = append(segments, fmt.Sprintf("Key %d/%d", snap.FinalIndex+1, snap.FinalTotal))
	}
	if snap.ShouldSaveResults {
		segments = append(segments, "Results saved on finish")
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(float64(done) / float64(total) * 100)
}
