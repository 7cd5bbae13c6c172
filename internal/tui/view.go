package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View implements tea.Model interface
func (m Model) View() string {
	if m.Answered || m.Aborted {
		return ""
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(m.Prompt.Title))
	b.WriteString("\n")
	b.WriteString(m.Prompt.Message)
	b.WriteString("\n\n")

	for _, line := range m.Prompt.Details {
		b.WriteString(InfoStyle.Render(line))
		b.WriteString("\n")
	}
	if m.Prompt.PosterPath != "" {
		b.WriteString(InfoStyle.Render("Preview frame: " + m.Prompt.PosterPath))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	yes, no := ChoiceStyle.Render("Yes"), SelectedStyle.Render("No")
	if m.Yes {
		yes, no = SelectedStyle.Render("Yes"), ChoiceStyle.Render("No")
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, yes, "  ", no))
	b.WriteString("\n\n")
	b.WriteString(InfoStyle.Render("y/n to answer • ←/→ to choose • enter to confirm"))

	return BoxStyle.Render(b.String()) + "\n"
}
