package tui

import tea "github.com/charmbracelet/bubbletea"

// Update implements tea.Model interface
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}
	return m, nil
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.Aborted = true
		return m, tea.Quit
	case "esc", "q":
		m.Yes = false
		m.Answered = true
		return m, tea.Quit
	case "y", "Y":
		m.Yes = true
		m.Answered = true
		return m, tea.Quit
	case "n", "N":
		m.Yes = false
		m.Answered = true
		return m, tea.Quit
	case "left", "h", "right", "l", "tab", "shift+tab":
		m.Yes = !m.Yes
	case "enter", " ":
		m.Answered = true
		return m, tea.Quit
	}
	return m, nil
}
