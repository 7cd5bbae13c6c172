package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kikiluvv/lofiloop/internal/pipeline"
)

// Model is a yes/no prompt with No focused initially
type Model struct {
	Prompt   pipeline.Prompt
	Yes      bool
	Answered bool
	Aborted  bool
}

// NewModel creates a prompt model with No focused
func NewModel(prompt pipeline.Prompt) Model {
	return Model{Prompt: prompt}
}

// Init implements tea.Model interface
func (m Model) Init() tea.Cmd {
	return nil
}

// Confirmed reports whether the user answered yes
func (m Model) Confirmed() bool {
	return m.Answered && m.Yes
}
