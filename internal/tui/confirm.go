package tui

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kikiluvv/lofiloop/internal/pipeline"
)

// Confirmer asks the render question in the terminal
type Confirmer struct {
	input  io.Reader
	output io.Writer
}

// NewConfirmer creates a terminal confirmer on stdin/stderr
func NewConfirmer() *Confirmer {
	return &Confirmer{input: os.Stdin, output: os.Stderr}
}

// Confirm implements pipeline.Confirmer. Ctrl+C or a cancelled context
// returns context.Canceled rather than a plain no.
func (c *Confirmer) Confirm(ctx context.Context, prompt pipeline.Prompt) (bool, error) {
	program := tea.NewProgram(NewModel(prompt),
		tea.WithContext(ctx),
		tea.WithInput(c.input),
		tea.WithOutput(c.output),
	)

	final, err := program.Run()
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}

	m, ok := final.(Model)
	if !ok {
		return false, fmt.Errorf("confirmation prompt: unexpected model %T", final)
	}
	if m.Aborted {
		return false, context.Canceled
	}
	return m.Confirmed(), nil
}
