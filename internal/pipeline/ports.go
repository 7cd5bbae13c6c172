package pipeline

import (
	"context"

	"github.com/kikiluvv/lofiloop/internal/timeline"
)

// Encoder turns a render request into the output file. Implementations
// must leave OutputPath untouched unless encoding completed.
type Encoder interface {
	Encode(ctx context.Context, req *timeline.RenderRequest) error
}

// Previewer plays a short, non-interactive preview of a request and
// returns once playback ends. The returned Preview may carry a still frame.
type Previewer interface {
	Preview(ctx context.Context, req *timeline.RenderRequest) (*Preview, error)
}

// Preview is what a previewer leaves behind for the confirmation prompt
type Preview struct {
	PosterPath string
	Cleanup    func()
}

// Prompt is the yes/no question put to the user
type Prompt struct {
	Title      string
	Message    string
	Details    []string
	PosterPath string
}

// DefaultPrompt is the fixed render confirmation question
func DefaultPrompt() Prompt {
	return Prompt{
		Title:   "Render Confirmation",
		Message: "Do you want to generate the video?",
	}
}

// Confirmer blocks until the user answers the prompt
type Confirmer interface {
	Confirm(ctx context.Context, prompt Prompt) (bool, error)
}

// StaticConfirmer answers every prompt the same way
type StaticConfirmer bool

func (s StaticConfirmer) Confirm(context.Context, Prompt) (bool, error) {
	return bool(s), nil
}
