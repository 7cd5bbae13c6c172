package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/lofiloop/internal/logging"
	"github.com/kikiluvv/lofiloop/internal/timeline"
	"github.com/kikiluvv/lofiloop/pkg/util"
)

// renderLocks serializes encodes per output path within this process
var renderLocks sync.Map

// Gate previews a request, asks for confirmation and only then encodes it
type Gate struct {
	logger    zerolog.Logger
	encoder   Encoder
	previewer Previewer
	confirmer Confirmer

	// OnState, if set, observes AwaitingConfirmation, Cancelled, Rendering,
	// Rendered and Failed transitions
	OnState func(State)
}

// NewGate creates a render gate. previewer may be nil to skip the preview.
func NewGate(logger zerolog.Logger, encoder Encoder, previewer Previewer, confirmer Confirmer) *Gate {
	return &Gate{
		logger:    logging.WithComponent(logger, "render-gate"),
		encoder:   encoder,
		previewer: previewer,
		confirmer: confirmer,
	}
}

// RequestConfirmation asks the fixed render question and blocks for the answer
func (g *Gate) RequestConfirmation(ctx context.Context) (bool, error) {
	return g.confirm(ctx, DefaultPrompt())
}

// Render previews req, waits for confirmation and encodes it. A declined
// confirmation yields StatusCancelled with no error and no file written.
func (g *Gate) Render(ctx context.Context, req *timeline.RenderRequest) (Outcome, error) {
	if req == nil {
		return Outcome{}, fmt.Errorf("%w: render request is nil", ErrInvalidParameters)
	}
	if req.OutputPath == "" {
		return Outcome{}, fmt.Errorf("%w: output path cannot be empty", ErrInvalidParameters)
	}

	prompt := DefaultPrompt()
	prompt.Details = describe(req)

	if g.previewer != nil {
		g.logger.Info().Msg("showing a preview of the video")
		preview, err := g.previewer.Preview(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			g.logger.Warn().Err(err).Msg("preview failed, continuing to confirmation")
		} else if preview != nil {
			if preview.Cleanup != nil {
				defer preview.Cleanup()
			}
			prompt.PosterPath = preview.PosterPath
		}
	}

	g.transition(StateAwaitingConfirmation)
	ok, err := g.confirm(ctx, prompt)
	if err != nil {
		return Outcome{}, fmt.Errorf("render confirmation: %w", err)
	}
	if !ok {
		g.transition(StateCancelled)
		g.logger.Info().Msg("video generation canceled")
		return Outcome{Status: StatusCancelled}, nil
	}

	return g.encode(ctx, req)
}

func (g *Gate) encode(ctx context.Context, req *timeline.RenderRequest) (Outcome, error) {
	unlock, err := lockOutput(req.OutputPath)
	if err != nil {
		return Outcome{}, err
	}
	defer unlock()

	if err := util.EnsureDir(filepath.Dir(req.OutputPath)); err != nil {
		return Outcome{}, fmt.Errorf("create output folder: %w", err)
	}

	g.transition(StateRendering)
	g.logger.Info().
		Str("output", req.OutputPath).
		Str("codec", req.Encoding.VideoCodec).
		Str("preset", req.Encoding.Preset).
		Float64("fps", req.Encoding.FPS).
		Int("threads", req.Encoding.Threads).
		Msg("rendering the video, this may take a while")

	if err := g.encoder.Encode(ctx, req); err != nil {
		g.transition(StateFailed)
		return Outcome{Status: StatusFailed}, &EncodeError{OutputPath: req.OutputPath, Reason: err}
	}

	g.transition(StateRendered)
	g.logger.Info().Str("output", req.OutputPath).Msg("video rendered")
	return Outcome{Status: StatusRendered, OutputPath: req.OutputPath}, nil
}

func (g *Gate) confirm(ctx context.Context, prompt Prompt) (bool, error) {
	if g.confirmer == nil {
		return false, fmt.Errorf("no confirmer configured")
	}
	return g.confirmer.Confirm(ctx, prompt)
}

func (g *Gate) transition(s State) {
	if g.OnState != nil {
		g.OnState(s)
	}
}

// lockOutput claims path for this process, failing fast if already claimed
func lockOutput(path string) (func(), error) {
	key, err := filepath.Abs(path)
	if err != nil {
		key = filepath.Clean(path)
	}

	v, _ := renderLocks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrRenderInProgress, path)
	}
	return mu.Unlock, nil
}

func describe(req *timeline.RenderRequest) []string {
	comp := req.Composition
	return []string{
		fmt.Sprintf("Video: %s (%d loops)", comp.Video.Duration(), comp.Video.Len()),
		fmt.Sprintf("Audio: %s (%d tracks)", comp.Audio.Duration(), comp.Audio.Len()),
		fmt.Sprintf("Output: %s", req.OutputPath),
	}
}
