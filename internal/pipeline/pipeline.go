package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/lofiloop/internal/clips"
	"github.com/kikiluvv/lofiloop/internal/logging"
	"github.com/kikiluvv/lofiloop/internal/timeline"
)

// Deps are the collaborators a pipeline drives
type Deps struct {
	Decoder   clips.Decoder
	Encoder   Encoder
	Previewer Previewer
	Confirmer Confirmer
	Shuffler  Shuffler
}

// Pipeline orchestrates one generation run: loop the video, build the
// playlist, combine them and pass the result through the render gate
type Pipeline struct {
	base   zerolog.Logger
	logger zerolog.Logger
	opts   Options
	deps   Deps
	state  State

	// OnState, if set, observes every state transition
	OnState func(State)
}

// New creates a new pipeline instance
func New(logger zerolog.Logger, opts Options, deps Deps) (*Pipeline, error) {
	if deps.Decoder == nil {
		return nil, fmt.Errorf("decoder is required")
	}
	if deps.Encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if deps.Confirmer == nil {
		return nil, fmt.Errorf("confirmer is required")
	}
	if deps.Shuffler == nil {
		return nil, fmt.Errorf("shuffler is required")
	}

	return &Pipeline{
		base:   logger,
		logger: logging.WithComponent(logger, "pipeline"),
		opts:   opts,
		deps:   deps,
		state:  StateIdle,
	}, nil
}

// State returns the current state of the run
func (p *Pipeline) State() State {
	return p.state
}

// Generate runs the pipeline exactly once. It is not resumable: a second
// call fails.
func (p *Pipeline) Generate(ctx context.Context) (Outcome, error) {
	if p.state != StateIdle {
		return Outcome{}, fmt.Errorf("pipeline already ran (state %s)", p.state)
	}

	runID := uuid.NewString()
	logger := logging.WithRun(p.logger, runID)

	// Stage 1: video loop
	p.setState(StateComposingVideo)
	logger.Info().Str("video", p.opts.VideoPath).Msg("processing video loop")

	source, err := p.deps.Decoder.Decode(ctx, p.opts.VideoPath)
	if err != nil {
		return p.fail(fmt.Errorf("failed to decode video: %w", err))
	}

	video, err := ComposeLoop(source, p.opts.VideoDuration, p.opts.FadeDuration)
	if err != nil {
		return p.fail(err)
	}

	logger.Info().
		Dur("clip", source.Duration).
		Dur("period", LoopPeriod(source.Duration, p.opts.FadeDuration)).
		Int("loops", video.Len()).
		Dur("duration", video.Duration()).
		Dur("target", p.opts.VideoDuration).
		Msg("video loop composed")

	if short := p.opts.VideoDuration - video.Duration(); short > 0 {
		logger.Warn().Dur("shortfall", short).Msg("looped video is shorter than the target duration")
	}

	// Stage 2: playlist
	p.setState(StateComposingAudio)
	logger.Info().Str("songs", p.opts.SongsFolder).Msg("creating music playlist")

	library, err := clips.Scan(ctx, logger, p.deps.Decoder, clips.ScanOptions{
		Dir:         p.opts.SongsFolder,
		Ext:         p.opts.SongExt,
		IgnoreCase:  p.opts.SongExtFold,
		Concurrency: p.opts.Concurrency,
	})
	if err != nil {
		return p.fail(fmt.Errorf("failed to scan songs: %w", err))
	}

	audio, err := BuildPlaylist(library.All(), p.opts.PlaylistDuration, p.deps.Shuffler)
	if err != nil {
		return p.fail(err)
	}

	logger.Info().
		Int("library", library.Len()).
		Int("tracks", audio.Len()).
		Dur("duration", audio.Duration()).
		Dur("target", p.opts.PlaylistDuration).
		Msg("playlist built")

	// Stage 3: combine
	logger.Info().Msg("combining video and audio")
	req := &timeline.RenderRequest{
		Composition: Combine(video, audio),
		OutputPath:  p.opts.OutputPath,
		Encoding:    p.opts.Encoding,
	}
	p.setState(StateCombined)

	// Stage 4: preview, confirm, render
	gate := NewGate(logging.WithRun(p.base, runID), p.deps.Encoder, p.deps.Previewer, p.deps.Confirmer)
	gate.OnState = p.setState

	outcome, err := gate.Render(ctx, req)
	if err != nil && p.state != StateFailed {
		p.setState(StateFailed)
	}
	return outcome, err
}

func (p *Pipeline) fail(err error) (Outcome, error) {
	p.setState(StateFailed)
	return Outcome{Status: StatusFailed}, err
}

func (p *Pipeline) setState(s State) {
	p.logger.Debug().Str("from", string(p.state)).Str("to", string(s)).Msg("state transition")
	p.state = s
	if p.OnState != nil {
		p.OnState(s)
	}
}
