package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/kikiluvv/lofiloop/internal/pipeline"
	"github.com/kikiluvv/lofiloop/internal/timeline"
	"github.com/kikiluvv/lofiloop/pkg/util"
)

// PreviewOptions controls the excerpt shown before confirmation
type PreviewOptions struct {
	Duration time.Duration
	Width    int
	WorkDir  string
}

// Previewer renders the opening of a composition at low quality, plays it
// and leaves a poster frame for the confirmation prompt
type Previewer struct {
	exec   *Executor
	logger zerolog.Logger
	opts   PreviewOptions
}

// NewPreviewer creates a previewer
func NewPreviewer(exec *Executor, logger zerolog.Logger, opts PreviewOptions) *Previewer {
	if opts.Duration <= 0 {
		opts.Duration = 20 * time.Second
	}
	if opts.Width <= 0 {
		opts.Width = 640
	}
	return &Previewer{
		exec:   exec,
		logger: logger.With().Str("component", "preview").Logger(),
		opts:   opts,
	}
}

// Preview implements pipeline.Previewer
func (p *Previewer) Preview(ctx context.Context, req *timeline.RenderRequest) (*pipeline.Preview, error) {
	if err := validateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid preview request: %w", err)
	}

	dir, err := makeWorkDir(p.opts.WorkDir, "preview")
	if err != nil {
		return nil, err
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			p.logger.Debug().Err(err).Str("dir", dir).Msg("remove preview dir")
		}
	}

	length := min(p.opts.Duration, req.Composition.Duration())
	clipPath := filepath.Join(dir, "preview.mp4")

	p.logger.Info().Dur("length", length).Msg("rendering preview")
	if err := p.exec.Run(ctx, RunOptions{Args: previewArgs(req, length, p.opts.Width, clipPath), Total: length}); err != nil {
		cleanup()
		return nil, fmt.Errorf("render preview: %w", err)
	}

	if err := p.exec.Play(ctx, clipPath, "lofiloop preview"); err != nil {
		if ctx.Err() != nil {
			cleanup()
			return nil, ctx.Err()
		}
		if errors.Is(err, ErrNoPlayer) {
			p.logger.Warn().Msg("ffplay not installed, skipping preview playback")
		} else {
			p.logger.Warn().Err(err).Msg("preview playback failed")
		}
	}

	posterPath := filepath.Join(dir, "poster.jpg")
	at := posterTime(req.Composition.Video, length)
	if err := p.exec.ExtractFrame(ctx, clipPath, posterPath, at); err != nil {
		p.logger.Warn().Err(err).Msg("poster frame extraction failed")
		posterPath = ""
	}

	return &pipeline.Preview{PosterPath: posterPath, Cleanup: cleanup}, nil
}

// previewArgs renders the first length of req as one small, fast encode
func previewArgs(req *timeline.RenderRequest, length time.Duration, width int, out string) []string {
	video := req.Composition.Video.Truncate(length)
	first := video.Segments[0].Clip
	w, h := frameSize(first)
	fps := frameRate(req.Encoding, first)

	c := &command{}
	v := overlayVideo(c, video, length, w, h, fps)
	c.graph.Chain([]string{v}, NewFilterBuilder().Scale(width, -2).Build(), "pv")

	var audioLabel string
	if req.Composition.Audio.Len() > 0 {
		audioLabel = mixAudio(c, req.Composition.Audio.Truncate(length))
	}

	args := append(c.args(), "-map", "[pv]")
	if audioLabel != "" {
		args = append(args, "-map", "["+audioLabel+"]")
		args = append(args, audioCodecArgs(req.Encoding)...)
	}
	args = append(args,
		"-t", util.FormatSeconds(length),
		"-c:v", DefaultVideoCodec,
		"-preset", "ultrafast",
		"-pix_fmt", DefaultPixelFormat,
		out,
	)
	return args
}

// posterTime picks the middle of the first crossfade inside the excerpt,
// or the excerpt's midpoint when there is none
func posterTime(video *timeline.Timeline, length time.Duration) time.Duration {
	if video.Len() > 1 {
		next := video.Segments[1]
		if at := next.Start + next.FadeIn/2; at < length {
			return at
		}
	}
	return length / 2
}
