package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kikiluvv/lofiloop/internal/timeline"
	"github.com/kikiluvv/lofiloop/pkg/util"
)

// Encoder renders compositions to mp4 files with ffmpeg
type Encoder struct {
	exec    *Executor
	logger  zerolog.Logger
	workDir string
}

// NewEncoder creates an encoder that keeps intermediates under workDir
// (the system temp dir when empty)
func NewEncoder(exec *Executor, logger zerolog.Logger, workDir string) *Encoder {
	return &Encoder{
		exec:    exec,
		logger:  logger.With().Str("component", "encoder").Logger(),
		workDir: workDir,
	}
}

// Encode renders req to req.OutputPath. The output only appears once the
// final mux has finished; a failed or interrupted render leaves no file.
func (e *Encoder) Encode(ctx context.Context, req *timeline.RenderRequest) error {
	if err := validateRequest(req); err != nil {
		return fmt.Errorf("invalid render request: %w", err)
	}

	work, err := makeWorkDir(e.workDir, "render")
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)

	total := req.Composition.Duration()
	started := time.Now()

	e.logger.Info().
		Str("output", req.OutputPath).
		Dur("duration", total).
		Int("video_segments", req.Composition.Video.Len()).
		Int("audio_segments", req.Composition.Audio.Len()).
		Msg("starting render")

	videoPath := filepath.Join(work, "video.mp4")
	if err := e.renderVideo(ctx, req, work, videoPath); err != nil {
		return fmt.Errorf("render video: %w", err)
	}

	var audioPath string
	if req.Composition.Audio.Len() > 0 {
		audioPath = filepath.Join(work, "audio.m4a")
		if err := e.renderAudio(ctx, req, audioPath); err != nil {
			return fmt.Errorf("render audio: %w", err)
		}
	}

	if err := e.mux(ctx, videoPath, audioPath, total, req.OutputPath); err != nil {
		return fmt.Errorf("mux: %w", err)
	}

	e.logger.Info().
		Str("output", req.OutputPath).
		Dur("elapsed", time.Since(started)).
		Msg("render completed")
	return nil
}

func validateRequest(req *timeline.RenderRequest) error {
	if req == nil {
		return errors.New("request is nil")
	}
	if req.OutputPath == "" {
		return errors.New("output path is required")
	}
	if req.Composition.Video.Len() == 0 {
		return errors.New("video timeline is empty")
	}
	for _, seg := range req.Composition.Video.Segments {
		if seg.Clip == nil {
			return errors.New("video segment without clip")
		}
	}
	for _, seg := range req.Composition.Audio.Segments {
		if seg.Clip == nil {
			return errors.New("audio segment without clip")
		}
	}
	return nil
}

func (e *Encoder) renderVideo(ctx context.Context, req *timeline.RenderRequest, work, out string) error {
	video := req.Composition.Video
	if plan, ok := detectLoop(video); ok {
		return e.renderLoop(ctx, plan, req.Encoding, work, out)
	}

	e.logger.Info().Int("layers", video.Len()).Msg("rendering video as overlay graph")

	total := video.Duration()
	w, h := frameSize(video.Segments[0].Clip)
	c := &command{}
	label := overlayVideo(c, video, total, w, h, frameRate(req.Encoding, video.Segments[0].Clip))

	args := c.args()
	args = append(args, "-map", "["+label+"]", "-an", "-t", util.FormatSeconds(total))
	args = append(args, videoCodecArgs(req.Encoding)...)
	args = append(args, out)

	return e.exec.Run(ctx, RunOptions{
		Args:            args,
		Total:           total,
		ProgressHandler: e.progressLogger("video"),
	})
}

// renderLoop encodes the three distinct pieces of a loop once each and
// stream-copies them into place
func (e *Encoder) renderLoop(ctx context.Context, plan loopPlan, enc timeline.Encoding, work, out string) error {
	fps := frameRate(enc, plan.clip)
	frame := time.Duration(float64(time.Second) / fps)

	e.logger.Info().
		Int("loops", plan.count).
		Dur("period", plan.period).
		Dur("fade", plan.fade).
		Msg("rendering video as repeated loop unit")

	if drift := plan.renderedDuration(fps) - plan.Duration(); drift.Abs() > frame {
		e.logger.Warn().
			Dur("period", plan.period).
			Float64("fps", fps).
			Dur("drift", drift).
			Msg("loop period is not a whole number of frames, video length will drift")
	}

	intro := filepath.Join(work, "intro.mp4")
	unit := filepath.Join(work, "unit.mp4")
	outro := filepath.Join(work, "outro.mp4")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.exec.Run(gctx, RunOptions{Args: introArgs(plan, enc, intro)})
	})
	if plan.count > 1 {
		g.Go(func() error {
			return e.exec.Run(gctx, RunOptions{Args: unitArgs(plan, enc, unit)})
		})
	}
	g.Go(func() error {
		return e.exec.Run(gctx, RunOptions{Args: outroArgs(plan, enc, outro)})
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("encode loop pieces: %w", err)
	}

	pieces := make([]string, 0, plan.count+1)
	pieces = append(pieces, intro)
	for i := 1; i < plan.count; i++ {
		pieces = append(pieces, unit)
	}
	pieces = append(pieces, outro)

	if err := e.exec.Concat(ctx, ConcatOptions{
		Inputs:       pieces,
		Output:       out,
		Dir:          work,
		Total:        plan.Duration(),
		ProgressFunc: e.progressLogger("video"),
	}); err != nil {
		return err
	}

	e.checkLength(ctx, out, plan.Duration(), frame)
	return nil
}

// checkLength probes a rendered video and reports how far it is from expected
func (e *Encoder) checkLength(ctx context.Context, path string, expected, tolerance time.Duration) {
	info, err := e.exec.ProbeMedia(ctx, path)
	if err != nil {
		e.logger.Debug().Err(err).Str("path", path).Msg("probe rendered video")
		return
	}

	drift := info.Duration - expected
	ev := e.logger.Info()
	if drift.Abs() > tolerance {
		ev = e.logger.Warn()
	}
	ev.Dur("measured", info.Duration).
		Dur("expected", expected).
		Dur("drift", drift).
		Msg("video track length")
}

// loopFilter is the per-input chain that conforms a clip to the output grid
func loopFilter(plan loopPlan, enc timeline.Encoding, pixFmt string) *FilterBuilder {
	w, h := frameSize(plan.clip)
	return NewFilterBuilder().
		FPS(frameRate(enc, plan.clip)).
		Scale(w, h).
		Custom("setsar=1").
		Format(pixFmt).
		Custom("setpts=PTS-STARTPTS")
}

func introArgs(plan loopPlan, enc timeline.Encoding, out string) []string {
	c := &command{}
	in := c.input(plan.clip.Path, "-t", util.FormatSeconds(plan.period))
	c.graph.Chain([]string{stream(in, "v")},
		loopFilter(plan, enc, DefaultPixelFormat).FadeIn(0, plan.fade, false).Build(), "v")

	args := c.args()
	args = append(args, "-map", "[v]", "-an", "-t", util.FormatSeconds(plan.period))
	args = append(args, videoCodecArgs(enc)...)
	return append(args, out)
}

// unitArgs renders one loop period starting at a seam: the opaque tail
// clip[P,D) with the head clip[0,F) alpha-faded in over it, then clip[F,P).
// Alpha over an opaque layer weighs the copies a and 1-a, so the seam keeps
// full intensity.
func unitArgs(plan loopPlan, enc timeline.Encoding, out string) []string {
	body := plan.period - plan.fade

	c := &command{}
	tail := c.input(plan.clip.Path, "-ss", util.FormatSeconds(plan.period), "-t", util.FormatSeconds(plan.fade))
	head := c.input(plan.clip.Path, "-t", util.FormatSeconds(plan.fade))

	c.graph.Chain([]string{stream(tail, "v")}, loopFilter(plan, enc, DefaultPixelFormat).Build(), "tail")
	c.graph.Chain([]string{stream(head, "v")},
		loopFilter(plan, enc, "yuva420p").FadeIn(0, plan.fade, true).Build(), "head")

	if body > 0 {
		rest := c.input(plan.clip.Path, "-ss", util.FormatSeconds(plan.fade), "-t", util.FormatSeconds(body))
		c.graph.Chain([]string{"tail", "head"}, "overlay=eof_action=pass,format="+DefaultPixelFormat, "xfade")
		c.graph.Chain([]string{stream(rest, "v")}, loopFilter(plan, enc, DefaultPixelFormat).Build(), "body")
		c.graph.Chain([]string{"xfade", "body"}, "concat=n=2:v=1:a=0", "v")
	} else {
		c.graph.Chain([]string{"tail", "head"}, "overlay=eof_action=pass,format="+DefaultPixelFormat, "v")
	}

	args := c.args()
	args = append(args, "-map", "[v]", "-an", "-t", util.FormatSeconds(plan.period))
	args = append(args, videoCodecArgs(enc)...)
	return append(args, out)
}

func outroArgs(plan loopPlan, enc timeline.Encoding, out string) []string {
	c := &command{}
	in := c.input(plan.clip.Path, "-ss", util.FormatSeconds(plan.period))
	c.graph.Chain([]string{stream(in, "v")},
		loopFilter(plan, enc, DefaultPixelFormat).FadeOut(0, plan.fade, false).Build(), "v")

	args := c.args()
	args = append(args, "-map", "[v]", "-an", "-t", util.FormatSeconds(plan.fade))
	args = append(args, videoCodecArgs(enc)...)
	return append(args, out)
}

func (e *Encoder) renderAudio(ctx context.Context, req *timeline.RenderRequest, out string) error {
	total := req.Composition.Duration()
	audioLen := min(req.Composition.Audio.Duration(), total)

	c := &command{}
	label := mixAudio(c, req.Composition.Audio)

	args := c.args()
	args = append(args, "-map", "["+label+"]", "-vn", "-t", util.FormatSeconds(total))
	args = append(args, audioCodecArgs(req.Encoding)...)
	args = append(args, out)

	return e.exec.Run(ctx, RunOptions{
		Args:            args,
		Total:           audioLen,
		ProgressHandler: e.progressLogger("audio"),
	})
}

// mux stream-copies video and audio into a pending file next to output and
// renames it into place once ffmpeg succeeds
func (e *Encoder) mux(ctx context.Context, videoPath, audioPath string, total time.Duration, output string) error {
	if err := util.EnsureDir(filepath.Dir(output)); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	pending, err := renameio.NewPendingFile(output)
	if err != nil {
		return fmt.Errorf("create pending output file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			e.logger.Debug().Err(err).Msg("cleanup pending output file")
		}
	}()

	args := muxArgs(videoPath, audioPath, total, pending.Name())
	if err := e.exec.Run(ctx, RunOptions{
		Args:            args,
		Total:           total,
		ProgressHandler: e.progressLogger("mux"),
	}); err != nil {
		return err
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace output file: %w", err)
	}
	return nil
}

func muxArgs(videoPath, audioPath string, total time.Duration, out string) []string {
	args := []string{"-i", videoPath}
	if audioPath != "" {
		args = append(args, "-i", audioPath, "-map", "0:v:0", "-map", "1:a:0")
	} else {
		args = append(args, "-map", "0:v:0")
	}
	// the pending file carries no extension, so the muxer is named explicitly
	return append(args, "-c", "copy", "-t", util.FormatSeconds(total), "-f", "mp4", out)
}

// progressLogger logs a stage's progress once per 10% step
func (e *Encoder) progressLogger(stage string) ProgressFunc {
	next := 10.0
	return func(p *Progress) {
		if p.Percentage < next && !p.Done {
			return
		}
		e.logger.Info().
			Str("stage", stage).
			Float64("percent", p.Percentage).
			Str("speed", p.Speed).
			Msg("render progress")
		for next <= p.Percentage {
			next += 10
		}
	}
}

// makeWorkDir creates a uniquely named scratch directory under base
func makeWorkDir(base, purpose string) (string, error) {
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, fmt.Sprintf("lofiloop-%s-%s", purpose, uuid.NewString()))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	return dir, nil
}
