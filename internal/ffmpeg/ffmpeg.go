package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoPlayer is returned by Play when ffplay is not installed
var ErrNoPlayer = errors.New("ffplay not found")

// Options locates the ffmpeg tool binaries
type Options struct {
	FFmpegPath  string
	FFprobePath string
	FFplayPath  string
}

// Executor handles all ffmpeg operations with progress streaming
type Executor struct {
	logger      zerolog.Logger
	ffmpegPath  string
	ffprobePath string
	ffplayPath  string
}

// New creates a new ffmpeg executor. ffmpeg and ffprobe are required;
// ffplay is optional and only needed for previews.
func New(logger zerolog.Logger, opts Options) (*Executor, error) {
	ffmpegPath, err := exec.LookPath(orDefault(opts.FFmpegPath, "ffmpeg"))
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath(orDefault(opts.FFprobePath, "ffprobe"))
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	e := &Executor{
		logger:      logger.With().Str("component", "ffmpeg").Logger(),
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}

	if ffplayPath, err := exec.LookPath(orDefault(opts.FFplayPath, "ffplay")); err == nil {
		e.ffplayPath = ffplayPath
	} else {
		e.logger.Debug().Err(err).Msg("ffplay unavailable, previews disabled")
	}

	return e, nil
}

// Run executes ffmpeg with the given arguments and streams progress
func (e *Executor) Run(ctx context.Context, opts RunOptions) error {
	if len(opts.Args) == 0 {
		return fmt.Errorf("no arguments provided")
	}

	baseArgs := []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "info", "-progress", "pipe:2"}
	args := append(baseArgs, opts.Args...)

	e.logger.Debug().
		Str("cmd", "ffmpeg").
		Strs("args", args).
		Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	tail := newTailBuffer(20)

	// Stream stderr (progress + logs)
	go func() {
		defer wg.Done()
		e.streamOutput(stderr, opts.Total, opts.ProgressHandler, func(line string) {
			tail.add(line)
			if opts.LogHandler != nil {
				opts.LogHandler(line)
			}
		})
	}()

	// Stream stdout
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if opts.LogHandler != nil {
				opts.LogHandler(scanner.Text())
			}
		}
	}()

	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg execution failed: %w: %s", err, tail.String())
	}

	e.logger.Debug().Msg("ffmpeg execution completed")
	return nil
}

// Play shows a media file with ffplay and returns when playback ends
func (e *Executor) Play(ctx context.Context, path, title string) error {
	if e.ffplayPath == "" {
		return ErrNoPlayer
	}

	args := []string{"-autoexit", "-hide_banner", "-loglevel", "error", "-window_title", title, path}
	e.logger.Debug().Str("cmd", "ffplay").Strs("args", args).Msg("starting preview playback")

	out, err := exec.CommandContext(ctx, e.ffplayPath, args...).CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffplay failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// streamOutput parses ffmpeg output and calls handlers
func (e *Executor) streamOutput(r io.Reader, total time.Duration, progressHandler func(*Progress), logHandler func(string)) {
	scanner := bufio.NewScanner(r)
	progressData := &Progress{}

	for scanner.Scan() {
		line := scanner.Text()

		if logHandler != nil {
			logHandler(line)
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch key {
		case "frame":
			progressData.Frame, _ = strconv.Atoi(value)
		case "fps":
			progressData.FPS, _ = strconv.ParseFloat(value, 64)
		case "bitrate":
			progressData.Bitrate = value
		case "out_time_us":
			if us, err := strconv.ParseInt(value, 10, 64); err == nil {
				progressData.OutTime = time.Duration(us) * time.Microsecond
			}
		case "out_time":
			progressData.Time = value
		case "speed":
			progressData.Speed = value
		case "progress":
			// End of progress block
			if total > 0 {
				progressData.Percentage = min(100, 100*progressData.OutTime.Seconds()/total.Seconds())
			}
			progressData.Done = value == "end"
			if progressHandler != nil {
				progressHandler(progressData)
			}
			progressData = &Progress{}
		}
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// tailBuffer keeps the last n log lines for error reports
type tailBuffer struct {
	mu    sync.Mutex
	lines []string
	n     int
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) add(line string) {
	if strings.Contains(line, "=") && !strings.Contains(line, " ") {
		// progress key=value pairs
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.lines, "\n")
}
