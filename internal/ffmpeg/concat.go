package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ConcatOptions defines concatenation parameters
type ConcatOptions struct {
	Inputs []string
	Output string
	// Dir holds the generated list file; the system temp dir when empty
	Dir          string
	Total        time.Duration
	ProgressFunc ProgressFunc
}

// Concat joins identically encoded video files without re-encoding. An
// input may be listed any number of times.
func (e *Executor) Concat(ctx context.Context, opts ConcatOptions) error {
	if len(opts.Inputs) == 0 {
		return fmt.Errorf("no input files provided")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Info().
		Int("inputs", len(opts.Inputs)).
		Str("output", opts.Output).
		Msg("concatenating videos")

	concatFile, err := createConcatFile(opts.Dir, opts.Inputs)
	if err != nil {
		return fmt.Errorf("failed to create concat file: %w", err)
	}
	defer os.Remove(concatFile)

	args := []string{
		"-f", "concat",
		"-safe", "0",
		"-i", concatFile,
		"-c", "copy",
		"-an",
		opts.Output,
	}

	runOpts := RunOptions{
		Args:            args,
		Total:           opts.Total,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("concatenating")
		},
	}

	return e.Run(ctx, runOpts)
}

// createConcatFile generates a file list for the concat demuxer
func createConcatFile(dir string, inputs []string) (string, error) {
	tmpFile, err := os.CreateTemp(dir, "lofiloop-concat-*.txt")
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	for _, input := range inputs {
		absPath, err := filepath.Abs(input)
		if err != nil {
			return "", err
		}
		if _, err := fmt.Fprintf(tmpFile, "file '%s'\n", escapeConcatPath(absPath)); err != nil {
			return "", err
		}
	}

	return tmpFile.Name(), nil
}

// escapeConcatPath quotes a path for a single-quoted concat list entry
func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}
