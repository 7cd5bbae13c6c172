package ffmpeg

import (
	"context"
	"fmt"
	"time"

	ffmpeggo "github.com/u2takey/ffmpeg-go"

	"github.com/kikiluvv/lofiloop/pkg/util"
)

// ExtractFrame writes the frame at timestamp as a JPEG still
func (e *Executor) ExtractFrame(ctx context.Context, input, output string, timestamp time.Duration) error {
	if input == "" {
		return fmt.Errorf("input path is required")
	}
	if output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Debug().
		Str("input", input).
		Str("output", output).
		Dur("timestamp", timestamp).
		Msg("extracting frame")

	opts := RunOptions{
		Args: frameArgs(input, output, timestamp),
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("frame extraction")
		},
	}

	return e.Run(ctx, opts)
}

func frameArgs(input, output string, timestamp time.Duration) []string {
	return ffmpeggo.
		Input(input, ffmpeggo.KwArgs{"ss": util.FormatSeconds(timestamp)}).
		Output(output, ffmpeggo.KwArgs{"vframes": 1, "q:v": 2}).
		GetArgs()
}
