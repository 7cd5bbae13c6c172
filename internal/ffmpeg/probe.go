package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/h2non/filetype"

	"github.com/kikiluvv/lofiloop/internal/clips"
	"github.com/kikiluvv/lofiloop/pkg/util"
)

// ProbeMedia extracts metadata from a media file
func (e *Executor) ProbeMedia(ctx context.Context, filePath string) (*MediaInfo, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path is required")
	}

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbe(filePath, output)
}

// Decode probes path and returns it as a clip. Files whose magic bytes
// identify them as something other than audio or video are rejected before
// ffprobe runs.
func (e *Executor) Decode(ctx context.Context, path string) (*clips.Clip, error) {
	if err := sniffMedia(path); err != nil {
		return nil, err
	}

	info, err := e.ProbeMedia(ctx, path)
	if err != nil {
		return nil, err
	}

	clip, err := clipFromInfo(info)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("path", path).
		Str("kind", string(clip.Kind)).
		Dur("duration", clip.Duration).
		Msg("decoded media")

	return clip, nil
}

func clipFromInfo(info *MediaInfo) (*clips.Clip, error) {
	if info.Duration <= 0 {
		return nil, fmt.Errorf("%s: media has no duration", info.FilePath)
	}

	clip := &clips.Clip{
		ID:       info.FilePath,
		Path:     info.FilePath,
		Duration: info.Duration,
		Width:    info.Width,
		Height:   info.Height,
		FPS:      info.FPS,
		HasAudio: info.HasAudio,
	}

	switch {
	case info.HasVideo:
		clip.Kind = clips.KindVideo
	case info.HasAudio:
		clip.Kind = clips.KindAudio
	default:
		return nil, fmt.Errorf("%s: no audio or video streams", info.FilePath)
	}

	return clip, nil
}

func sniffMedia(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, 262)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("read %s: %w", path, err)
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		// leave unrecognised containers to ffprobe
		return nil
	}
	if !filetype.IsVideo(head) && !filetype.IsAudio(head) {
		return fmt.Errorf("%s: not a media file (detected %s)", path, kind.MIME.Value)
	}
	return nil
}

func parseProbe(filePath string, output []byte) (*MediaInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &MediaInfo{
		FilePath: filePath,
	}

	// Parse duration
	if dur, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(dur * float64(time.Second))
	}

	// Parse bitrate
	if br, err := strconv.ParseInt(probe.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = br
	}

	for _, stream := range probe.Streams {
		switch stream.CodecType {
		case "video":
			// embedded cover art in audio files shows up as a one-frame video stream
			if stream.Disposition.AttachedPic == 1 {
				continue
			}
			info.HasVideo = true
			info.Width = stream.Width
			info.Height = stream.Height
			info.VideoCodec = stream.CodecName

			// Calculate FPS from r_frame_rate (e.g., "30/1")
			if stream.RFrameRate != "" {
				info.FPS = util.ParseFrameRate(stream.RFrameRate)
			}
		case "audio":
			info.HasAudio = true
			info.AudioCodec = stream.CodecName
			if br, err := strconv.ParseInt(stream.BitRate, 10, 64); err == nil {
				info.AudioBitrate = br
			}
			if sr, err := strconv.Atoi(stream.SampleRate); err == nil {
				info.SampleRate = sr
			}
		}
	}

	return info, nil
}

// probeResult matches ffprobe JSON output structure
type probeResult struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType   string `json:"codec_type"`
		CodecName   string `json:"codec_name"`
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		RFrameRate  string `json:"r_frame_rate"`
		BitRate     string `json:"bit_rate"`
		SampleRate  string `json:"sample_rate"`
		Disposition struct {
			AttachedPic int `json:"attached_pic"`
		} `json:"disposition"`
	} `json:"streams"`
}
