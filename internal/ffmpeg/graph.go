package ffmpeg

import (
	"fmt"
	"strconv"
	"time"

	"github.com/kikiluvv/lofiloop/internal/timeline"
	"github.com/kikiluvv/lofiloop/pkg/util"
)

// command accumulates ffmpeg inputs and a filter_complex graph
type command struct {
	inputs []string
	count  int
	graph  FilterGraph
}

// input appends one input; opts are placed before -i. It returns the input index.
func (c *command) input(path string, opts ...string) int {
	c.inputs = append(c.inputs, opts...)
	c.inputs = append(c.inputs, "-i", path)
	c.count++
	return c.count - 1
}

// blank adds a black lavfi source of the given size and length
func (c *command) blank(w, h int, fps float64, d time.Duration) int {
	src := fmt.Sprintf("color=c=black:s=%dx%d:r=%s:d=%s", w, h, formatFloat(fps), util.FormatSeconds(d))
	return c.input(src, "-f", "lavfi")
}

// args returns the inputs followed by the filter graph, if any
func (c *command) args() []string {
	args := append([]string(nil), c.inputs...)
	if c.graph.Len() > 0 {
		args = append(args, "-filter_complex", c.graph.String())
	}
	return args
}

func stream(index int, kind string) string {
	return strconv.Itoa(index) + ":" + kind
}

// overlayVideo stacks every segment of tl over a black canvas, each one
// shifted to its start and faded in through alpha. Later segments sit on
// top, so a segment only fades out where nothing covers it; underneath a
// fading-in layer it stays opaque and the two weights sum to one.
// It returns the label of the composed stream.
func overlayVideo(c *command, tl *timeline.Timeline, total time.Duration, w, h int, fps float64) string {
	base := c.blank(w, h, fps, total)
	current := "base"
	c.graph.Chain([]string{stream(base, "v")}, NewFilterBuilder().Format(DefaultPixelFormat).Custom("setsar=1").Build(), current)

	for i, seg := range tl.Segments {
		in := c.input(seg.Clip.Path)
		layer := fmt.Sprintf("l%d", i)

		fb := NewFilterBuilder().
			FPS(fps).
			Scale(w, h).
			Custom("setsar=1").
			Format("yuva420p").
			Custom(fmt.Sprintf("setpts=PTS-STARTPTS+%s/TB", util.FormatSeconds(seg.Start))).
			FadeIn(seg.Start, seg.FadeIn, true)
		if !coveredAtEnd(tl, i) {
			fb.FadeOut(seg.End()-seg.FadeOut, seg.FadeOut, true)
		}
		c.graph.Chain([]string{stream(in, "v")}, fb.Build(), layer)

		next := fmt.Sprintf("o%d", i)
		c.graph.Chain([]string{current, layer}, "overlay=eof_action=pass", next)
		current = next
	}

	out := "vout"
	c.graph.Chain([]string{current}, NewFilterBuilder().Format(DefaultPixelFormat).Build(), out)
	return out
}

// coveredAtEnd reports whether a later segment starts before segment i ends
func coveredAtEnd(tl *timeline.Timeline, i int) bool {
	end := tl.Segments[i].End()
	for _, later := range tl.Segments[i+1:] {
		if later.Start < end {
			return true
		}
	}
	return false
}

// mixAudio lays the audio segments of tl out in time. Back to back
// playlists are joined with the concat filter; anything else is delayed
// into place and summed. It returns the label of the mixed stream.
func mixAudio(c *command, tl *timeline.Timeline) string {
	labels := make([]string, 0, tl.Len())
	sequential := isSequential(tl)

	for i, seg := range tl.Segments {
		in := c.input(seg.Clip.Path)
		label := fmt.Sprintf("a%d", i)

		fb := NewFilterBuilder().
			Custom(fmt.Sprintf("aformat=sample_fmts=fltp:sample_rates=%d:channel_layouts=stereo", DefaultSampleRate)).
			AudioFadeIn(0, seg.FadeIn).
			AudioFadeOut(seg.Clip.Duration-seg.FadeOut, seg.FadeOut)
		if !sequential && seg.Start > 0 {
			fb.Custom(fmt.Sprintf("adelay=%d:all=1", seg.Start.Milliseconds()))
		}

		c.graph.Chain([]string{stream(in, "a")}, fb.Build(), label)
		labels = append(labels, label)
	}

	out := "aout"
	if sequential {
		c.graph.Chain(labels, fmt.Sprintf("concat=n=%d:v=0:a=1", len(labels)), out)
	} else {
		c.graph.Chain(labels, fmt.Sprintf("amix=inputs=%d:duration=longest:normalize=0", len(labels)), out)
	}
	return out
}

// videoCodecArgs returns the output options shared by every video encode
func videoCodecArgs(enc timeline.Encoding) []string {
	args := []string{"-c:v", orDefault(enc.VideoCodec, DefaultVideoCodec), "-pix_fmt", DefaultPixelFormat}
	if enc.Preset != "" {
		args = append(args, "-preset", enc.Preset)
	}
	if enc.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(enc.Threads))
	}
	return args
}

func audioCodecArgs(enc timeline.Encoding) []string {
	return []string{"-c:a", orDefault(enc.AudioCodec, DefaultAudioCodec), "-b:a", DefaultAudioBitrate}
}
