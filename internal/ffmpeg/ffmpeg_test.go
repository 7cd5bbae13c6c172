package ffmpeg

import (
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kikiluvv/lofiloop/internal/clips"
	"github.com/kikiluvv/lofiloop/internal/timeline"
)

// skipIfNoFFmpeg skips the test if ffmpeg is not available
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH - install with: brew install ffmpeg")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH - install with: brew install ffmpeg")
	}
}

// argValue returns the argument following the first occurrence of flag
func argValue(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func loopTimeline(clip *clips.Clip, n int, fade time.Duration) *timeline.Timeline {
	tl := timeline.New(clips.KindVideo)
	period := clip.Duration - fade
	for i := 0; i < n; i++ {
		tl.Append(timeline.Segment{Clip: clip, Start: time.Duration(i) * period, FadeIn: fade, FadeOut: fade})
	}
	return tl
}

func testClip(d time.Duration) *clips.Clip {
	return &clips.Clip{ID: "loop.mp4", Path: "/media/loop.mp4", Kind: clips.KindVideo, Duration: d, Width: 1280, Height: 720, FPS: 24}
}

func TestFilterBuilder(t *testing.T) {
	fb := NewFilterBuilder()
	filter := fb.Scale(1920, 1080).FPS(30).Build()

	expected := "scale=1920:1080,fps=30"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestFilterBuilderEmpty(t *testing.T) {
	fb := NewFilterBuilder()
	filter := fb.Build()

	if filter != "" {
		t.Errorf("expected empty string, got %q", filter)
	}
}

func TestFilterBuilderFades(t *testing.T) {
	filter := NewFilterBuilder().
		Format("yuva420p").
		FadeIn(24*time.Second, 6*time.Second, true).
		FadeOut(48*time.Second, 6*time.Second, true).
		Build()

	expected := "format=yuva420p,fade=t=in:st=24.000:d=6.000:alpha=1,fade=t=out:st=48.000:d=6.000:alpha=1"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestFilterBuilderSkipsZeroFades(t *testing.T) {
	filter := NewFilterBuilder().
		FadeIn(0, 0, false).
		AudioFadeIn(0, 0).
		AudioFadeOut(time.Minute, 2*time.Second).
		Build()

	expected := "afade=t=out:st=60.000:d=2.000"
	if filter != expected {
		t.Errorf("expected %q, got %q", expected, filter)
	}
}

func TestFilterBuilderRejectsBadScale(t *testing.T) {
	if got := NewFilterBuilder().Scale(0, 720).Scale(640, -3).Build(); got != "" {
		t.Errorf("expected no filters, got %q", got)
	}
	if got := NewFilterBuilder().Scale(640, -2).Build(); got != "scale=640:-2" {
		t.Errorf("unexpected scale filter %q", got)
	}
}

func TestFilterGraph(t *testing.T) {
	var g FilterGraph
	g.Chain([]string{"0:v"}, "format=yuv420p", "base").
		Chain([]string{"base", "l0"}, "overlay=eof_action=pass", "o0")

	assert.Equal(t, 2, g.Len())
	assert.Equal(t, "[0:v]format=yuv420p[base];[base][l0]overlay=eof_action=pass[o0]", g.String())
}

func TestDetectLoop(t *testing.T) {
	clip := testClip(30 * time.Second)

	plan, ok := detectLoop(loopTimeline(clip, 450, 6*time.Second))
	require.True(t, ok)
	assert.Equal(t, 450, plan.count)
	assert.Equal(t, 24*time.Second, plan.period)
	assert.Equal(t, 10806*time.Second, plan.Duration())
}

func TestDetectLoopRejects(t *testing.T) {
	clip := testClip(30 * time.Second)

	t.Run("empty", func(t *testing.T) {
		_, ok := detectLoop(timeline.New(clips.KindVideo))
		assert.False(t, ok)
	})

	t.Run("three copies overlap", func(t *testing.T) {
		_, ok := detectLoop(loopTimeline(clip, 4, 20*time.Second))
		assert.False(t, ok)
	})

	t.Run("uneven start", func(t *testing.T) {
		tl := loopTimeline(clip, 3, 6*time.Second)
		tl.Segments[2].Start += time.Second
		_, ok := detectLoop(tl)
		assert.False(t, ok)
	})

	t.Run("different clip", func(t *testing.T) {
		tl := loopTimeline(clip, 3, 6*time.Second)
		other := *clip
		other.Path = "/media/other.mp4"
		tl.Segments[1].Clip = &other
		_, ok := detectLoop(tl)
		assert.False(t, ok)
	})

	t.Run("no fade", func(t *testing.T) {
		_, ok := detectLoop(loopTimeline(clip, 3, 0))
		assert.False(t, ok)
	})
}

func TestLoopRenderedDuration(t *testing.T) {
	aligned := loopPlan{clip: testClip(30 * time.Second), count: 10, period: 24 * time.Second, fade: 6 * time.Second}
	assert.Equal(t, aligned.Duration(), aligned.renderedDuration(30))
	assert.Equal(t, aligned.Duration(), aligned.renderedDuration(24))

	// 10.01s is 300.3 frames at 30fps, so every piece rounds up to 301
	drifting := loopPlan{clip: testClip(16010 * time.Millisecond), count: 10, period: 10010 * time.Millisecond, fade: 6 * time.Second}
	assert.InDelta(t, 106.1, drifting.Duration().Seconds(), 1e-9)
	assert.InDelta(t, 106.3333, drifting.renderedDuration(30).Seconds(), 1e-3)

	assert.Equal(t, 1500*time.Millisecond, frameAligned(1500*time.Millisecond, 0))
	assert.Equal(t, 2*time.Second, frameAligned(2*time.Second, 30))
}

func TestIsSequential(t *testing.T) {
	a := &clips.Clip{Path: "a.mp3", Duration: time.Minute}
	b := &clips.Clip{Path: "b.mp3", Duration: 2 * time.Minute}

	tl := timeline.New(clips.KindAudio)
	tl.Append(timeline.Segment{Clip: a})
	tl.Append(timeline.Segment{Clip: b, Start: time.Minute})
	assert.True(t, isSequential(tl))

	tl.Segments[1].Start = 90 * time.Second
	assert.False(t, isSequential(tl))
}

func TestFrameDefaults(t *testing.T) {
	w, h := frameSize(&clips.Clip{})
	assert.Equal(t, DefaultWidth, w)
	assert.Equal(t, DefaultHeight, h)

	assert.Equal(t, 30.0, frameRate(timeline.Encoding{FPS: 30}, testClip(time.Minute)))
	assert.Equal(t, 24.0, frameRate(timeline.Encoding{}, testClip(time.Minute)))
	assert.Equal(t, float64(DefaultFPS), frameRate(timeline.Encoding{}, &clips.Clip{}))
}

func TestLoopPieceArgs(t *testing.T) {
	plan, ok := detectLoop(loopTimeline(testClip(30*time.Second), 10, 6*time.Second))
	require.True(t, ok)
	enc := timeline.Encoding{VideoCodec: "h264_nvenc", FPS: 30, Preset: "fast", Threads: 16}

	intro := introArgs(plan, enc, "intro.mp4")
	assert.Equal(t, "24.000", argValue(intro, "-t"))
	assert.Contains(t, argValue(intro, "-filter_complex"), "fade=t=in:st=0.000:d=6.000")
	assert.Equal(t, "h264_nvenc", argValue(intro, "-c:v"))
	assert.Equal(t, "fast", argValue(intro, "-preset"))
	assert.Equal(t, "16", argValue(intro, "-threads"))
	assert.Equal(t, "intro.mp4", intro[len(intro)-1])

	unit := unitArgs(plan, enc, "unit.mp4")
	graph := argValue(unit, "-filter_complex")
	assert.Equal(t, "24.000", argValue(unit, "-ss"))
	assert.Contains(t, graph, "fade=t=in:st=0.000:d=6.000:alpha=1[head]")
	assert.Contains(t, graph, "[tail][head]overlay=eof_action=pass,format=yuv420p[xfade]")
	assert.Contains(t, graph, "[xfade][body]concat=n=2:v=1:a=0[v]")
	assert.Equal(t, 3, strings.Count(strings.Join(unit, " "), " -i "))

	outro := outroArgs(plan, enc, "outro.mp4")
	assert.Equal(t, "24.000", argValue(outro, "-ss"))
	assert.Equal(t, "6.000", argValue(outro, "-t"))
	assert.Contains(t, argValue(outro, "-filter_complex"), "fade=t=out:st=0.000:d=6.000")
}

func TestUnitArgsWithoutBody(t *testing.T) {
	// D = 2F leaves no solo stretch between crossfades
	plan, ok := detectLoop(loopTimeline(testClip(12*time.Second), 3, 6*time.Second))
	require.True(t, ok)

	unit := unitArgs(plan, timeline.Encoding{}, "unit.mp4")
	graph := argValue(unit, "-filter_complex")
	assert.NotContains(t, graph, "concat")
	assert.Contains(t, graph, "[tail][head]overlay=eof_action=pass,format=yuv420p[v]")
	assert.Equal(t, DefaultVideoCodec, argValue(unit, "-c:v"))
}

func TestUnitCrossfadeKeepsOutgoingCopyOpaque(t *testing.T) {
	// 20s clip, 6s fade: the seam overlays clip[0,6) on clip[14,20)
	plan, ok := detectLoop(loopTimeline(testClip(20*time.Second), 5, 6*time.Second))
	require.True(t, ok)

	unit := unitArgs(plan, timeline.Encoding{FPS: 30}, "unit.mp4")
	graph := argValue(unit, "-filter_complex")

	assert.NotContains(t, graph, "fade=t=out", "no fade-out under the incoming copy")
	assert.NotContains(t, graph, "color=c=black")
	assert.Equal(t, "14.000", argValue(unit, "-ss"))

	chains := strings.Split(graph, ";")
	require.NotEmpty(t, chains)
	tail := chains[0]
	assert.True(t, strings.HasPrefix(tail, "[0:v]"))
	assert.True(t, strings.HasSuffix(tail, "[tail]"))
	assert.NotContains(t, tail, "fade")
	assert.Contains(t, tail, "format=yuv420p")

	// overlay blends head*a + tail*(1-a) with the head alpha ramp
	assert.Less(t, strings.Index(graph, "[head]"), strings.Index(graph, "[tail][head]overlay"))
}

func TestOverlayVideo(t *testing.T) {
	clip := testClip(30 * time.Second)
	tl := loopTimeline(clip, 2, 20*time.Second)

	c := &command{}
	label := overlayVideo(c, tl, tl.Duration(), 1280, 720, 30)
	graph := c.graph.String()

	assert.Equal(t, "vout", label)
	assert.Equal(t, 3, c.count)
	assert.Contains(t, graph, "setpts=PTS-STARTPTS+10.000/TB,fade=t=in:st=10.000:d=20.000:alpha=1,fade=t=out:st=20.000:d=20.000:alpha=1[l1]")
	assert.Contains(t, graph, "setpts=PTS-STARTPTS+0.000/TB,fade=t=in:st=0.000:d=20.000:alpha=1[l0]")
	assert.Contains(t, graph, "[o0][l1]overlay=eof_action=pass[o1]")
	assert.Contains(t, graph, "[o1]format=yuv420p[vout]")
}

func TestCoveredAtEnd(t *testing.T) {
	// three copies overlap when the fade exceeds the period
	dense := loopTimeline(testClip(4*time.Second), 3, 3*time.Second)
	assert.True(t, coveredAtEnd(dense, 0))
	assert.True(t, coveredAtEnd(dense, 1))
	assert.False(t, coveredAtEnd(dense, 2))

	clip := testClip(10 * time.Second)
	gapped := timeline.New(clips.KindVideo)
	gapped.Append(timeline.Segment{Clip: clip, Start: 0, FadeIn: time.Second, FadeOut: time.Second})
	gapped.Append(timeline.Segment{Clip: clip, Start: 10 * time.Second, FadeIn: time.Second, FadeOut: time.Second})
	assert.False(t, coveredAtEnd(gapped, 0), "back to back segments fade through black")

	c := &command{}
	overlayVideo(c, gapped, gapped.Duration(), 1280, 720, 30)
	assert.Equal(t, 2, strings.Count(c.graph.String(), "fade=t=out"))
}

func TestMixAudio(t *testing.T) {
	a := &clips.Clip{Path: "a.mp3", Duration: time.Minute}
	b := &clips.Clip{Path: "b.mp3", Duration: 2 * time.Minute}

	t.Run("sequential", func(t *testing.T) {
		tl := timeline.New(clips.KindAudio)
		tl.Append(timeline.Segment{Clip: a})
		tl.Append(timeline.Segment{Clip: b, Start: time.Minute})

		c := &command{}
		label := mixAudio(c, tl)
		graph := c.graph.String()

		assert.Equal(t, "aout", label)
		assert.Contains(t, graph, "[a0][a1]concat=n=2:v=0:a=1[aout]")
		assert.NotContains(t, graph, "adelay")
	})

	t.Run("overlapping", func(t *testing.T) {
		tl := timeline.New(clips.KindAudio)
		tl.Append(timeline.Segment{Clip: a, FadeOut: 5 * time.Second})
		tl.Append(timeline.Segment{Clip: b, Start: 55 * time.Second, FadeIn: 5 * time.Second})

		c := &command{}
		mixAudio(c, tl)
		graph := c.graph.String()

		assert.Contains(t, graph, "afade=t=out:st=55.000:d=5.000[a0]")
		assert.Contains(t, graph, "afade=t=in:st=0.000:d=5.000,adelay=55000:all=1[a1]")
		assert.Contains(t, graph, "amix=inputs=2:duration=longest:normalize=0[aout]")
	})
}

func TestMuxArgs(t *testing.T) {
	args := muxArgs("video.mp4", "audio.m4a", 10806*time.Second, ".lofi_video.mp4123")
	assert.Equal(t, []string{
		"-i", "video.mp4",
		"-i", "audio.m4a",
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c", "copy",
		"-t", "10806.000",
		"-f", "mp4",
		".lofi_video.mp4123",
	}, args)

	silent := muxArgs("video.mp4", "", time.Minute, "out")
	assert.NotContains(t, silent, "1:a:0")
	assert.Equal(t, 1, strings.Count(strings.Join(silent, " "), "-i "))
}

func TestPreviewArgs(t *testing.T) {
	clip := testClip(30 * time.Second)
	song := &clips.Clip{Path: "song.mp3", Kind: clips.KindAudio, Duration: 3 * time.Minute}
	audio := timeline.New(clips.KindAudio)
	audio.Append(timeline.Segment{Clip: song})

	req := &timeline.RenderRequest{
		Composition: timeline.Composition{Video: loopTimeline(clip, 450, 6*time.Second), Audio: audio},
		OutputPath:  "out.mp4",
	}

	args := previewArgs(req, 20*time.Second, 640, "preview.mp4")
	graph := argValue(args, "-filter_complex")

	// only the first copy starts inside a 20s excerpt
	assert.Contains(t, graph, "[l0]")
	assert.NotContains(t, graph, "[l1]")
	assert.Contains(t, graph, "[vout]scale=640:-2[pv]")
	assert.Contains(t, args, "[aout]")
	assert.Equal(t, "ultrafast", argValue(args, "-preset"))
	assert.Equal(t, "20.000", argValue(args, "-t"))
}

func TestPosterTime(t *testing.T) {
	clip := testClip(30 * time.Second)

	assert.Equal(t, 27*time.Second, posterTime(loopTimeline(clip, 3, 6*time.Second), time.Minute))
	assert.Equal(t, 10*time.Second, posterTime(loopTimeline(clip, 3, 6*time.Second), 20*time.Second))
	assert.Equal(t, 5*time.Second, posterTime(loopTimeline(clip, 1, 6*time.Second), 10*time.Second))
}

func TestFrameArgs(t *testing.T) {
	args := frameArgs("preview.mp4", "poster.jpg", 1500*time.Millisecond)

	assert.Equal(t, "1.500", argValue(args, "-ss"))
	assert.Equal(t, "preview.mp4", argValue(args, "-i"))
	assert.Equal(t, "1", argValue(args, "-vframes"))
	assert.Equal(t, "poster.jpg", args[len(args)-1])
	assert.Less(t, slices.Index(args, "-ss"), slices.Index(args, "-i"))
}

func TestCreateConcatFile(t *testing.T) {
	dir := t.TempDir()
	unit := filepath.Join(dir, "it's.mp4")

	list, err := createConcatFile(dir, []string{unit, unit})
	require.NoError(t, err)

	data, err := os.ReadFile(list)
	require.NoError(t, err)

	line := "file '" + strings.ReplaceAll(unit, "'", `'\''`) + "'\n"
	assert.Equal(t, line+line, string(data))
}

func TestStreamOutputProgress(t *testing.T) {
	e := &Executor{logger: zerolog.Nop()}
	output := strings.Join([]string{
		"Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'in.mp4':",
		"frame=150",
		"fps=75.00",
		"bitrate=1024.0kbits/s",
		"out_time_us=5000000",
		"out_time=00:00:05.000000",
		"speed=2.5x",
		"progress=continue",
		"frame=300",
		"out_time_us=10000000",
		"progress=end",
	}, "\n")

	var got []Progress
	var lines int
	e.streamOutput(strings.NewReader(output), 10*time.Second, func(p *Progress) {
		got = append(got, *p)
	}, func(string) { lines++ })

	require.Len(t, got, 2)
	assert.Equal(t, 150, got[0].Frame)
	assert.Equal(t, 75.0, got[0].FPS)
	assert.Equal(t, 5*time.Second, got[0].OutTime)
	assert.Equal(t, "2.5x", got[0].Speed)
	assert.InDelta(t, 50.0, got[0].Percentage, 0.001)
	assert.False(t, got[0].Done)

	assert.Equal(t, 300, got[1].Frame)
	assert.InDelta(t, 100.0, got[1].Percentage, 0.001)
	assert.True(t, got[1].Done)
	assert.Equal(t, 11, lines)
}

func TestTailBuffer(t *testing.T) {
	tail := newTailBuffer(2)
	tail.add("Stream mapping:")
	tail.add("frame=12")
	tail.add("Error while opening encoder")
	tail.add("Conversion failed!")

	assert.Equal(t, "Error while opening encoder\nConversion failed!", tail.String())
}

func TestProgressLoggerSteps(t *testing.T) {
	var buf strings.Builder
	enc := &Encoder{logger: zerolog.New(&buf)}
	log := enc.progressLogger("video")

	for _, pct := range []float64{3, 9, 12, 15, 38, 99} {
		log(&Progress{Percentage: pct})
	}
	log(&Progress{Percentage: 100, Done: true})

	assert.Equal(t, 4, strings.Count(buf.String(), "render progress"))
}

func TestParseProbe(t *testing.T) {
	output := []byte(`{
		"format": {"duration": "183.250000", "bit_rate": "192000"},
		"streams": [
			{"codec_type": "audio", "codec_name": "mp3", "bit_rate": "192000", "sample_rate": "44100"},
			{"codec_type": "video", "codec_name": "mjpeg", "width": 500, "height": 500, "r_frame_rate": "90000/1", "disposition": {"attached_pic": 1}}
		]
	}`)

	info, err := parseProbe("song.mp3", output)
	require.NoError(t, err)
	assert.Equal(t, 183250*time.Millisecond, info.Duration)
	assert.True(t, info.HasAudio)
	assert.False(t, info.HasVideo, "cover art is not a video stream")
	assert.Equal(t, 44100, info.SampleRate)

	clip, err := clipFromInfo(info)
	require.NoError(t, err)
	assert.Equal(t, clips.KindAudio, clip.Kind)
}

func TestParseProbeVideo(t *testing.T) {
	output := []byte(`{
		"format": {"duration": "30.000000"},
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001"}
		]
	}`)

	info, err := parseProbe("loop.mp4", output)
	require.NoError(t, err)

	clip, err := clipFromInfo(info)
	require.NoError(t, err)
	assert.Equal(t, clips.KindVideo, clip.Kind)
	assert.Equal(t, 30*time.Second, clip.Duration)
	assert.Equal(t, 1920, clip.Width)
	assert.InDelta(t, 29.97, clip.FPS, 0.01)
	assert.False(t, clip.HasAudio)
}

func TestParseProbeErrors(t *testing.T) {
	_, err := parseProbe("x", []byte("not json"))
	assert.Error(t, err)

	_, err = clipFromInfo(&MediaInfo{FilePath: "x", HasAudio: true})
	assert.Error(t, err, "zero duration")

	_, err = clipFromInfo(&MediaInfo{FilePath: "x", Duration: time.Second})
	assert.Error(t, err, "no streams")
}

func TestSniffMedia(t *testing.T) {
	dir := t.TempDir()

	png := filepath.Join(dir, "cover.mp3")
	require.NoError(t, os.WriteFile(png, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0644))
	assert.Error(t, sniffMedia(png))

	unknown := filepath.Join(dir, "raw.mp3")
	require.NoError(t, os.WriteFile(unknown, []byte("not recognisable"), 0644))
	assert.NoError(t, sniffMedia(unknown))

	assert.Error(t, sniffMedia(filepath.Join(dir, "missing.mp3")))
}

func TestValidateRequest(t *testing.T) {
	assert.Error(t, validateRequest(nil))
	assert.Error(t, validateRequest(&timeline.RenderRequest{OutputPath: "out.mp4"}))

	req := &timeline.RenderRequest{
		Composition: timeline.Composition{Video: loopTimeline(testClip(time.Minute), 1, time.Second)},
	}
	assert.Error(t, validateRequest(req))

	req.OutputPath = "out.mp4"
	assert.NoError(t, validateRequest(req))
}
