package ffmpeg

import (
	"math"
	"time"

	"github.com/kikiluvv/lofiloop/internal/clips"
	"github.com/kikiluvv/lofiloop/internal/timeline"
)

// loopPlan is a video timeline that repeats one clip at a fixed period with
// equal crossfades. Such a timeline renders as intro + unit*(count-1) + outro:
//
//	intro  clip[0,P) faded in from black
//	unit   crossfade of clip[P,D) into clip[0,F), then clip[F,P)
//	outro  clip[P,D) faded out to black
//
// which only holds while at most two copies overlap, i.e. P >= F.
type loopPlan struct {
	clip   *clips.Clip
	count  int
	period time.Duration
	fade   time.Duration
}

// Duration is the length of the rendered loop
func (p loopPlan) Duration() time.Duration {
	return time.Duration(p.count)*p.period + p.fade
}

// renderedDuration estimates the encoded length of the loop at fps. Each
// piece is cut to whole frames, so a period that is not frame aligned
// drifts once per repetition.
func (p loopPlan) renderedDuration(fps float64) time.Duration {
	unit := frameAligned(p.period, fps)
	return time.Duration(p.count)*unit + frameAligned(p.fade, fps)
}

// frameAligned rounds d up to a whole number of frames at fps
func frameAligned(d time.Duration, fps float64) time.Duration {
	if fps <= 0 {
		return d
	}
	frames := math.Ceil(math.Round(d.Seconds()*fps*1e6) / 1e6)
	return time.Duration(math.Round(frames / fps * float64(time.Second)))
}

// detectLoop reports whether tl is a uniform loop that can be rendered
// piecewise
func detectLoop(tl *timeline.Timeline) (loopPlan, bool) {
	if tl.Len() == 0 {
		return loopPlan{}, false
	}

	first := tl.Segments[0]
	if first.Clip == nil || first.Start != 0 {
		return loopPlan{}, false
	}

	fade := first.FadeIn
	period := first.Clip.Duration - fade
	if fade <= 0 || period < fade {
		return loopPlan{}, false
	}

	for i, seg := range tl.Segments {
		if seg.Clip == nil || seg.Clip.Path != first.Clip.Path || seg.Clip.Duration != first.Clip.Duration {
			return loopPlan{}, false
		}
		if seg.FadeIn != fade || seg.FadeOut != fade {
			return loopPlan{}, false
		}
		if seg.Start != time.Duration(i)*period {
			return loopPlan{}, false
		}
	}

	return loopPlan{
		clip:   first.Clip,
		count:  tl.Len(),
		period: period,
		fade:   fade,
	}, true
}

// isSequential reports whether segments follow each other back to back from zero
func isSequential(tl *timeline.Timeline) bool {
	var pos time.Duration
	for _, seg := range tl.Segments {
		if seg.Start != pos {
			return false
		}
		pos = seg.End()
	}
	return true
}

// frameSize returns the clip's dimensions, falling back to 1080p when
// the probe did not report any
func frameSize(c *clips.Clip) (int, int) {
	if c != nil && c.Width > 0 && c.Height > 0 {
		return c.Width, c.Height
	}
	return DefaultWidth, DefaultHeight
}

// frameRate picks the output rate: configured, then source, then default
func frameRate(enc timeline.Encoding, c *clips.Clip) float64 {
	if enc.FPS > 0 {
		return enc.FPS
	}
	if c != nil && c.FPS > 0 {
		return c.FPS
	}
	return DefaultFPS
}
