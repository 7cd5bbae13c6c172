package pipeline

import (
	"fmt"
	"time"

	"github.com/kikiluvv/lofiloop/internal/clips"
	"github.com/kikiluvv/lofiloop/internal/timeline"
)

// ComposeLoop repeats clip every clip.Duration-fade so consecutive copies
// overlap by fade, each copy fading in over its first fade and out over its
// last. It places floor(target/period) copies, so the timeline ends at
// N*period+fade and may fall short of target. When target is shorter than
// one period a single copy is placed.
func ComposeLoop(clip *clips.Clip, target, fade time.Duration) (*timeline.Timeline, error) {
	if clip == nil {
		return nil, fmt.Errorf("%w: clip is nil", ErrInvalidParameters)
	}
	if clip.Kind != clips.KindVideo {
		return nil, fmt.Errorf("%w: %s is %s, not video", ErrInvalidParameters, clip.Path, clip.Kind)
	}
	if fade <= 0 {
		return nil, fmt.Errorf("%w: fade duration %s must be positive", ErrInvalidParameters, fade)
	}
	if target <= 0 {
		return nil, fmt.Errorf("%w: target duration %s must be positive", ErrInvalidParameters, target)
	}
	if clip.Duration <= fade {
		return nil, fmt.Errorf("%w: clip duration %s must exceed fade duration %s",
			ErrInvalidParameters, clip.Duration, fade)
	}

	period := LoopPeriod(clip.Duration, fade)
	n := int(target / period)
	if n == 0 {
		n = 1
	}

	tl := timeline.New(clips.KindVideo)
	tl.Segments = make([]timeline.Segment, 0, n)
	for i := 0; i < n; i++ {
		tl.Append(timeline.Segment{
			Clip:    clip,
			Start:   time.Duration(i) * period,
			FadeIn:  fade,
			FadeOut: fade,
		})
	}

	return tl, nil
}

// LoopPeriod is the advance between consecutive loop repetitions
func LoopPeriod(clipDuration, fade time.Duration) time.Duration {
	return clipDuration - fade
}
