package timeline

import (
	"sort"
	"time"

	"github.com/kikiluvv/lofiloop/internal/clips"
)

// Segment places a whole clip on a timeline. FadeIn and FadeOut are the
// lengths of the opacity/gain ramps on its leading and trailing edges.
type Segment struct {
	Clip    *clips.Clip
	Start   time.Duration
	FadeIn  time.Duration
	FadeOut time.Duration
}

// End returns the timeline position where the segment stops
func (s Segment) End() time.Duration {
	return s.Start + s.Clip.Duration
}

// Timeline is one render track. Segments may overlap; overlap is how
// crossfades are expressed.
type Timeline struct {
	Kind     clips.Kind
	Segments []Segment
}

// New creates an empty timeline of the given kind
func New(kind clips.Kind) *Timeline {
	return &Timeline{Kind: kind}
}

// Append places a segment on the timeline
func (t *Timeline) Append(seg Segment) {
	t.Segments = append(t.Segments, seg)
}

// Len returns the number of segments
func (t *Timeline) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Segments)
}

// Duration is the end of the latest segment
func (t *Timeline) Duration() time.Duration {
	if t == nil {
		return 0
	}
	var end time.Duration
	for _, seg := range t.Segments {
		if e := seg.End(); e > end {
			end = e
		}
	}
	return end
}

// Interval is a half-open span [Start, End)
type Interval struct {
	Start time.Duration
	End   time.Duration
}

// Gaps reports the spans inside [0, Duration()) that no segment covers
func (t *Timeline) Gaps() []Interval {
	if t.Len() == 0 {
		return nil
	}

	var gaps []Interval
	var covered time.Duration
	for _, seg := range sortedByStart(t.Segments) {
		if seg.Start > covered {
			gaps = append(gaps, Interval{Start: covered, End: seg.Start})
		}
		if e := seg.End(); e > covered {
			covered = e
		}
	}
	return gaps
}

// Truncate returns a copy holding only the segments that begin before limit.
// Segment lengths are left alone; encoders bound the output themselves.
func (t *Timeline) Truncate(limit time.Duration) *Timeline {
	out := New(t.Kind)
	for _, seg := range t.Segments {
		if seg.Start < limit {
			out.Append(seg)
		}
	}
	return out
}

func sortedByStart(segs []Segment) []Segment {
	out := make([]Segment, len(segs))
	copy(out, segs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
