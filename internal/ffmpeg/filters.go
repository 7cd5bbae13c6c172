package ffmpeg

import (
	"fmt"
	"strings"
	"time"

	"github.com/kikiluvv/lofiloop/pkg/util"
)

// FilterBuilder helps construct ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// Scale adds a scale filter. A height of -2 keeps the aspect ratio with an even height.
func (fb *FilterBuilder) Scale(width, height int) *FilterBuilder {
	if width <= 0 || height == 0 || height < -2 {
		// Return self without adding filter - allows chaining to continue
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", width, height))
	return fb
}

// FPS adds an fps filter
func (fb *FilterBuilder) FPS(fps float64) *FilterBuilder {
	if fps <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("fps=%s", formatFloat(fps)))
	return fb
}

// Format adds a pixel format conversion
func (fb *FilterBuilder) Format(pixFmt string) *FilterBuilder {
	if pixFmt == "" {
		return fb
	}
	fb.filters = append(fb.filters, "format="+pixFmt)
	return fb
}

// FadeIn ramps the picture in over d starting at start. With alpha the ramp
// drives transparency instead of blending towards black.
func (fb *FilterBuilder) FadeIn(start, d time.Duration, alpha bool) *FilterBuilder {
	return fb.fade("in", start, d, alpha)
}

// FadeOut ramps the picture out over d starting at start
func (fb *FilterBuilder) FadeOut(start, d time.Duration, alpha bool) *FilterBuilder {
	return fb.fade("out", start, d, alpha)
}

func (fb *FilterBuilder) fade(dir string, start, d time.Duration, alpha bool) *FilterBuilder {
	if d <= 0 {
		return fb
	}
	f := fmt.Sprintf("fade=t=%s:st=%s:d=%s", dir, util.FormatSeconds(start), util.FormatSeconds(d))
	if alpha {
		f += ":alpha=1"
	}
	fb.filters = append(fb.filters, f)
	return fb
}

// AudioFadeIn ramps gain in over d starting at start
func (fb *FilterBuilder) AudioFadeIn(start, d time.Duration) *FilterBuilder {
	if d <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("afade=t=in:st=%s:d=%s", util.FormatSeconds(start), util.FormatSeconds(d)))
	return fb
}

// AudioFadeOut ramps gain out over d starting at start
func (fb *FilterBuilder) AudioFadeOut(start, d time.Duration) *FilterBuilder {
	if d <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("afade=t=out:st=%s:d=%s", util.FormatSeconds(start), util.FormatSeconds(d)))
	return fb
}

// Custom adds a custom filter string
func (fb *FilterBuilder) Custom(filter string) *FilterBuilder {
	fb.filters = append(fb.filters, filter)
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

// FilterGraph assembles a -filter_complex graph from labelled chains
type FilterGraph struct {
	chains []string
}

// Chain adds "[in1][in2]filters[out]" to the graph
func (g *FilterGraph) Chain(inputs []string, filters string, output string) *FilterGraph {
	var b strings.Builder
	for _, in := range inputs {
		b.WriteString("[" + in + "]")
	}
	b.WriteString(filters)
	if output != "" {
		b.WriteString("[" + output + "]")
	}
	g.chains = append(g.chains, b.String())
	return g
}

// Len returns the number of chains
func (g *FilterGraph) Len() int {
	return len(g.chains)
}

// String joins chains with semicolons
func (g *FilterGraph) String() string {
	return strings.Join(g.chains, ";")
}

func formatFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", f), "0"), ".")
}
