package timeline

import "time"

// Composition is a video timeline carrying one audio track
type Composition struct {
	Video *Timeline
	Audio *Timeline
}

// Duration is the length of the rendered output. The video track bounds
// it; a shorter audio track leaves silence, a longer one is cut.
func (c Composition) Duration() time.Duration {
	return c.Video.Duration()
}

// Encoding holds the fixed encoder parameters for a render
type Encoding struct {
	VideoCodec string
	AudioCodec string
	FPS        float64
	Preset     string
	Threads    int
}

// RenderRequest is everything an encoder needs to produce the output file
type RenderRequest struct {
	Composition Composition
	OutputPath  string
	Encoding    Encoding
}
