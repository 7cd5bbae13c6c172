package clips

import (
	"context"
	"fmt"
	"time"
)

// Kind tells whether a clip carries picture or sound
type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Clip is an immutable handle to a decoded media file.
// The encoder samples it by re-reading Path.
type Clip struct {
	ID       string
	Path     string
	Kind     Kind
	Duration time.Duration
	Width    int
	Height   int
	FPS      float64
	HasAudio bool
}

// Decoder turns a file path into a Clip with a known duration
type Decoder interface {
	Decode(ctx context.Context, path string) (*Clip, error)
}

// String implements fmt.Stringer for log output
func (c *Clip) String() string {
	return fmt.Sprintf("%s (%s, %s)", c.Path, c.Kind, c.Duration)
}
