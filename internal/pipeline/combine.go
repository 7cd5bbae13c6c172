package pipeline

import "github.com/kikiluvv/lofiloop/internal/timeline"

// Combine attaches audio as the sound track of video. Lengths are not
// reconciled.
func Combine(video, audio *timeline.Timeline) timeline.Composition {
	return timeline.Composition{Video: video, Audio: audio}
}
