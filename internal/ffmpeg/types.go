package ffmpeg

import "time"

// MediaInfo contains metadata about a media file
type MediaInfo struct {
	FilePath     string
	Duration     time.Duration
	HasVideo     bool
	Width        int
	Height       int
	FPS          float64
	Bitrate      int64
	VideoCodec   string
	HasAudio     bool
	AudioCodec   string
	AudioBitrate int64
	SampleRate   int
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame      int
	FPS        float64
	Bitrate    string
	Time       string
	OutTime    time.Duration
	Speed      string
	Percentage float64
	Done       bool
}

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args []string
	// Total is the expected output length, used to fill Progress.Percentage
	Total           time.Duration
	ProgressHandler func(*Progress)
	LogHandler      func(line string)
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called periodically with progress information as the operation executes.
type ProgressFunc func(*Progress)

// Default encoding settings
const (
	DefaultVideoCodec   = "libx264"
	DefaultAudioCodec   = "aac"
	DefaultAudioBitrate = "192k"
	DefaultPixelFormat  = "yuv420p"
	DefaultWidth        = 1920
	DefaultHeight       = 1080
	DefaultFPS          = 30
	DefaultSampleRate   = 44100
)
