package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// EnvPrefix prefixes every environment override
const EnvPrefix = "LOFILOOP_"

// Config holds all application configuration
type Config struct {
	// Core settings
	Concurrency int `yaml:"concurrency"`

	// Input and output locations
	Paths PathsConfig `yaml:"paths"`

	// Timeline lengths
	Durations DurationsConfig `yaml:"durations"`

	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Preview settings
	Preview PreviewConfig `yaml:"preview"`

	// Render gate settings
	Render RenderConfig `yaml:"render"`
}

type PathsConfig struct {
	VideoFolder       string `yaml:"video_folder" env:"VIDEO_FOLDER"`
	VideoFile         string `yaml:"video_file"`
	SongsFolder       string `yaml:"songs_folder" env:"SONGS_FOLDER"`
	SongExt           string `yaml:"song_ext"`
	// SongExtIgnoreCase lets ".MP3" match a song_ext of ".mp3"
	SongExtIgnoreCase bool   `yaml:"song_ext_ignore_case"`
	OutputFolder      string `yaml:"output_folder" env:"OUTPUT_FOLDER"`
	OutputFile        string `yaml:"output_file"`
}

type DurationsConfig struct {
	Video    time.Duration `yaml:"video"`
	Playlist time.Duration `yaml:"playlist"`
	Fade     time.Duration `yaml:"fade"`
}

type FFmpegConfig struct {
	BinaryPath string  `yaml:"binary_path" env:"FFMPEG"`
	ProbePath  string  `yaml:"probe_path" env:"FFPROBE"`
	PlayerPath string  `yaml:"player_path" env:"FFPLAY"`
	VideoCodec string  `yaml:"video_codec" env:"VIDEO_CODEC"`
	AudioCodec string  `yaml:"audio_codec"`
	FPS        float64 `yaml:"fps"`
	Threads    int     `yaml:"threads" env:"THREADS"`
	Preset     string  `yaml:"preset"`
}

type PreviewConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Duration time.Duration `yaml:"duration"`
	Width    int           `yaml:"width"`
}

type RenderConfig struct {
	// Confirm selects the confirmation prompt: gui, tui or yes
	Confirm string `yaml:"confirm" env:"CONFIRM"`
	// Seed drives the playlist shuffle; 0 derives one from the clock
	Seed int64 `yaml:"seed" env:"SEED"`
	// WorkDir holds intermediate render files; empty means the system temp dir
	WorkDir string `yaml:"work_dir"`
}

// Confirmation modes
const (
	ConfirmGUI = "gui"
	ConfirmTUI = "tui"
	ConfirmYes = "yes"
)

var allowedPresets = map[string]struct{}{
	"ultrafast": {},
	"superfast": {},
	"veryfast":  {},
	"faster":    {},
	"fast":      {},
	"medium":    {},
	"slow":      {},
	"slower":    {},
	"veryslow":  {},
}

// Load reads configuration from file or returns defaults, then applies
// LOFILOOP_* environment overrides
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks values the pipeline cannot work around
func (c *Config) Validate() error {
	if c.Durations.Video <= 0 {
		return fmt.Errorf("durations.video must be positive")
	}
	if c.Durations.Playlist <= 0 {
		return fmt.Errorf("durations.playlist must be positive")
	}
	if c.Durations.Fade <= 0 {
		return fmt.Errorf("durations.fade must be positive")
	}
	if c.FFmpeg.FPS <= 0 {
		return fmt.Errorf("ffmpeg.fps must be positive")
	}
	if c.FFmpeg.Threads < 0 {
		return fmt.Errorf("ffmpeg.threads cannot be negative")
	}
	if c.FFmpeg.VideoCodec == "" {
		return fmt.Errorf("ffmpeg.video_codec is required")
	}
	if _, ok := allowedPresets[c.FFmpeg.Preset]; !ok {
		return fmt.Errorf("unsupported ffmpeg.preset %q", c.FFmpeg.Preset)
	}
	switch c.Render.Confirm {
	case ConfirmGUI, ConfirmTUI, ConfirmYes:
	default:
		return fmt.Errorf("render.confirm must be one of gui, tui, yes; got %q", c.Render.Confirm)
	}
	if c.Paths.VideoFile == "" || c.Paths.OutputFile == "" {
		return fmt.Errorf("paths.video_file and paths.output_file are required")
	}
	return nil
}

// VideoPath is the source clip location
func (c *Config) VideoPath() string {
	return filepath.Join(c.Paths.VideoFolder, c.Paths.VideoFile)
}

// OutputPath is the rendered file location
func (c *Config) OutputPath() string {
	return filepath.Join(c.Paths.OutputFolder, c.Paths.OutputFile)
}

// Default returns the configuration the tool ships with
func Default() *Config {
	return &Config{
		Concurrency: 4,
		Paths: PathsConfig{
			VideoFolder:  "videos",
			VideoFile:    "animated_picture.mp4",
			SongsFolder:  "songs",
			SongExt:      ".mp3",
			OutputFolder: "output",
			OutputFile:   "lofi_video.mp4",
		},
		Durations: DurationsConfig{
			Video:    3 * time.Hour,
			Playlist: 50 * time.Minute,
			Fade:     6 * time.Second,
		},
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
			PlayerPath: "ffplay",
			VideoCodec: "h264_nvenc",
			AudioCodec: "aac",
			FPS:        30,
			Threads:    16,
			Preset:     "fast",
		},
		Preview: PreviewConfig{
			Enabled:  true,
			Duration: 20 * time.Second,
			Width:    640,
		},
		Render: RenderConfig{
			Confirm: ConfirmGUI,
		},
	}
}

// applyEnv overrides the fields carrying an env tag with LOFILOOP_<tag> values
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"VIDEO_FOLDER":  &c.Paths.VideoFolder,
		"SONGS_FOLDER":  &c.Paths.SongsFolder,
		"OUTPUT_FOLDER": &c.Paths.OutputFolder,
		"FFMPEG":        &c.FFmpeg.BinaryPath,
		"FFPROBE":       &c.FFmpeg.ProbePath,
		"FFPLAY":        &c.FFmpeg.PlayerPath,
		"VIDEO_CODEC":   &c.FFmpeg.VideoCodec,
		"CONFIRM":       &c.Render.Confirm,
	}
	for name, dst := range strs {
		if v, ok := lookup(EnvPrefix + name); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup(EnvPrefix + "THREADS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sTHREADS: %w", EnvPrefix, err)
		}
		c.FFmpeg.Threads = n
	}

	if v, ok := lookup(EnvPrefix + "SEED"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sSEED: %w", EnvPrefix, err)
		}
		c.Render.Seed = n
	}

	return nil
}

func findConfigFile() string {
	candidates := []string{
		"./lofiloop.yaml",
		"./lofiloop.yml",
		filepath.Join(os.Getenv("HOME"), ".lofiloop", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
