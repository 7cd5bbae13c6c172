package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kikiluvv/lofiloop/internal/clips"
	"github.com/kikiluvv/lofiloop/internal/config"
	"github.com/kikiluvv/lofiloop/internal/ffmpeg"
	"github.com/kikiluvv/lofiloop/internal/gui"
	"github.com/kikiluvv/lofiloop/internal/logging"
	"github.com/kikiluvv/lofiloop/internal/pipeline"
	"github.com/kikiluvv/lofiloop/internal/timeline"
	"github.com/kikiluvv/lofiloop/internal/tui"
	"github.com/kikiluvv/lofiloop/pkg/util"
)

var (
	cfgFile string
	verbose bool

	// set by commands that map their result onto a specific exit status
	exitCode = pipeline.ExitOK
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		if exitCode == pipeline.ExitOK {
			exitCode = pipeline.ExitError
		}
	}

	stop()
	os.Exit(exitCode)
}

var rootCmd = &cobra.Command{
	Use:           "lofiloop",
	Short:         "lofiloop - looped lofi video generator",
	Long:          "Loops a short animated clip with crossfades, lays a shuffled playlist under it and renders one long video.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logging
		logging.Init(verbose)

		// .env is optional
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Msg("failed to read .env")
		}

		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./lofiloop.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	generateCmd.Flags().Bool("yes", false, "skip preview and confirmation")
	generateCmd.Flags().Int64("seed", 0, "playlist shuffle seed (0 picks one)")
	generateCmd.Flags().String("duration", "", "target video length, e.g. 3h or 01:30:00")
	generateCmd.Flags().String("playlist", "", "target playlist length, e.g. 50m")
	generateCmd.Flags().String("fade", "", "crossfade length, e.g. 6s")

	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(probeCmd)
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the looped video",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.FromContext(ctx)

		if err := applyGenerateFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger := logging.NewLogger()
		exec, err := newExecutor(cfg)
		if err != nil {
			return err
		}

		var previewer pipeline.Previewer
		if cfg.Preview.Enabled && cfg.Render.Confirm != config.ConfirmYes {
			previewer = ffmpeg.NewPreviewer(exec, logger, ffmpeg.PreviewOptions{
				Duration: cfg.Preview.Duration,
				Width:    cfg.Preview.Width,
				WorkDir:  cfg.Render.WorkDir,
			})
		}

		encoding := timeline.Encoding{
			VideoCodec: cfg.FFmpeg.VideoCodec,
			AudioCodec: cfg.FFmpeg.AudioCodec,
			FPS:        cfg.FFmpeg.FPS,
			Preset:     cfg.FFmpeg.Preset,
			Threads:    cfg.FFmpeg.Threads,
		}

		shuffler, seed := pipeline.NewShuffler(cfg.Render.Seed)
		log.Info().Int64("seed", seed).Msg("playlist shuffle seed")

		p, err := pipeline.New(logger, pipeline.Options{
			VideoPath:        cfg.VideoPath(),
			SongsFolder:      cfg.Paths.SongsFolder,
			SongExt:          cfg.Paths.SongExt,
			SongExtFold:      cfg.Paths.SongExtIgnoreCase,
			OutputPath:       cfg.OutputPath(),
			VideoDuration:    cfg.Durations.Video,
			PlaylistDuration: cfg.Durations.Playlist,
			FadeDuration:     cfg.Durations.Fade,
			Encoding:         encoding,
			Concurrency:      cfg.Concurrency,
		}, pipeline.Deps{
			Decoder:   exec,
			Encoder:   ffmpeg.NewEncoder(exec, logger, cfg.Render.WorkDir),
			Previewer: previewer,
			Confirmer: newConfirmer(cfg, logger),
			Shuffler:  shuffler,
		})
		if err != nil {
			return err
		}

		outcome, err := p.Generate(ctx)
		exitCode = pipeline.ExitCode(outcome, err)

		switch outcome.Status {
		case pipeline.StatusRendered:
			fmt.Printf("Video has been generated and saved at %s\n", outcome.OutputPath)
		case pipeline.StatusCancelled:
			fmt.Println("Video generation canceled.")
		}

		if exitCode == pipeline.ExitInterrupted {
			log.Warn().Msg("interrupted")
			return nil
		}
		return err
	},
}

// applyGenerateFlags layers explicitly set flags over the loaded config
func applyGenerateFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if yes, _ := flags.GetBool("yes"); yes {
		cfg.Render.Confirm = config.ConfirmYes
	}
	if flags.Changed("seed") {
		cfg.Render.Seed, _ = flags.GetInt64("seed")
	}

	durations := map[string]*time.Duration{
		"duration": &cfg.Durations.Video,
		"playlist": &cfg.Durations.Playlist,
		"fade":     &cfg.Durations.Fade,
	}
	for name, dst := range durations {
		if !flags.Changed(name) {
			continue
		}
		raw, _ := flags.GetString(name)
		d, err := util.ParseTimestamp(raw)
		if err != nil {
			return fmt.Errorf("--%s: %w", name, err)
		}
		*dst = d
	}

	return nil
}

func newExecutor(cfg *config.Config) (*ffmpeg.Executor, error) {
	return ffmpeg.New(logging.NewLogger(), ffmpeg.Options{
		FFmpegPath:  cfg.FFmpeg.BinaryPath,
		FFprobePath: cfg.FFmpeg.ProbePath,
		FFplayPath:  cfg.FFmpeg.PlayerPath,
	})
}

func newConfirmer(cfg *config.Config, logger zerolog.Logger) pipeline.Confirmer {
	switch cfg.Render.Confirm {
	case config.ConfirmYes:
		return pipeline.StaticConfirmer(true)
	case config.ConfirmTUI:
		return tui.NewConfirmer()
	default:
		return gui.NewConfirmer(logger)
	}
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "lofiloop.yaml"
		if len(args) == 1 {
			path = args[0]
		}

		force, _ := cmd.Flags().GetBool("force")
		if util.FileExists(path) && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}

		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe [media file]",
	Short: "Show what lofiloop sees in a media file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		exec, err := newExecutor(cfg)
		if err != nil {
			return err
		}

		clip, err := exec.Decode(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "path:     %s\n", clip.Path)
		fmt.Fprintf(out, "kind:     %s\n", clip.Kind)
		fmt.Fprintf(out, "duration: %s\n", util.FormatDuration(clip.Duration))
		if clip.Kind == clips.KindVideo {
			fmt.Fprintf(out, "size:     %dx%d\n", clip.Width, clip.Height)
			fmt.Fprintf(out, "fps:      %.3f\n", clip.FPS)

			if fade := cfg.Durations.Fade; clip.Duration > fade {
				period := pipeline.LoopPeriod(clip.Duration, fade)
				fmt.Fprintf(out, "period:   %s (fade %s)\n", util.FormatDuration(period), fade)
			}
		}
		fmt.Fprintf(out, "audio:    %t\n", clip.HasAudio)
		return nil
	},
}
