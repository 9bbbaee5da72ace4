package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"media-shrink/internal/codec"
	"media-shrink/internal/compressor"
	"media-shrink/internal/config"
	"media-shrink/internal/ffmpeg"
	"media-shrink/internal/logger"
	"media-shrink/internal/metadata"
	"media-shrink/internal/scanner"
	"media-shrink/internal/shrinker"
	"media-shrink/internal/statistics"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "media-shrink [directory]",
	Short: "Recompress oversized images, videos and GIFs in place",
	Long: `media-shrink walks a directory tree (default: current directory) and
recompresses every image, MP4 and GIF above its target size until it fits.

Images lower quality first and resolution second. PNGs with transparency stay
PNG or become WebP, opaque PNGs become JPEG. Videos are re-encoded with
ffmpeg at rising CRF, GIFs with fewer palette colors.

Settings are read from media-shrink.yaml (., $HOME/.media-shrink,
/etc/media-shrink) or MEDIA_SHRINK_* environment variables. Set
MEDIA_SHRINK_CONFIG to point at a specific file.`,
	Args:          cobra.MaximumNArgs(1),
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShrink(cmd.Context(), args)
	},
}

// runShrink executes one scan-and-compress pass.
func runShrink(ctx context.Context, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	if buildTime != "" {
		log.Debugf("media-shrink %s built %s", version, buildTime)
	}

	codec.Startup(log)
	defer codec.Shutdown()

	if _, err := ffmpeg.LookPath(&cfg.Video); err != nil {
		log.Warnf("%v, videos will fail to compress", err)
	}

	marks := metadata.NewReader(cfg.Metadata.Exiftool, log)
	defer marks.Close()
	stamper := metadata.NewStamper(cfg.Metadata, log)

	stats := statistics.NewStatistics()
	router := compressor.NewRouter(
		compressor.NewImageCompressor(cfg, codec.NewImageCodec(codec.NewVips(cfg.Image.WebPEffort)), stamper, log),
		compressor.NewVideoCompressor(cfg, stamper, log),
		compressor.NewGIFCompressor(cfg, stamper, log),
		cfg.Security.DryRun,
	)
	s := shrinker.New(cfg, log, stats, scanner.New(cfg, marks, stats, log), router)

	runErr := s.Run(ctx)

	fmt.Println("\n" + statistics.RenderSummary(stats.Rows()))
	if stats.GetFilesWithErrors() > 0 {
		fmt.Println("\n" + stats.GetErrorSummary())
	}
	log.Debug("\n" + stats.GetSummary())

	if errors.Is(runErr, context.Canceled) {
		return errors.New("interrupted")
	}
	return runErr
}

// loadConfig loads configuration and applies the directory argument.
func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.LoadConfig(os.Getenv("MEDIA_SHRINK_CONFIG"))
	if err != nil {
		return nil, err
	}

	if len(args) > 0 {
		cfg.RootDirectory = args[0]
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    true,
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
		log.Warnf("Logger setup failed, using defaults: %v", err)
	}

	return log
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
