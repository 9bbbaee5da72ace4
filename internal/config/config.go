package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"media-shrink/internal/search"

	"github.com/docker/go-units"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ByteSize is a byte count that unmarshals from plain integers or human
// strings such as "512KiB" or "3MB" (binary multiples).
type ByteSize int64

// UnmarshalText parses a human readable size.
func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := units.RAMInBytes(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", string(text), err)
	}
	*b = ByteSize(n)
	return nil
}

// String renders the size with binary units.
func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}

// Bytes returns the size as an int64.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}

// Config represents the main configuration structure
type Config struct {
	RootDirectory string           `mapstructure:"root_directory"`
	Targets       TargetsConfig    `mapstructure:"targets"`
	Image         ImageConfig      `mapstructure:"image"`
	Video         VideoConfig      `mapstructure:"video"`
	GIF           GIFConfig        `mapstructure:"gif"`
	Extensions    ExtensionsConfig `mapstructure:"extensions"`
	Metadata      MetadataConfig   `mapstructure:"metadata"`
	Security      SecurityConfig   `mapstructure:"security"`
	Logging       LoggingConfig    `mapstructure:"logging"`
}

// TargetsConfig holds the maximum acceptable size per asset class
type TargetsConfig struct {
	Image ByteSize `mapstructure:"image"`
	Video ByteSize `mapstructure:"video"`
	GIF   ByteSize `mapstructure:"gif"`
}

// ImageConfig contains the quality+scale search settings
type ImageConfig struct {
	Search            search.Params `mapstructure:"search"`
	AllowWebPFallback bool          `mapstructure:"allow_webp_fallback"`
	WebPEffort        int           `mapstructure:"webp_effort"`
}

// VideoConfig contains the external encoder settings
type VideoConfig struct {
	CRF          search.StepParams `mapstructure:"crf"`
	Binary       string            `mapstructure:"binary"`
	VideoCodec   string            `mapstructure:"video_codec"`
	AudioCodec   string            `mapstructure:"audio_codec"`
	AudioBitrate string            `mapstructure:"audio_bitrate"`
	Preset       string            `mapstructure:"preset"`
}

// GIFConfig contains the GIF quality scan settings
type GIFConfig struct {
	Quality search.StepParams `mapstructure:"quality"`
}

// ExtensionsConfig lists the extensions routed to each compressor
type ExtensionsConfig struct {
	Image []string `mapstructure:"image"`
	Video []string `mapstructure:"video"`
	GIF   []string `mapstructure:"gif"`
}

// MetadataConfig controls EXIF preservation and the "already shrunk" marker
type MetadataConfig struct {
	Preserve bool   `mapstructure:"preserve"`
	Mark     bool   `mapstructure:"mark"`
	Marker   string `mapstructure:"marker"`
	Exiftool string `mapstructure:"exiftool"`
}

// SecurityConfig contains safety settings
type SecurityConfig struct {
	DryRun         bool `mapstructure:"dry_run"`
	MaxFilesPerRun int  `mapstructure:"max_files_per_run"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		RootDirectory: ".",
		Targets: TargetsConfig{
			Image: 512 * units.KiB,
			Video: 3 * units.MiB,
			GIF:   3 * units.MiB,
		},
		Image: ImageConfig{
			Search:            search.DefaultParams(),
			AllowWebPFallback: true,
			WebPEffort:        6,
		},
		Video: VideoConfig{
			CRF:          search.StepParams{Start: 28, Step: 2, Limit: 40},
			Binary:       "ffmpeg",
			VideoCodec:   "libx264",
			AudioCodec:   "aac",
			AudioBitrate: "96k",
			Preset:       "veryfast",
		},
		GIF: GIFConfig{
			Quality: search.StepParams{Start: 80, Step: -10, Limit: 10},
		},
		Extensions: ExtensionsConfig{
			Image: []string{".jpg", ".jpeg", ".png", ".webp"},
			Video: []string{".mp4"},
			GIF:   []string{".gif"},
		},
		Metadata: MetadataConfig{
			Preserve: true,
			Mark:     true,
			Marker:   "media-shrink",
			Exiftool: "exiftool",
		},
		Security: SecurityConfig{
			DryRun:         false,
			MaxFilesPerRun: 0, // 0 means no limit
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()
	v := viper.New()

	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		v.SetConfigName("media-shrink")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.media-shrink")
		v.AddConfigPath("/etc/media-shrink")
	}

	// Enable environment variable support
	v.SetEnvPrefix("MEDIA_SHRINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnv(v)

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(config, hook); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return config, nil
}

// bindEnv registers the scalar keys so AutomaticEnv can override them
// without a config file present.
func bindEnv(v *viper.Viper) {
	keys := []string{
		"root_directory",
		"targets.image", "targets.video", "targets.gif",
		"image.allow_webp_fallback", "image.webp_effort",
		"image.search.initial_quality", "image.search.min_quality",
		"image.search.quality_step", "image.search.downscale_ratio",
		"video.binary", "video.preset",
		"video.crf.start", "video.crf.step", "video.crf.limit",
		"gif.quality.start", "gif.quality.step", "gif.quality.limit",
		"metadata.preserve", "metadata.mark", "metadata.marker", "metadata.exiftool",
		"security.dry_run", "security.max_files_per_run",
		"logging.level", "logging.file_path",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.RootDirectory == "" {
		c.RootDirectory = "."
	}
	if !isValidPath(c.RootDirectory) {
		return fmt.Errorf("root directory does not exist or is not accessible: %s", c.RootDirectory)
	}

	if c.Targets.Image <= 0 || c.Targets.Video <= 0 || c.Targets.GIF <= 0 {
		return fmt.Errorf("target sizes must be positive (image=%d, video=%d, gif=%d)",
			c.Targets.Image, c.Targets.Video, c.Targets.GIF)
	}

	if err := c.Image.Search.Validate(); err != nil {
		return fmt.Errorf("image.search: %w", err)
	}
	if err := c.Video.CRF.Validate(); err != nil {
		return fmt.Errorf("video.crf: %w", err)
	}
	if c.Video.CRF.Step < 0 {
		return fmt.Errorf("video.crf: step must increase the CRF, got %d", c.Video.CRF.Step)
	}
	if err := c.GIF.Quality.Validate(); err != nil {
		return fmt.Errorf("gif.quality: %w", err)
	}
	if c.GIF.Quality.Step > 0 {
		return fmt.Errorf("gif.quality: step must decrease the quality, got %d", c.GIF.Quality.Step)
	}
	if c.Video.Binary == "" {
		return fmt.Errorf("video.binary is required")
	}

	c.Extensions.Image = normalizeExtensions(c.Extensions.Image)
	c.Extensions.Video = normalizeExtensions(c.Extensions.Video)
	c.Extensions.GIF = normalizeExtensions(c.Extensions.GIF)

	if c.Metadata.Mark && c.Metadata.Marker == "" {
		c.Metadata.Marker = "media-shrink"
	}

	if c.Security.MaxFilesPerRun < 0 {
		c.Security.MaxFilesPerRun = 0
	}

	// Validate logging settings
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// IsImageExtension checks if the extension is routed to the image compressor
func (c *Config) IsImageExtension(ext string) bool {
	return slices.Contains(c.Extensions.Image, strings.ToLower(ext))
}

// IsVideoExtension checks if the extension is routed to the video compressor
func (c *Config) IsVideoExtension(ext string) bool {
	return slices.Contains(c.Extensions.Video, strings.ToLower(ext))
}

// IsGIFExtension checks if the extension is routed to the GIF compressor
func (c *Config) IsGIFExtension(ext string) bool {
	return slices.Contains(c.Extensions.GIF, strings.ToLower(ext))
}

// Helper functions

func isValidPath(path string) bool {
	if path == "" {
		return false
	}

	expandedPath := os.ExpandEnv(path)
	if strings.HasPrefix(expandedPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return false
		}
		expandedPath = filepath.Join(home, expandedPath[1:])
	}

	stat, err := os.Stat(expandedPath)
	return err == nil && stat.IsDir()
}

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}
	return normalized
}
