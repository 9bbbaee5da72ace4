package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"sync"

	"media-shrink/internal/search"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/sirupsen/logrus"
)

var (
	vipsMutex   sync.Mutex
	vipsStarted bool
)

// Vips encodes WebP through libvips. Call Startup before the first encode
// and Shutdown once processing is finished.
type Vips struct {
	effort int
}

// NewVips returns a libvips WebP encoder using the given reduction effort (0-6).
func NewVips(effort int) *Vips {
	return &Vips{effort: min(max(effort, 0), 6)}
}

// Startup initializes libvips once, routing its log output into logger.
func Startup(logger *logrus.Logger) {
	vipsMutex.Lock()
	defer vipsMutex.Unlock()

	if vipsStarted {
		return
	}

	if logger != nil {
		level := vips.LogLevelWarning
		if logger.IsLevelEnabled(logrus.DebugLevel) {
			level = vips.LogLevelInfo
		}
		vips.LoggingSettings(func(domain string, lvl vips.LogLevel, msg string) {
			entry := logger.WithField("domain", domain)
			switch lvl {
			case vips.LogLevelError, vips.LogLevelCritical:
				entry.Error(msg)
			case vips.LogLevelWarning:
				entry.Warn(msg)
			default:
				entry.Debug(msg)
			}
		}, level)
	}

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})
	vipsStarted = true
}

// Shutdown releases libvips resources.
func Shutdown() {
	vipsMutex.Lock()
	defer vipsMutex.Unlock()

	if vipsStarted {
		vips.Shutdown()
		vipsStarted = false
	}
}

// EncodeWebP encodes img as WebP. Quality is used unless opts.Lossless is set.
func (v *Vips) EncodeWebP(img image.Image, opts search.EncodeOptions) ([]byte, error) {
	// libvips takes encoded input; an uncompressed PNG keeps the alpha channel intact.
	var src bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(&src, img); err != nil {
		return nil, fmt.Errorf("stage image for libvips: %w", err)
	}

	ref, err := vips.NewImageFromBuffer(src.Bytes())
	if err != nil {
		return nil, fmt.Errorf("libvips load: %w", err)
	}
	defer ref.Close()

	params := vips.NewWebpExportParams()
	params.StripMetadata = true
	params.Lossless = opts.Lossless
	params.ReductionEffort = v.effort
	if opts.Effort > 0 {
		params.ReductionEffort = min(opts.Effort, 6)
	}
	if opts.UseQuality && opts.Quality > 0 {
		params.Quality = opts.Quality
	}

	data, _, err := ref.ExportWebp(params)
	if err != nil {
		return nil, fmt.Errorf("libvips webp export: %w", err)
	}
	return data, nil
}
