package compressor

import (
	"context"
	"errors"
	"fmt"
	"image/gif"
	"os"

	"github.com/sirupsen/logrus"

	"media-shrink/internal/codec"
	"media-shrink/internal/config"
	"media-shrink/internal/logger"
	"media-shrink/internal/metadata"
	"media-shrink/internal/search"
	"media-shrink/internal/writer"
)

// GIFCompressor shrinks animated GIFs by lowering palette quality.
type GIFCompressor struct {
	target  int64
	quality search.StepParams
	stamper *metadata.Stamper
	logger  logrus.FieldLogger
}

// NewGIFCompressor creates a GIFCompressor. stamper may be nil.
func NewGIFCompressor(cfg *config.Config, stamper *metadata.Stamper, log logrus.FieldLogger) *GIFCompressor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &GIFCompressor{
		target:  cfg.Targets.GIF.Bytes(),
		quality: cfg.GIF.Quality,
		stamper: stamper,
		logger:  log,
	}
}

// Compress processes one GIF asset. The source is decoded once and every
// attempt re-encodes all frames from it.
func (c *GIFCompressor) Compress(ctx context.Context, asset Asset) CompressionResult {
	res := newResult(asset)

	g, err := codec.DecodeGIF(asset.Path)
	if err != nil {
		return res.fail(err, "open error: %v", err)
	}
	res.Width, res.Height = g.Config.Width, g.Config.Height

	tmp := writer.TempPath(asset.Path)
	log := logger.WithFileOperation(c.logger, asset.Path, "gif")
	sr, err := search.Linear(ctx, c.quality, c.target, func(_ context.Context, quality int) (int64, error) {
		return writeGIF(tmp, g, quality)
	})
	res.Attempts = sr.Attempts
	if err != nil {
		_ = os.Remove(tmp)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return res.fail(err, "cancelled")
		}
		return res.fail(err, "encode error: %v", err)
	}
	res.Quality = sr.Param

	return finishTemp(&res, c.stamper, log, tmp, asset.Path, c.target, sr)
}

func writeGIF(path string, g *gif.GIF, quality int) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	if err := codec.EncodeGIF(f, g, quality); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return 0, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("close %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
