package compressor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"media-shrink/internal/config"
	"media-shrink/internal/ffmpeg"
	"media-shrink/internal/logger"
	"media-shrink/internal/metadata"
	"media-shrink/internal/search"
	"media-shrink/internal/writer"
)

// EncodeFunc encodes input at crf into output and returns the output size.
type EncodeFunc func(ctx context.Context, input, output string, crf int) (int64, error)

// VideoCompressor re-encodes videos with rising CRF until one fits.
type VideoCompressor struct {
	target  int64
	crf     search.StepParams
	encode  EncodeFunc
	stamper *metadata.Stamper
	logger  logrus.FieldLogger
}

// NewVideoCompressor creates a VideoCompressor backed by the ffmpeg binary
// from cfg.
func NewVideoCompressor(cfg *config.Config, stamper *metadata.Stamper, log logrus.FieldLogger) *VideoCompressor {
	video := cfg.Video
	return NewVideoCompressorWithEncoder(cfg, func(ctx context.Context, input, output string, crf int) (int64, error) {
		return ffmpeg.Encode(ctx, &video, input, output, crf)
	}, stamper, log)
}

// NewVideoCompressorWithEncoder creates a VideoCompressor using encode for
// every attempt.
func NewVideoCompressorWithEncoder(cfg *config.Config, encode EncodeFunc, stamper *metadata.Stamper, log logrus.FieldLogger) *VideoCompressor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &VideoCompressor{
		target:  cfg.Targets.Video.Bytes(),
		crf:     cfg.Video.CRF,
		encode:  encode,
		stamper: stamper,
		logger:  log,
	}
}

// Compress processes one video asset. Every attempt writes the sibling
// temporary file; the accepted one is renamed over the original.
func (c *VideoCompressor) Compress(ctx context.Context, asset Asset) CompressionResult {
	res := newResult(asset)
	tmp := writer.TempPath(asset.Path)
	_ = os.Remove(tmp)

	log := logger.WithFileOperation(c.logger, asset.Path, "video")
	sr, err := search.Linear(ctx, c.crf, c.target, func(ctx context.Context, crf int) (int64, error) {
		size, err := c.encode(ctx, asset.Path, tmp, crf)
		if err == nil {
			log.WithField("quality", crf).Debugf("Candidate %d bytes", size)
		}
		return size, err
	})
	res.Attempts = sr.Attempts
	if err != nil {
		_ = os.Remove(tmp)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return res.fail(err, "cancelled")
		}
		return res.fail(err, "encoder error: %v", err)
	}
	res.Quality = sr.Param

	return finishTemp(&res, c.stamper, log, tmp, asset.Path, c.target, sr)
}

// finishTemp stamps and promotes an accepted temporary file. A stamped copy
// that no longer fits a target the bare encode met is dropped.
func finishTemp(res *CompressionResult, stamper *metadata.Stamper, log *logrus.Entry, tmp, path string, target int64, sr search.StepResult) CompressionResult {
	if stamper.Enabled() {
		stampTemp(stamper, log, tmp, path, target, sr.MetTarget)
	}

	info, err := os.Stat(tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return res.fail(err, "stat candidate: %v", err)
	}
	if err := writer.Promote(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return res.fail(err, "save error: %v", err)
	}

	if !sr.MetTarget {
		log.WithField("quality", sr.Param).Warnf("Target not met at parameter limit, kept %d bytes", info.Size())
	}
	r := res.done(path, info.Size(), sr.MetTarget && info.Size() <= target)
	if r.MetTarget {
		r.Message = fmt.Sprintf("compressed at %d after %d attempts", sr.Param, sr.Attempts)
	} else {
		r.Message = fmt.Sprintf("limit %d reached, smallest encode kept", sr.Param)
	}
	return r
}

// stampTemp writes the stamped copy beside tmp and swaps it in when it keeps
// the result within target.
func stampTemp(stamper *metadata.Stamper, log *logrus.Entry, tmp, path string, target int64, metTarget bool) {
	stamped := writer.TempPath(tmp)
	_ = os.Remove(stamped)
	if err := stamper.ApplyCopy(path, tmp, stamped); err != nil {
		_ = os.Remove(stamped)
		log.Warnf("Metadata not copied: %v", err)
		return
	}
	info, err := os.Stat(stamped)
	if err != nil {
		log.Warnf("Metadata not copied: %v", err)
		return
	}
	if metTarget && info.Size() > target {
		_ = os.Remove(stamped)
		log.Debug("Metadata would exceed target, writing without it")
		return
	}
	if err := os.Rename(stamped, tmp); err != nil {
		_ = os.Remove(stamped)
		log.Warnf("Metadata not copied: %v", err)
	}
}
