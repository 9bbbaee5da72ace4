// Package shrinker runs one scan-and-compress pass over a directory tree.
package shrinker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"media-shrink/internal/compressor"
	"media-shrink/internal/config"
	"media-shrink/internal/statistics"
	"media-shrink/internal/writer"
)

// Scanner finds the oversized assets under a root directory.
type Scanner interface {
	Scan(root string) ([]compressor.Asset, error)
}

// Shrinker processes every oversized asset to completion, one at a time.
type Shrinker struct {
	config     *config.Config
	logger     *logrus.Logger
	stats      *statistics.Statistics
	scanner    Scanner
	compressor compressor.Compressor
}

// New returns a Shrinker.
func New(
	cfg *config.Config,
	logger *logrus.Logger,
	stats *statistics.Statistics,
	scanner Scanner,
	comp compressor.Compressor,
) *Shrinker {
	return &Shrinker{
		config:     cfg,
		logger:     logger,
		stats:      stats,
		scanner:    scanner,
		compressor: comp,
	}
}

// Run scans the root directory and compresses what it finds. Per-asset
// failures are recorded in the statistics; only a scan failure or
// cancellation is returned.
func (s *Shrinker) Run(ctx context.Context) error {
	s.logger.Infof("Scanning %s", s.config.RootDirectory)
	s.stats.StartTime = time.Now()
	defer s.stats.Finalize()

	assets, err := s.scanner.Scan(s.config.RootDirectory)
	if err != nil {
		return fmt.Errorf("failed to discover files: %w", err)
	}

	if len(assets) == 0 {
		s.logger.Info("No files above their target size")
		return nil
	}

	s.logger.Infof("Found %d files above their target size", len(assets))
	if s.config.Security.DryRun {
		s.logger.Info("Running in dry-run mode - no files will be modified")
	}

	for i, asset := range assets {
		if err := ctx.Err(); err != nil {
			s.logger.Warnf("Interrupted, %d files not processed", len(assets)-i)
			return err
		}

		s.logger.WithField("kind", asset.Kind.String()).Infof("[%d/%d] Compressing: %s, original size: %s",
			i+1, len(assets), asset.Path, units.BytesSize(float64(asset.Size)))

		res := s.compressor.Compress(ctx, asset)
		if errors.Is(res.Error, context.Canceled) {
			s.logger.Warnf("Interrupted while compressing %s, original kept", asset.Path)
			return res.Error
		}
		s.record(res)
	}

	s.logger.Info("Compression pass completed")
	return nil
}

// record updates statistics and logs the outcome of one asset.
func (s *Shrinker) record(res compressor.CompressionResult) {
	s.stats.IncrementFilesProcessed()
	entry := s.logger.WithField("file", res.InputPath)

	switch res.Action {
	case compressor.ActionError:
		s.stats.IncrementFilesWithErrors()
		s.stats.AddError(res.InputPath, "compress", res.Message)
		entry.Errorf("Failed to compress %s: %s", res.InputPath, res.Message)
		return
	case compressor.ActionDryRun:
		s.stats.IncrementFilesDryRun()
		entry.Infof("DRY-RUN: Would compress %s (%s)", res.InputPath, units.BytesSize(float64(res.OriginalSize)))
		return
	}

	finalPath, size, err := resolveFinal(res)
	if err != nil {
		s.stats.IncrementFilesWithErrors()
		s.stats.AddError(res.InputPath, "resolve_output", err.Error())
		entry.Errorf("Compressed output for %s not found: %v", res.InputPath, err)
		return
	}

	s.stats.IncrementFilesCompressed()
	s.stats.AddBytes(res.OriginalSize, size)
	if res.MetTarget {
		s.stats.IncrementFilesMetTarget()
	} else {
		s.stats.IncrementFilesBestEffort()
	}
	if res.Converted {
		s.stats.IncrementFilesConverted()
	}

	if finalPath != res.InputPath {
		entry.Infof("Compressed file: %s, size: %s", finalPath, units.BytesSize(float64(size)))
	} else {
		entry.Infof("Compressed size: %s", units.BytesSize(float64(size)))
	}
}

// resolveFinal stats the output a compressor reported. If it has gone
// missing the usual conversion siblings of the input are tried.
func resolveFinal(res compressor.CompressionResult) (string, int64, error) {
	candidates := []string{res.OutputPath, res.InputPath}
	for _, ext := range []string{".webp", ".jpg", ".jpeg", ".png"} {
		candidates = append(candidates, writer.DerivePath(res.InputPath, ext))
	}

	var firstErr error
	for _, p := range candidates {
		if p == "" {
			continue
		}
		info, err := os.Stat(p)
		if err == nil {
			return p, info.Size(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return "", 0, firstErr
}
