// Package scanner finds the files a run should shrink.
package scanner

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"media-shrink/internal/compressor"
	"media-shrink/internal/config"
	"media-shrink/internal/statistics"
	"media-shrink/internal/writer"
)

// MarkChecker reports whether a file already carries the shrink marker.
type MarkChecker interface {
	HasMark(path, mark string) bool
}

// Scanner walks a directory tree and returns the assets above their target.
type Scanner struct {
	cfg    *config.Config
	marks  MarkChecker
	stats  *statistics.Statistics
	logger logrus.FieldLogger
}

// New returns a Scanner. marks and stats may be nil.
func New(cfg *config.Config, marks MarkChecker, stats *statistics.Statistics, logger logrus.FieldLogger) *Scanner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if stats == nil {
		stats = statistics.NewStatistics()
	}
	return &Scanner{cfg: cfg, marks: marks, stats: stats, logger: logger}
}

// Scan walks root and returns every recognised file whose size exceeds the
// target of its class, sorted by path. Unreadable entries are logged and
// skipped; only a failure to read root itself is returned.
func (s *Scanner) Scan(root string) ([]compressor.Asset, error) {
	var assets []compressor.Asset

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			s.logger.Warnf("Error accessing path %s: %v", path, err)
			return nil
		}

		if d.IsDir() {
			s.stats.IncrementDirectoriesScanned()
			return nil
		}
		if !d.Type().IsRegular() || isArtifact(path) {
			return nil
		}

		kind, ok := s.kindOf(path)
		if !ok {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			s.logger.Warnf("Error reading file info %s: %v", path, err)
			return nil
		}
		s.stats.IncrementFilesFound()
		s.stats.IncrementFileType(kind.String())

		target := s.target(kind)
		if info.Size() <= target {
			return nil
		}
		s.stats.IncrementFilesOversized()

		if s.cfg.Metadata.Mark && s.marks != nil && s.marks.HasMark(path, s.cfg.Metadata.Marker) {
			s.logger.WithField("file", path).Debug("Already shrunk, skipping")
			s.stats.IncrementFilesSkipped()
			return nil
		}

		assets = append(assets, compressor.Asset{Path: path, Size: info.Size(), Kind: kind})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Slice(assets, func(i, j int) bool { return assets[i].Path < assets[j].Path })

	if limit := s.cfg.Security.MaxFilesPerRun; limit > 0 && len(assets) > limit {
		s.logger.Infof("Reached maximum files limit (%d), %d files left for a later run", limit, len(assets)-limit)
		assets = assets[:limit]
	}
	return assets, nil
}

func (s *Scanner) kindOf(path string) (compressor.Kind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case s.cfg.IsGIFExtension(ext):
		return compressor.KindGIF, true
	case s.cfg.IsVideoExtension(ext):
		return compressor.KindVideo, true
	case s.cfg.IsImageExtension(ext):
		return compressor.KindImage, true
	}
	return 0, false
}

func (s *Scanner) target(kind compressor.Kind) int64 {
	switch kind {
	case compressor.KindVideo:
		return s.cfg.Targets.Video.Bytes()
	case compressor.KindGIF:
		return s.cfg.Targets.GIF.Bytes()
	default:
		return s.cfg.Targets.Image.Bytes()
	}
}

// isArtifact matches files this tool writes while working.
func isArtifact(path string) bool {
	name := filepath.Base(path)
	return writer.IsTempPath(path) ||
		strings.HasSuffix(name, ".part") ||
		strings.HasPrefix(name, ".media-shrink-")
}
