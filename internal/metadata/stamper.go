package metadata

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"media-shrink/internal/config"
)

// Stamper copies tags from an original onto its recompressed output and
// writes the marker. It disables itself after the first failed lookup of the
// exiftool binary. Failures are reported to the caller as warnings.
type Stamper struct {
	logger   logrus.FieldLogger
	binary   string
	preserve bool
	marker   string

	once      sync.Once
	available bool
}

// NewStamper builds a Stamper from the metadata section of the config.
func NewStamper(cfg config.MetadataConfig, logger logrus.FieldLogger) *Stamper {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Stamper{
		logger:   logger,
		binary:   cfg.Exiftool,
		preserve: cfg.Preserve,
	}
	if s.binary == "" {
		s.binary = "exiftool"
	}
	if cfg.Mark {
		s.marker = cfg.Marker
	}
	return s
}

// Enabled reports whether Apply has anything to do.
func (s *Stamper) Enabled() bool {
	if s == nil || (!s.preserve && s.marker == "") {
		return false
	}
	s.once.Do(func() {
		if _, err := exec.LookPath(s.binary); err != nil {
			s.logger.Warnf("exiftool not found (%s), metadata will not be preserved or marked", s.binary)
			return
		}
		s.available = true
	})
	return s.available
}

// Apply copies tags from src to dst in place. src and dst may be of
// different formats.
func (s *Stamper) Apply(src, dst string) error {
	return s.apply(src, dst, false)
}

// ApplyCopy writes a stamped copy of in to out, leaving in untouched. out
// must not exist.
func (s *Stamper) ApplyCopy(src, in, out string) error {
	if !s.Enabled() {
		return nil
	}
	return s.run(out, append(s.tagArgs(src, false), "-o", out), in)
}

func (s *Stamper) apply(src, dst string, upright bool) error {
	if !s.Enabled() {
		return nil
	}
	return s.run(dst, append([]string{"-overwrite_original"}, s.tagArgs(src, upright)...), dst)
}

func (s *Stamper) tagArgs(src string, upright bool) []string {
	args := []string{"-quiet", "-ignoreMinorErrors"}
	if s.preserve {
		args = append(args, "-TagsFromFile", src, "-all:all")
		if upright {
			// the pixels are already rotated; a copied tag would rotate them again.
			args = append(args, "-Orientation=")
		}
	}
	if s.marker != "" {
		args = append(args, "-Software="+s.marker)
	}
	return args
}

func (s *Stamper) run(target string, args []string, file string) error {
	cmd := exec.Command(s.binary, append(args, file)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("exiftool failed on %s: %v: %s", target, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return nil
}

// ApplyBytes stamps an in-memory encode of src. The buffer is staged in a
// sibling temporary file with extension ext and read back. upright drops the
// Orientation tag for pixels that were decoded with it applied.
func (s *Stamper) ApplyBytes(src string, data []byte, ext string, upright bool) ([]byte, error) {
	if !s.Enabled() {
		return data, nil
	}

	tmp, err := os.CreateTemp(filepath.Dir(src), ".media-shrink-*"+ext)
	if err != nil {
		return data, fmt.Errorf("create staging file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return data, fmt.Errorf("write staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return data, fmt.Errorf("close staging file: %w", err)
	}

	if err := s.apply(src, tmpPath, upright); err != nil {
		return data, err
	}
	stamped, err := os.ReadFile(tmpPath)
	if err != nil {
		return data, fmt.Errorf("read staging file: %w", err)
	}
	return stamped, nil
}
