// Package metadata preserves EXIF tags across recompression and stamps an
// "already shrunk" marker into the Software tag so later runs can leave
// best-effort outputs alone.
package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
)

// markFields are the tags checked for the marker when reading through exiftool.
var markFields = []string{"Software", "CreatorTool"}

// Reader checks files for the marker. JPEG and TIFF are read in-process;
// everything else goes through a lazily started exiftool session.
type Reader struct {
	logger logrus.FieldLogger
	binary string

	once sync.Once
	et   *exiftool.Exiftool
	err  error
	mu   sync.Mutex
}

// NewReader returns a Reader using the given exiftool binary name or path.
func NewReader(binary string, logger logrus.FieldLogger) *Reader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Reader{logger: logger, binary: binary}
}

// HasMark reports whether path carries mark in its Software tag. Any read
// failure is treated as "not marked".
func (r *Reader) HasMark(path, mark string) bool {
	if mark == "" {
		return false
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".tif", ".tiff":
		if found, err := hasMarkGoExif(path, mark); err == nil {
			return found
		}
	}
	found, err := r.hasMarkExiftool(path, mark)
	if err != nil {
		r.logger.WithField("file", path).Debugf("Marker check skipped: %v", err)
		return false
	}
	return found
}

// Close stops the exiftool session if one was started.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.et != nil {
		err := r.et.Close()
		r.et = nil
		return err
	}
	return nil
}

func (r *Reader) hasMarkExiftool(path, mark string) (bool, error) {
	r.once.Do(func() {
		var opts []func(*exiftool.Exiftool) error
		if r.binary != "" && r.binary != "exiftool" {
			opts = append(opts, exiftool.SetExiftoolBinaryPath(r.binary))
		}
		r.et, r.err = exiftool.NewExiftool(opts...)
		if r.err != nil {
			r.logger.Warnf("exiftool unavailable, marker checks limited to JPEG/TIFF: %v", r.err)
		}
	})
	if r.err != nil {
		return false, r.err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.et == nil {
		return false, fmt.Errorf("exiftool session closed")
	}
	files := r.et.ExtractMetadata(path)
	if len(files) == 0 {
		return false, fmt.Errorf("no metadata returned for %s", path)
	}
	if files[0].Err != nil {
		return false, files[0].Err
	}
	for _, field := range markFields {
		if v, err := files[0].GetString(field); err == nil && strings.Contains(v, mark) {
			return true, nil
		}
	}
	return false, nil
}

// hasMarkGoExif reads the Software tag with goexif.
func hasMarkGoExif(path, mark string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return false, fmt.Errorf("failed to decode EXIF: %w", err)
	}
	tag, err := x.Get(exif.Software)
	if err != nil {
		return false, nil
	}
	val, err := tag.StringVal()
	if err != nil {
		return false, nil
	}
	return strings.Contains(val, mark), nil
}
