// Package writer swaps recompressed output into place. Every write goes to a
// sibling temporary file that is synced and renamed, so a crash never leaves
// a truncated asset, and an original is only removed after its replacement
// exists on disk.
package writer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrSamePath is returned by Convert when the derived path equals the original.
var ErrSamePath = errors.New("converted path equals original path")

// Replace atomically overwrites path with data, keeping the original file mode.
func Replace(path string, data []byte) error {
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return writeAtomic(path, data, mode)
}

// Convert writes data to newPath and then removes oldPath. When a different
// file already occupies newPath a unique sibling name is used instead. It
// returns the path that was written.
func Convert(oldPath, newPath string, data []byte) (string, error) {
	if filepath.Clean(oldPath) == filepath.Clean(newPath) {
		return "", ErrSamePath
	}

	mode := fs.FileMode(0o644)
	if info, err := os.Stat(oldPath); err == nil {
		mode = info.Mode().Perm()
	}

	target := UniquePath(newPath)
	if err := writeAtomic(target, data, mode); err != nil {
		return "", err
	}
	if err := os.Remove(oldPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return target, fmt.Errorf("remove original %s: %w", oldPath, err)
	}
	return target, nil
}

// Promote renames a finished temporary file over path, keeping path's mode.
func Promote(tmpPath, path string) error {
	if info, err := os.Stat(path); err == nil {
		if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
			return fmt.Errorf("chmod %s: %w", tmpPath, err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, path, err)
	}
	return nil
}

// TempPath returns the sibling temporary path used for encoder output, for
// example "clip.mp4" -> "clip.mp4.tmp.mp4".
func TempPath(path string) string {
	return path + ".tmp" + filepath.Ext(path)
}

// IsTempPath reports whether path has the TempPath shape, where the
// extension repeats around ".tmp" ("clip.mp4.tmp.mp4" but not "notes.tmp.jpg").
func IsTempPath(path string) bool {
	ext := filepath.Ext(path)
	return ext != "" && strings.HasSuffix(path, ext+".tmp"+ext) && len(path) > len(ext+".tmp"+ext)
}

// DerivePath replaces the extension of path with ext.
func DerivePath(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

// UniquePath returns path if nothing exists there, otherwise the first free
// "name_N.ext" sibling.
func UniquePath(path string) string {
	if _, err := os.Lstat(path); errors.Is(err, fs.ErrNotExist) {
		return path
	}

	dir := filepath.Dir(path)
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	nameWithoutExt := strings.TrimSuffix(name, ext)

	counter := 1
	for {
		newPath := filepath.Join(dir, fmt.Sprintf("%s_%d%s", nameWithoutExt, counter, ext))
		if _, err := os.Lstat(newPath); errors.Is(err, fs.ErrNotExist) {
			return newPath
		}
		counter++
	}
}

func writeAtomic(path string, data []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", tmpPath, path, err)
	}
	committed = true
	return nil
}
