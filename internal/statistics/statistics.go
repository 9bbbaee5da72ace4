package statistics

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	units "github.com/docker/go-units"
)

// Statistics contains all statistics for a shrink run.
type Statistics struct {
	TotalFilesFound     int64
	FilesOversized      int64
	TotalFilesProcessed int64
	FilesCompressed     int64
	FilesMetTarget      int64
	FilesBestEffort     int64
	FilesConverted      int64
	FilesSkipped        int64
	FilesWithErrors     int64
	FilesDryRun         int64

	DirectoriesScanned int64

	BytesBefore int64
	BytesAfter  int64

	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	FilesPerSecond float64

	Errors []StatError

	mutex sync.RWMutex

	FileTypeStats map[string]int64
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:     time.Now(),
		FileTypeStats: make(map[string]int64),
		Errors:        make([]StatError, 0),
	}
}

// IncrementFilesFound increases the count of found files by 1.
func (s *Statistics) IncrementFilesFound() {
	atomic.AddInt64(&s.TotalFilesFound, 1)
}

// IncrementFilesOversized increases the count of files above their target by 1.
func (s *Statistics) IncrementFilesOversized() {
	atomic.AddInt64(&s.FilesOversized, 1)
}

// IncrementFilesProcessed increases the count of processed files by 1.
func (s *Statistics) IncrementFilesProcessed() {
	atomic.AddInt64(&s.TotalFilesProcessed, 1)
}

// IncrementFilesCompressed increases the count of rewritten files by 1.
func (s *Statistics) IncrementFilesCompressed() {
	atomic.AddInt64(&s.FilesCompressed, 1)
}

// IncrementFilesMetTarget increases the count of files that now fit their target by 1.
func (s *Statistics) IncrementFilesMetTarget() {
	atomic.AddInt64(&s.FilesMetTarget, 1)
}

// IncrementFilesBestEffort increases the count of files written above their target by 1.
func (s *Statistics) IncrementFilesBestEffort() {
	atomic.AddInt64(&s.FilesBestEffort, 1)
}

// IncrementFilesConverted increases the count of files whose format changed by 1.
func (s *Statistics) IncrementFilesConverted() {
	atomic.AddInt64(&s.FilesConverted, 1)
}

// IncrementFilesSkipped increases the count of skipped files by 1.
func (s *Statistics) IncrementFilesSkipped() {
	atomic.AddInt64(&s.FilesSkipped, 1)
}

// IncrementFilesWithErrors increases the count of files with errors by 1.
func (s *Statistics) IncrementFilesWithErrors() {
	atomic.AddInt64(&s.FilesWithErrors, 1)
}

// IncrementFilesDryRun increases the count of files only reported in dry-run mode by 1.
func (s *Statistics) IncrementFilesDryRun() {
	atomic.AddInt64(&s.FilesDryRun, 1)
}

// IncrementDirectoriesScanned increases the count of scanned directories by 1.
func (s *Statistics) IncrementDirectoriesScanned() {
	atomic.AddInt64(&s.DirectoriesScanned, 1)
}

// IncrementFileType increases the count for a specific asset kind by 1.
func (s *Statistics) IncrementFileType(fileType string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.FileTypeStats[fileType]++
}

// AddBytes records the size of a file before and after processing.
func (s *Statistics) AddBytes(before, after int64) {
	atomic.AddInt64(&s.BytesBefore, before)
	atomic.AddInt64(&s.BytesAfter, after)
}

// Finalize calculates the duration and throughput.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	totalProcessed := atomic.LoadInt64(&s.TotalFilesProcessed)
	if s.Duration.Seconds() > 0 {
		s.FilesPerSecond = float64(totalProcessed) / s.Duration.Seconds()
	}
}

// AddError records an error that occurred during processing.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// BytesSaved returns the difference between the input and output sizes.
func (s *Statistics) BytesSaved() int64 {
	return atomic.LoadInt64(&s.BytesBefore) - atomic.LoadInt64(&s.BytesAfter)
}

// PercentSaved returns BytesSaved as a percentage of the input size.
func (s *Statistics) PercentSaved() float64 {
	before := atomic.LoadInt64(&s.BytesBefore)
	if before == 0 {
		return 0
	}
	return float64(s.BytesSaved()) * 100 / float64(before)
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	duration, fps := s.Duration, s.FilesPerSecond
	s.mutex.RUnlock()

	return fmt.Sprintf(`Media Shrink Statistics Summary:

Files:
		Total Found: %d
		Over Target: %d
		Processed: %d
		Compressed: %d
		Met Target: %d
		Best Effort: %d
		Converted: %d
		Skipped: %d
		Dry Run: %d
		Errors: %d

Size:
		Before: %s
		After: %s
		Saved: %s (%.1f%%)

Performance:
		Duration: %v
		Files/Second: %.2f
		Directories Scanned: %d`,
		atomic.LoadInt64(&s.TotalFilesFound),
		atomic.LoadInt64(&s.FilesOversized),
		atomic.LoadInt64(&s.TotalFilesProcessed),
		atomic.LoadInt64(&s.FilesCompressed),
		atomic.LoadInt64(&s.FilesMetTarget),
		atomic.LoadInt64(&s.FilesBestEffort),
		atomic.LoadInt64(&s.FilesConverted),
		atomic.LoadInt64(&s.FilesSkipped),
		atomic.LoadInt64(&s.FilesDryRun),
		atomic.LoadInt64(&s.FilesWithErrors),
		formatBytes(atomic.LoadInt64(&s.BytesBefore)),
		formatBytes(atomic.LoadInt64(&s.BytesAfter)),
		formatBytes(s.BytesSaved()),
		s.PercentSaved(),
		duration.Round(time.Millisecond),
		fps,
		atomic.LoadInt64(&s.DirectoriesScanned))
}

// GetFileTypeBreakdown returns a formatted breakdown of asset kinds found.
func (s *Statistics) GetFileTypeBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.FileTypeStats) == 0 {
		return "No file type statistics available"
	}

	kinds := make([]string, 0, len(s.FileTypeStats))
	for kind := range s.FileTypeStats {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	result := "File Type Breakdown:\n"
	for _, kind := range kinds {
		result += fmt.Sprintf("  %s: %d\n", kind, s.FileTypeStats[kind])
	}
	return result
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return result
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	if bytes < 0 {
		return "-" + units.BytesSize(float64(-bytes))
	}
	return units.BytesSize(float64(bytes))
}

// GetFilesWithErrors returns the total number of files with errors.
func (s *Statistics) GetFilesWithErrors() int64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return int64(len(s.Errors))
}

// GetDuration returns the total duration of the run.
func (s *Statistics) GetDuration() time.Duration {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.Duration
}
