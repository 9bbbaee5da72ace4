package compressor

import (
	"context"
	"fmt"
	"time"
)

// Kind is the asset class that decides which compressor handles a file.
type Kind int

const (
	KindImage Kind = iota
	KindVideo
	KindGIF
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	case KindGIF:
		return "gif"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Asset is an oversized file discovered by the scanner.
type Asset struct {
	Path string
	Size int64
	Kind Kind
}

// Result actions.
const (
	ActionCompressed = "compressed"
	ActionConverted  = "converted"
	ActionBestEffort = "best-effort"
	ActionDryRun     = "dry-run"
	ActionError      = "error"
)

// CompressionResult describes the result of compressing a single file.
type CompressionResult struct {
	InputPath       string
	OutputPath      string
	OriginalSize    int64
	CompressedSize  int64
	PercentageSaved float64
	Action          string
	Message         string
	Success         bool
	MetTarget       bool
	Converted       bool
	Quality         int // final quality or CRF, 0 when no quality knob was used
	Width           int
	Height          int
	Attempts        int
	StartedAt       time.Time
	FinishedAt      time.Time
	Error           error
}

// Compressor shrinks a single asset. Failures are reported in the result,
// never returned, so one bad file cannot stop a run.
type Compressor interface {
	Compress(ctx context.Context, asset Asset) CompressionResult
}

func newResult(asset Asset) CompressionResult {
	return CompressionResult{
		InputPath:    asset.Path,
		OutputPath:   asset.Path,
		OriginalSize: asset.Size,
		StartedAt:    time.Now(),
	}
}

func (r *CompressionResult) fail(err error, format string, args ...any) CompressionResult {
	r.Action = ActionError
	r.Message = fmt.Sprintf(format, args...)
	r.Error = err
	r.Success = false
	r.FinishedAt = time.Now()
	return *r
}

// done fills in the outcome once the output is on disk at outPath.
func (r *CompressionResult) done(outPath string, size int64, metTarget bool) CompressionResult {
	r.OutputPath = outPath
	r.CompressedSize = size
	r.MetTarget = metTarget
	r.Converted = outPath != r.InputPath
	if r.OriginalSize > 0 {
		r.PercentageSaved = float64(r.OriginalSize-size) * 100 / float64(r.OriginalSize)
	}
	switch {
	case !metTarget:
		r.Action = ActionBestEffort
	case r.Converted:
		r.Action = ActionConverted
	default:
		r.Action = ActionCompressed
	}
	r.Success = true
	r.FinishedAt = time.Now()
	return *r
}
