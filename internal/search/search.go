// Package search implements the bounded size-reduction searches used to fit
// media under a byte budget.
//
// Progressive drives an image encoder over two knobs, quality first and
// resolution second. Linear drives a single monotonic parameter such as a
// video CRF or a GIF quality. Neither function touches the filesystem; the
// caller owns every side effect.
package search

import (
	"errors"
	"fmt"
	"image"
)

// ErrEmptyImage is returned when the source image has no pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// Params holds the constants of the quality+scale search.
type Params struct {
	InitialQuality int     `mapstructure:"initial_quality"`
	MinQuality     int     `mapstructure:"min_quality"`
	QualityStep    int     `mapstructure:"quality_step"`
	DownscaleRatio float64 `mapstructure:"downscale_ratio"`
}

// DefaultParams returns 95/20/5 quality stepping with a 0.9 downscale ratio.
func DefaultParams() Params {
	return Params{
		InitialQuality: 95,
		MinQuality:     20,
		QualityStep:    5,
		DownscaleRatio: 0.9,
	}
}

// Validate checks that the parameters describe a terminating search.
func (p Params) Validate() error {
	if p.MinQuality < 1 || p.InitialQuality > 100 {
		return fmt.Errorf("quality range must be within 1..100, got %d..%d", p.MinQuality, p.InitialQuality)
	}
	if p.MinQuality > p.InitialQuality {
		return fmt.Errorf("min quality %d exceeds initial quality %d", p.MinQuality, p.InitialQuality)
	}
	if p.QualityStep < 1 {
		return fmt.Errorf("quality step must be positive, got %d", p.QualityStep)
	}
	if p.DownscaleRatio <= 0 || p.DownscaleRatio >= 1 {
		return fmt.Errorf("downscale ratio must be in (0, 1), got %g", p.DownscaleRatio)
	}
	return nil
}

// EncodeOptions are passed through to the codec on every attempt.
type EncodeOptions struct {
	Quality    int
	UseQuality bool
	Optimize   bool
	Lossless   bool
	Effort     int
}

// Codec is the image library the search drives.
type Codec interface {
	Encode(img image.Image, format Format, opts EncodeOptions) ([]byte, error)
	Resize(img image.Image, width, height int) image.Image
}

// Result is the outcome of a Progressive search.
type Result struct {
	Data      []byte
	Format    Format
	Quality   int // 0 when the format was encoded without a quality knob
	Width     int
	Height    int
	Attempts  int
	MetTarget bool
}

// Size returns the encoded byte count.
func (r Result) Size() int64 {
	return int64(len(r.Data))
}

// Progressive searches for an encoding of img in format whose size is at most
// target bytes. For every resolution it walks quality down from
// InitialQuality to MinQuality in QualityStep decrements and returns the
// first buffer that fits. When the floor is reached the dimensions shrink by
// DownscaleRatio and the quality walk restarts. Once shrinking no longer
// changes the dimensions the last buffer is returned with MetTarget unset.
//
// Formats without a quality knob, or calls with opts.UseQuality unset, only
// run the resolution loop with one encode per size. img is never modified;
// every downscale is resampled from the original pixels.
func Progressive(img image.Image, format Format, target int64, p Params, codec Codec, opts EncodeOptions) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if target <= 0 {
		return Result{}, fmt.Errorf("target size must be positive, got %d", target)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < 1 || height < 1 {
		return Result{}, ErrEmptyImage
	}

	useQuality := opts.UseQuality && format.SupportsQuality()
	res := Result{Format: format}
	work := img

	for {
		if useQuality {
			quality := p.InitialQuality
			for {
				attempt := opts
				attempt.Quality = quality
				data, err := codec.Encode(work, format, attempt)
				if err != nil {
					return res, fmt.Errorf("encode %s at q=%d %dx%d: %w", format, quality, width, height, err)
				}
				res.record(data, quality, width, height)
				if res.Size() <= target {
					res.MetTarget = true
					return res, nil
				}
				if quality <= p.MinQuality {
					break
				}
				quality = max(quality-p.QualityStep, p.MinQuality)
			}
		} else {
			attempt := opts
			attempt.UseQuality = false
			data, err := codec.Encode(work, format, attempt)
			if err != nil {
				return res, fmt.Errorf("encode %s %dx%d: %w", format, width, height, err)
			}
			res.record(data, 0, width, height)
			if res.Size() <= target {
				res.MetTarget = true
				return res, nil
			}
		}

		nextWidth, nextHeight, ok := NextSize(width, height, p.DownscaleRatio)
		if !ok {
			return res, nil
		}
		width, height = nextWidth, nextHeight
		work = codec.Resize(img, width, height)
	}
}

func (r *Result) record(data []byte, quality, width, height int) {
	r.Data = data
	r.Quality = quality
	r.Width = width
	r.Height = height
	r.Attempts++
}

// NextSize shrinks both dimensions by ratio, rounding down with a floor of
// one pixel. ok is false when neither dimension would change.
func NextSize(width, height int, ratio float64) (int, int, bool) {
	nextWidth := max(1, int(float64(width)*ratio))
	nextHeight := max(1, int(float64(height)*ratio))
	if nextWidth == width && nextHeight == height {
		return width, height, false
	}
	return nextWidth, nextHeight, true
}

// MaxAttempts returns the worst-case number of encodes Progressive performs
// for an image of the given size.
func MaxAttempts(width, height int, p Params, useQuality bool) int {
	perSize := 1
	if useQuality {
		perSize = (p.InitialQuality-p.MinQuality+p.QualityStep-1)/p.QualityStep + 1
	}
	sizes := 1
	for {
		w, h, ok := NextSize(width, height, p.DownscaleRatio)
		if !ok {
			break
		}
		width, height = w, h
		sizes++
	}
	return sizes * perSize
}
