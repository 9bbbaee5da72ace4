package search

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	width, height int
	quality       int
	useQuality    bool
}

// fakeCodec produces width*height*quality/100 bytes (at least two), or
// width*height/2 bytes when no quality is requested.
type fakeCodec struct {
	calls   []call
	resized []image.Image
	failAt  int
}

func (f *fakeCodec) Encode(img image.Image, _ Format, opts EncodeOptions) ([]byte, error) {
	b := img.Bounds()
	f.calls = append(f.calls, call{width: b.Dx(), height: b.Dy(), quality: opts.Quality, useQuality: opts.UseQuality})
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return nil, errors.New("encoder exploded")
	}
	size := b.Dx() * b.Dy() / 2
	if opts.UseQuality {
		size = b.Dx() * b.Dy() * opts.Quality / 100
	}
	return make([]byte, max(2, size)), nil
}

func (f *fakeCodec) Resize(img image.Image, width, height int) image.Image {
	f.resized = append(f.resized, img)
	return image.NewNRGBA(image.Rect(0, 0, width, height))
}

func newImage(w, h int) image.Image {
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

var lossy = EncodeOptions{UseQuality: true, Optimize: true}

func TestProgressive_EarlyExitAtInitialQuality(t *testing.T) {
	codec := &fakeCodec{}
	res, err := Progressive(newImage(100, 100), FormatJPEG, 1<<20, DefaultParams(), codec, lossy)
	require.NoError(t, err)

	assert.True(t, res.MetTarget)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, 95, res.Quality)
	assert.Equal(t, 100, res.Width)
	assert.Len(t, codec.calls, 1)
}

func TestProgressive_StopsAtFirstQualityThatFits(t *testing.T) {
	codec := &fakeCodec{}
	// 100*100*50/100 = 5000 bytes first fits at q=50.
	res, err := Progressive(newImage(100, 100), FormatJPEG, 5000, DefaultParams(), codec, lossy)
	require.NoError(t, err)

	assert.True(t, res.MetTarget)
	assert.Equal(t, 50, res.Quality)
	assert.Equal(t, 10, res.Attempts)
	assert.Equal(t, int64(5000), res.Size())
	assert.Equal(t, []int{95, 90, 85, 80, 75, 70, 65, 60, 55, 50}, qualities(codec.calls))
}

func TestProgressive_DownscalesAfterQualityFloor(t *testing.T) {
	codec := &fakeCodec{}
	// 100x100 at q=20 is 2000 bytes; 90x90 at q=20 is 1620 bytes.
	res, err := Progressive(newImage(100, 100), FormatJPEG, 1700, DefaultParams(), codec, lossy)
	require.NoError(t, err)

	assert.True(t, res.MetTarget)
	assert.Equal(t, 90, res.Width)
	assert.Equal(t, 90, res.Height)
	assert.Equal(t, 20, res.Quality)
	assert.Equal(t, 32, res.Attempts)
	assert.Equal(t, 95, codec.calls[16].quality, "quality resets after a downscale")
}

func TestProgressive_TerminatesAtOnePixel(t *testing.T) {
	codec := &fakeCodec{}
	params := DefaultParams()
	res, err := Progressive(newImage(40, 30), FormatWebP, 1, params, codec, lossy)
	require.NoError(t, err)

	assert.False(t, res.MetTarget)
	assert.Equal(t, 1, res.Width)
	assert.Equal(t, 1, res.Height)
	assert.Equal(t, params.MinQuality, res.Quality)
	assert.Equal(t, MaxAttempts(40, 30, params, true), res.Attempts)
	assert.Len(t, codec.calls, res.Attempts)
	assert.NotEmpty(t, res.Data)
}

func TestProgressive_DimensionsStrictlyDecrease(t *testing.T) {
	codec := &fakeCodec{}
	_, err := Progressive(newImage(64, 48), FormatJPEG, 1, DefaultParams(), codec, lossy)
	require.NoError(t, err)

	prevW, prevH := codec.calls[0].width, codec.calls[0].height
	for _, c := range codec.calls[1:] {
		if c.width == prevW && c.height == prevH {
			continue
		}
		assert.True(t, c.width <= prevW && c.height <= prevH, "dimensions grew: %dx%d -> %dx%d", prevW, prevH, c.width, c.height)
		assert.True(t, c.width < prevW || c.height < prevH)
		assert.GreaterOrEqual(t, c.width, 1)
		assert.GreaterOrEqual(t, c.height, 1)
		prevW, prevH = c.width, c.height
	}
}

func TestProgressive_NeverProbesBelowFloor(t *testing.T) {
	codec := &fakeCodec{}
	params := Params{InitialQuality: 95, MinQuality: 20, QualityStep: 10, DownscaleRatio: 0.5}
	_, err := Progressive(newImage(8, 8), FormatJPEG, 1, params, codec, lossy)
	require.NoError(t, err)

	for _, c := range codec.calls {
		assert.GreaterOrEqual(t, c.quality, 20)
		assert.LessOrEqual(t, c.quality, 95)
	}
	assert.Equal(t, []int{95, 85, 75, 65, 55, 45, 35, 25, 20}, qualities(codec.calls[:9]))
}

func TestProgressive_ScaleOnlyForFormatsWithoutQuality(t *testing.T) {
	codec := &fakeCodec{}
	// 100x100/2 = 5000; 90x90/2 = 4050; 81x81/2 = 3280.
	res, err := Progressive(newImage(100, 100), FormatPNG, 3500, DefaultParams(), codec, lossy)
	require.NoError(t, err)

	assert.True(t, res.MetTarget)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 81, res.Width)
	assert.Equal(t, 0, res.Quality)
	for _, c := range codec.calls {
		assert.False(t, c.useQuality)
	}
}

func TestProgressive_ScaleOnlyWhenQualityDisabled(t *testing.T) {
	codec := &fakeCodec{}
	res, err := Progressive(newImage(10, 10), FormatJPEG, 1, DefaultParams(), codec, EncodeOptions{})
	require.NoError(t, err)

	assert.False(t, res.MetTarget)
	assert.Equal(t, MaxAttempts(10, 10, DefaultParams(), false), res.Attempts)
}

func TestProgressive_ResizesFromSource(t *testing.T) {
	codec := &fakeCodec{}
	src := newImage(50, 50)
	_, err := Progressive(src, FormatJPEG, 1, DefaultParams(), codec, lossy)
	require.NoError(t, err)

	require.NotEmpty(t, codec.resized)
	for _, img := range codec.resized {
		assert.Same(t, src, img)
	}
	assert.Equal(t, image.Rect(0, 0, 50, 50), src.Bounds())
}

func TestProgressive_EncodeErrorAborts(t *testing.T) {
	codec := &fakeCodec{failAt: 3}
	_, err := Progressive(newImage(100, 100), FormatJPEG, 1, DefaultParams(), codec, lossy)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoder exploded")
	assert.Len(t, codec.calls, 3)
}

func TestProgressive_RejectsBadInput(t *testing.T) {
	codec := &fakeCodec{}

	_, err := Progressive(newImage(0, 10), FormatJPEG, 100, DefaultParams(), codec, lossy)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = Progressive(newImage(10, 10), FormatJPEG, 0, DefaultParams(), codec, lossy)
	assert.Error(t, err)

	bad := DefaultParams()
	bad.DownscaleRatio = 1
	_, err = Progressive(newImage(10, 10), FormatJPEG, 100, bad, codec, lossy)
	assert.Error(t, err)
	assert.Empty(t, codec.calls)
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr bool
	}{
		{"defaults", func(*Params) {}, false},
		{"floor above start", func(p *Params) { p.MinQuality = 96 }, true},
		{"zero floor", func(p *Params) { p.MinQuality = 0 }, true},
		{"start above 100", func(p *Params) { p.InitialQuality = 101 }, true},
		{"zero step", func(p *Params) { p.QualityStep = 0 }, true},
		{"zero ratio", func(p *Params) { p.DownscaleRatio = 0 }, true},
		{"single quality", func(p *Params) { p.InitialQuality = 20 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNextSize(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
		wantOK       bool
	}{
		{4000, 3000, 3600, 2700, true},
		{10, 1, 9, 1, true},
		{2, 1, 1, 1, true},
		{1, 1, 1, 1, false},
	}
	for _, tt := range tests {
		w, h, ok := NextSize(tt.w, tt.h, 0.9)
		assert.Equal(t, tt.wantW, w, "width for %dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "height for %dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantOK, ok, "ok for %dx%d", tt.w, tt.h)
	}
}

func TestMaxAttempts(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 16, MaxAttempts(1, 1, p, true))
	assert.Equal(t, 1, MaxAttempts(1, 1, p, false))
	assert.Equal(t, 32, MaxAttempts(2, 1, p, true))
}

func qualities(calls []call) []int {
	out := make([]int, len(calls))
	for i, c := range calls {
		out[i] = c.quality
	}
	return out
}
