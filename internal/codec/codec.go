// Package codec adapts the imaging and libvips libraries to the search
// package. Decoding goes through image.Decode (with the WebP decoder
// registered), JPEG/PNG/GIF/BMP/TIFF encoding and resampling through
// imaging, and WebP encoding through libvips.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"media-shrink/internal/search"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP decoding
)

// ErrUnsupportedFormat is returned when an image cannot be encoded in the requested format.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Decoded is an image read from disk together with what the decoder learned about it.
type Decoded struct {
	Image  image.Image
	Format search.Format
	Name   string // decoder name as registered with the image package
	Width  int
	Height int

	// Oriented is set when the EXIF Orientation tag was applied to the
	// pixels. imaging only reads it from JPEG streams.
	Oriented bool
}

// Decode reads and decodes the image at path, applying EXIF orientation.
// The container is detected from content, not from the extension.
func Decode(path string) (*Decoded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("detect image format: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", name, err)
	}

	format, err := search.ParseFormat(name)
	if err != nil {
		format = search.FormatUnknown
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		b = image.Rect(0, 0, cfg.Width, cfg.Height)
	}
	return &Decoded{
		Image:  img,
		Format: format,
		Name:   name,
		Width:  b.Dx(),
		Height: b.Dy(),

		Oriented: format == search.FormatJPEG,
	}, nil
}

// HasAlpha reports whether the image's color model carries an alpha channel.
// This follows the color mode rather than pixel values: an RGBA PNG whose
// pixels happen to be opaque still counts as having alpha.
func HasAlpha(img image.Image) bool {
	switch model := img.ColorModel().(type) {
	case color.Palette:
		for _, c := range model {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	default:
		switch model {
		case color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model, color.NYCbCrAModel:
			return true
		}
	}
	return false
}

// Flatten returns an opaque copy of img composited over white. Images that
// have no alpha channel are returned unchanged.
func Flatten(img image.Image) image.Image {
	if !HasAlpha(img) {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

// ImageCodec implements search.Codec.
type ImageCodec struct {
	webp WebPEncoder
}

// WebPEncoder encodes an image as WebP. It is satisfied by the libvips backend.
type WebPEncoder interface {
	EncodeWebP(img image.Image, opts search.EncodeOptions) ([]byte, error)
}

// NewImageCodec returns a codec that encodes WebP through webp. A nil webp
// disables WebP output.
func NewImageCodec(webp WebPEncoder) *ImageCodec {
	return &ImageCodec{webp: webp}
}

// Encode encodes img in format and returns the bytes.
func (c *ImageCodec) Encode(img image.Image, format search.Format, opts search.EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case search.FormatJPEG:
		quality := 95
		if opts.UseQuality && opts.Quality > 0 {
			quality = opts.Quality
		}
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case search.FormatPNG:
		level := png.DefaultCompression
		if opts.Optimize {
			level = png.BestCompression
		}
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(level))
	case search.FormatGIF:
		err = imaging.Encode(&buf, img, imaging.GIF, imaging.GIFNumColors(256))
	case search.FormatBMP:
		err = imaging.Encode(&buf, img, imaging.BMP)
	case search.FormatTIFF:
		err = imaging.Encode(&buf, img, imaging.TIFF)
	case search.FormatWebP:
		if c.webp == nil {
			return nil, fmt.Errorf("%w: %s (no WebP encoder)", ErrUnsupportedFormat, format)
		}
		return c.webp.EncodeWebP(img, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Resize resamples img to width x height with a Lanczos filter.
func (c *ImageCodec) Resize(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}
