package compressor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"media-shrink/internal/codec"
	"media-shrink/internal/config"
	"media-shrink/internal/logger"
	"media-shrink/internal/metadata"
	"media-shrink/internal/search"
	"media-shrink/internal/writer"
)

// ImageCompressor applies the per-format policy to still images:
//
//	JPEG          flatten, quality+scale search, replace in place
//	PNG + alpha   lossless PNG, then PNG downscale, then WebP at .webp
//	PNG opaque    quality+scale search as JPEG at .jpg
//	WebP          quality+scale search, replace in place
//	other         search in the detected format, JPEG at .jpg on failure
type ImageCompressor struct {
	target     int64
	params     search.Params
	allowWebP  bool
	webpEffort int
	codec      search.Codec
	stamper    *metadata.Stamper
	logger     logrus.FieldLogger
}

// NewImageCompressor creates an ImageCompressor. stamper may be nil.
func NewImageCompressor(cfg *config.Config, c search.Codec, stamper *metadata.Stamper, log logrus.FieldLogger) *ImageCompressor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ImageCompressor{
		target:     cfg.Targets.Image.Bytes(),
		params:     cfg.Image.Search,
		allowWebP:  cfg.Image.AllowWebPFallback,
		webpEffort: cfg.Image.WebPEffort,
		codec:      c,
		stamper:    stamper,
		logger:     log,
	}
}

// output is an encoded buffer and where it should go.
type output struct {
	result search.Result
	path   string
}

// Compress processes one image asset.
func (c *ImageCompressor) Compress(ctx context.Context, asset Asset) CompressionResult {
	res := newResult(asset)
	if err := ctx.Err(); err != nil {
		return res.fail(err, "cancelled")
	}

	dec, err := codec.Decode(asset.Path)
	if err != nil {
		return res.fail(err, "open error: %v", err)
	}
	res.Width, res.Height = dec.Width, dec.Height

	var out output
	switch strings.ToLower(filepath.Ext(asset.Path)) {
	case ".jpg", ".jpeg":
		out, err = c.jpeg(dec.Image, asset.Path)
	case ".png":
		if codec.HasAlpha(dec.Image) {
			out, err = c.alphaPNG(dec.Image, asset.Path)
		} else {
			out, err = c.toJPEG(dec.Image, asset.Path)
		}
	case ".webp":
		out, err = c.webp(dec.Image, asset.Path)
	default:
		out, err = c.other(dec, asset.Path)
	}
	if err != nil {
		return res.fail(err, "encode error: %v", err)
	}

	res.Quality = out.result.Quality
	res.Width, res.Height = out.result.Width, out.result.Height
	res.Attempts = out.result.Attempts

	data := c.stamp(asset.Path, out, dec.Oriented)
	finalPath, err := c.write(asset.Path, out.path, data)
	if err != nil {
		return res.fail(err, "save error: %v", err)
	}

	entry := logger.WithFileOperation(c.logger, asset.Path, "compress").WithFields(logrus.Fields{
		"format":  out.result.Format.String(),
		"quality": out.result.Quality,
	})
	if !out.result.MetTarget {
		entry.Warnf("Target %d bytes not met, wrote best effort %dx%d (%d bytes)",
			c.target, out.result.Width, out.result.Height, len(data))
	} else {
		entry.Debugf("Encoded %dx%d in %d attempts", out.result.Width, out.result.Height, out.result.Attempts)
	}

	r := res.done(finalPath, int64(len(data)), out.result.MetTarget)
	switch {
	case r.Converted && out.result.Format == search.FormatWebP:
		r.Message = "PNG with transparency converted to WebP"
	case r.Converted:
		r.Message = fmt.Sprintf("converted to %s", out.result.Format)
	case r.MetTarget:
		r.Message = "image compressed"
	default:
		r.Message = "target not reachable, smallest encode kept"
	}
	return r
}

func (c *ImageCompressor) jpeg(img image.Image, path string) (output, error) {
	res, err := search.Progressive(codec.Flatten(img), search.FormatJPEG, c.target, c.params, c.codec,
		search.EncodeOptions{UseQuality: true, Optimize: true})
	return output{result: res, path: path}, err
}

func (c *ImageCompressor) toJPEG(img image.Image, path string) (output, error) {
	res, err := search.Progressive(codec.Flatten(img), search.FormatJPEG, c.target, c.params, c.codec,
		search.EncodeOptions{UseQuality: true, Optimize: true})
	return output{result: res, path: writer.DerivePath(path, search.FormatJPEG.Extension())}, err
}

func (c *ImageCompressor) webp(img image.Image, path string) (output, error) {
	res, err := search.Progressive(img, search.FormatWebP, c.target, c.params, c.codec,
		search.EncodeOptions{UseQuality: true, Effort: c.webpEffort})
	return output{result: res, path: path}, err
}

// alphaPNG keeps transparency: PNG at full size, PNG downscaled, then WebP.
func (c *ImageCompressor) alphaPNG(img image.Image, path string) (output, error) {
	res, err := search.Progressive(img, search.FormatPNG, c.target, c.params, c.codec,
		search.EncodeOptions{Optimize: true})
	if err != nil || res.MetTarget || !c.allowWebP {
		return output{result: res, path: path}, err
	}

	webp, werr := search.Progressive(img, search.FormatWebP, c.target, c.params, c.codec,
		search.EncodeOptions{UseQuality: true, Effort: c.webpEffort})
	if werr != nil {
		c.logger.WithField("file", path).Warnf("WebP fallback failed, keeping PNG: %v", werr)
		return output{result: res, path: path}, nil
	}
	webp.Attempts += res.Attempts
	return output{result: webp, path: writer.DerivePath(path, search.FormatWebP.Extension())}, nil
}

// other searches in the detected format and converts to JPEG on failure.
func (c *ImageCompressor) other(dec *codec.Decoded, path string) (output, error) {
	res, err := search.Progressive(dec.Image, dec.Format, c.target, c.params, c.codec,
		search.EncodeOptions{UseQuality: true, Optimize: true})
	if err == nil {
		return output{result: res, path: path}, nil
	}
	c.logger.WithField("file", path).Infof("Cannot re-encode as %s (%v), converting to JPEG", dec.Name, err)

	jpeg, jerr := c.toJPEG(dec.Image, path)
	if jerr != nil {
		return jpeg, errors.Join(err, jerr)
	}
	jpeg.result.Attempts += res.Attempts
	return jpeg, nil
}

// stamp copies metadata and the marker onto the encode. A stamped buffer that
// no longer fits a target the bare encode met is dropped.
func (c *ImageCompressor) stamp(src string, out output, upright bool) []byte {
	data := out.result.Data
	if !c.stamper.Enabled() {
		return data
	}
	stamped, err := c.stamper.ApplyBytes(src, data, filepath.Ext(out.path), upright)
	if err != nil {
		logger.WithFile(c.logger, src).Warnf("Metadata not copied: %v", err)
		return data
	}
	if out.result.MetTarget && int64(len(stamped)) > c.target {
		logger.WithFile(c.logger, src).Debug("Metadata would exceed target, writing without it")
		return data
	}
	return stamped
}

func (c *ImageCompressor) write(src, dst string, data []byte) (string, error) {
	if dst == src {
		return src, writer.Replace(src, data)
	}
	final, err := writer.Convert(src, dst, data)
	if err != nil {
		return "", err
	}
	logger.WithFile(c.logger, src).Infof("Converted to %s", final)
	return final, nil
}
