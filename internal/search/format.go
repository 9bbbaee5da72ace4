package search

import (
	"fmt"
	"strings"
)

// Format identifies an output image encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
	FormatWebP
	FormatGIF
	FormatBMP
	FormatTIFF
)

// String returns the canonical upper-case name of the format.
func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "JPEG"
	case FormatPNG:
		return "PNG"
	case FormatWebP:
		return "WEBP"
	case FormatGIF:
		return "GIF"
	case FormatBMP:
		return "BMP"
	case FormatTIFF:
		return "TIFF"
	default:
		return "UNKNOWN"
	}
}

// Extension returns the file extension written for the format, with the leading dot.
func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	case FormatWebP:
		return ".webp"
	case FormatGIF:
		return ".gif"
	case FormatBMP:
		return ".bmp"
	case FormatTIFF:
		return ".tiff"
	default:
		return ""
	}
}

// SupportsQuality reports whether the encoder exposes a lossy quality knob.
func (f Format) SupportsQuality() bool {
	return f == FormatJPEG || f == FormatWebP
}

// SupportsAlpha reports whether the format can carry transparency.
func (f Format) SupportsAlpha() bool {
	switch f {
	case FormatPNG, FormatWebP, FormatGIF, FormatTIFF:
		return true
	default:
		return false
	}
}

// ParseFormat maps a decoder name ("jpeg", "png", ...) or an extension (".jpg") to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(name), ".") {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	case "gif":
		return FormatGIF, nil
	case "bmp":
		return FormatBMP, nil
	case "tiff", "tif":
		return FormatTIFF, nil
	}
	return FormatUnknown, fmt.Errorf("unknown image format: %q", name)
}
