package codec

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"io"
	"os"
	"sort"
)

// DecodeGIF reads every frame of the GIF at path.
func DecodeGIF(path string) (*gif.GIF, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gif: %w", err)
	}
	defer f.Close()

	g, err := gif.DecodeAll(f)
	if err != nil {
		return nil, fmt.Errorf("decode gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("decode gif: no frames")
	}
	return g, nil
}

// PaletteSize maps a 1-100 quality to the number of colors kept per frame.
func PaletteSize(quality int) int {
	return min(256, max(2, quality*256/100))
}

// EncodeGIF writes g to w with every frame palette reduced to
// PaletteSize(quality) colors. g is not modified.
func EncodeGIF(w io.Writer, g *gif.GIF, quality int) error {
	colors := PaletteSize(quality)

	out := &gif.GIF{
		Image:     make([]*image.Paletted, len(g.Image)),
		Delay:     g.Delay,
		LoopCount: g.LoopCount,
		Disposal:  g.Disposal,
		Config: image.Config{
			Width:  g.Config.Width,
			Height: g.Config.Height,
		},
		BackgroundIndex: g.BackgroundIndex,
	}
	// The background index only means something against the global table.
	if global, ok := g.Config.ColorModel.(color.Palette); ok && len(global) > 0 {
		out.Config.ColorModel = global
	}
	for i, frame := range g.Image {
		out.Image[i] = reducePalette(frame, colors)
	}

	if err := gif.EncodeAll(w, out); err != nil {
		return fmt.Errorf("encode gif: %w", err)
	}
	return nil
}

// reducePalette keeps the n most used colors of frame (always including a
// fully transparent entry) and remaps the other pixels to the nearest kept
// opaque color.
func reducePalette(frame *image.Paletted, n int) *image.Paletted {
	if len(frame.Palette) <= n {
		return frame
	}

	counts := make([]int, len(frame.Palette))
	for _, idx := range frame.Pix {
		if int(idx) < len(counts) {
			counts[idx]++
		}
	}

	transparent := -1
	for i, c := range frame.Palette {
		if _, _, _, a := c.RGBA(); a == 0 {
			transparent = i
			break
		}
	}

	order := make([]int, len(frame.Palette))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if order[a] == transparent {
			return true
		}
		if order[b] == transparent {
			return false
		}
		return counts[order[a]] > counts[order[b]]
	})

	kept := order[:n]
	remap := make([]uint8, len(frame.Palette))
	palette := make(color.Palette, 0, n)
	var opaque color.Palette
	var opaqueIdx []uint8
	for _, old := range kept {
		newIdx := uint8(len(palette))
		remap[old] = newIdx
		palette = append(palette, frame.Palette[old])
		if old != transparent {
			opaque = append(opaque, frame.Palette[old])
			opaqueIdx = append(opaqueIdx, newIdx)
		}
	}

	keptSet := make(map[int]bool, n)
	for _, old := range kept {
		keptSet[old] = true
	}
	for old := range frame.Palette {
		if keptSet[old] || len(opaque) == 0 {
			continue
		}
		remap[old] = opaqueIdx[opaque.Index(frame.Palette[old])]
	}

	reduced := &image.Paletted{
		Pix:     make([]uint8, len(frame.Pix)),
		Stride:  frame.Stride,
		Rect:    frame.Rect,
		Palette: palette,
	}
	for i, idx := range frame.Pix {
		if int(idx) < len(remap) {
			reduced.Pix[i] = remap[idx]
		}
	}
	return reduced
}
