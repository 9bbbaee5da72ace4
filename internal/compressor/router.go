package compressor

import (
	"context"
	"fmt"
)

// Router dispatches an asset to the compressor registered for its kind.
type Router struct {
	compressors map[Kind]Compressor
	dryRun      bool
}

// NewRouter returns a Router. In dry-run mode no compressor is invoked.
func NewRouter(image, video, gif Compressor, dryRun bool) *Router {
	r := &Router{compressors: make(map[Kind]Compressor), dryRun: dryRun}
	r.Register(KindImage, image)
	r.Register(KindVideo, video)
	r.Register(KindGIF, gif)
	return r
}

// Register sets the compressor for kind. A nil compressor unregisters it.
func (r *Router) Register(kind Kind, c Compressor) {
	if c == nil {
		delete(r.compressors, kind)
		return
	}
	r.compressors[kind] = c
}

// Compress implements Compressor.
func (r *Router) Compress(ctx context.Context, asset Asset) CompressionResult {
	if r.dryRun {
		res := newResult(asset)
		res.Action = ActionDryRun
		res.Message = fmt.Sprintf("would compress %s", asset.Kind)
		res.Success = true
		res.CompressedSize = asset.Size
		res.FinishedAt = res.StartedAt
		return res
	}

	c, ok := r.compressors[asset.Kind]
	if !ok {
		res := newResult(asset)
		return res.fail(fmt.Errorf("no compressor for %s", asset.Kind), "no compressor for %s", asset.Kind)
	}
	return c.Compress(ctx, asset)
}
