//go:build !onnx
// +build !onnx

package features

import (
	"context"
	"fmt"
)

// onnxExtractor is a stub used when built without the "onnx" build tag.
type onnxExtractor struct{ opts Options }

func newONNXExtractor(opts Options) Extractor { return &onnxExtractor{opts: opts} }

func (e *onnxExtractor) Shape() (int, int) { return e.opts.Regions, e.opts.Dims }

func (e *onnxExtractor) Extract(ctx context.Context, img Image) (Pair, error) {
	return Pair{}, fmt.Errorf("onnx extractor not available: build with -tags onnx and provide a supported model")
}
