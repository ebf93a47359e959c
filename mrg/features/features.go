// Package features defines the image and feature tensors exchanged with the
// visual extractor, and the extractors themselves.
package features

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/medreport/mrg/common"

	"gonum.org/v1/gonum/mat"
)

// Image is a normalized channel-major (CHW) pixel tensor.
type Image struct {
	Channels int
	Height   int
	Width    int
	Data     []float32
}

// NewImage checks that data matches the declared shape.
func NewImage(channels, height, width int, data []float32) (Image, error) {
	if channels <= 0 || height <= 0 || width <= 0 {
		return Image{}, fmt.Errorf("%w: image shape %dx%dx%d", common.ErrShapeMismatch, channels, height, width)
	}
	if len(data) != channels*height*width {
		return Image{}, fmt.Errorf("%w: image data has %d values, want %d", common.ErrShapeMismatch, len(data), channels*height*width)
	}
	return Image{Channels: channels, Height: height, Width: width, Data: data}, nil
}

// Pair is the extractor output for one image: per-region attention features
// (regions x dims) and the pooled global feature (dims).
type Pair struct {
	Attention *mat.Dense
	Global    *mat.VecDense
}

// Shape returns the attention rows and columns and the global length.
func (p Pair) Shape() (regions, attDims, globalDims int) {
	if p.Attention != nil {
		regions, attDims = p.Attention.Dims()
	}
	if p.Global != nil {
		globalDims = p.Global.Len()
	}
	return regions, attDims, globalDims
}

// Validate reports missing or empty tensors.
func (p Pair) Validate() error {
	if p.Attention == nil || p.Global == nil {
		return fmt.Errorf("%w: feature pair is missing a tensor", common.ErrShapeMismatch)
	}
	return nil
}

// SameShape reports whether p and q can be averaged together.
func (p Pair) SameShape(q Pair) bool {
	r1, a1, g1 := p.Shape()
	r2, a2, g2 := q.Shape()
	return r1 == r2 && a1 == a2 && g1 == g2
}

// Extractor turns one image into a feature pair.
type Extractor interface {
	Extract(ctx context.Context, img Image) (Pair, error)
	// Shape returns the attention regions and feature dims the extractor produces.
	Shape() (regions, dims int)
}

// Options configures extractor construction.
type Options struct {
	Regions           int
	Dims              int
	ModelPath         string
	ExecutionProvider string // "cpu", "cuda", "tensorrt", "coreml", "dml"
	DeviceID          int
}

// NewExtractor selects an extractor by provider name ("hash", "onnx").
// Unknown providers fall back to the deterministic hash extractor.
func NewExtractor(provider string, opts Options) Extractor {
	if opts.Regions <= 0 {
		opts.Regions = 49
	}
	if opts.Dims <= 0 {
		opts.Dims = 512
	}
	name := strings.ToLower(strings.TrimSpace(provider))
	switch {
	case name == "onnx" || strings.HasPrefix(name, "onnx:"):
		return newONNXExtractor(opts)
	default:
		return NewHashExtractor(opts.Regions, opts.Dims)
	}
}
