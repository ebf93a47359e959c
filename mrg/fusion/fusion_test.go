package fusion

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ZanzyTHEbar/medreport/mrg/common"
	"github.com/ZanzyTHEbar/medreport/mrg/dataset"
	"github.com/ZanzyTHEbar/medreport/mrg/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// valueExtractor fills every feature of an image with the image's first pixel value.
type valueExtractor struct {
	regions, dims int
	calls         atomic.Int64
	failOn        float32
}

func (e *valueExtractor) Shape() (int, int) { return e.regions, e.dims }

func (e *valueExtractor) Extract(ctx context.Context, img features.Image) (features.Pair, error) {
	e.calls.Add(1)
	v := img.Data[0]
	if e.failOn != 0 && v == e.failOn {
		return features.Pair{}, fmt.Errorf("extractor failed on %v", v)
	}
	return constPair(e.regions, e.dims, float64(v)), nil
}

func constPair(regions, dims int, v float64) features.Pair {
	att := mat.NewDense(regions, dims, nil)
	glob := mat.NewVecDense(dims, nil)
	for r := 0; r < regions; r++ {
		for c := 0; c < dims; c++ {
			att.Set(r, c, v)
		}
	}
	for c := 0; c < dims; c++ {
		glob.SetVec(c, v)
	}
	return features.Pair{Attention: att, Global: glob}
}

func images(values ...float32) []features.Image {
	out := make([]features.Image, len(values))
	for i, v := range values {
		out[i] = features.Image{Channels: 1, Height: 1, Width: 1, Data: []float32{v}}
	}
	return out
}

func rangeImages(n int) []features.Image {
	vals := make([]float32, n)
	for i := range vals {
		vals[i] = float32(i)
	}
	return images(vals...)
}

func mustStrategy(t *testing.T, p dataset.Profile, opts Options) Strategy {
	t.Helper()
	s, err := New(p, opts)
	require.NoError(t, err)
	return s
}

func TestNewSelectsStrategy(t *testing.T) {
	tests := []struct {
		profile dataset.Profile
		name    string
		count   int
	}{
		{dataset.IUXray, "paired", 2},
		{dataset.MIMICCXR, "single", 1},
		{dataset.FFAIR, "sequence", 0},
	}
	for _, tt := range tests {
		t.Run(tt.profile.String(), func(t *testing.T) {
			s := mustStrategy(t, tt.profile, DefaultOptions())
			assert.Equal(t, tt.name, s.Name())
			assert.Equal(t, tt.count, s.ImagesPerStudy())
		})
	}

	_, err := New(dataset.Profile(0), DefaultOptions())
	assert.True(t, errors.Is(err, common.ErrUnknownDataset))
	_, err = New(dataset.FFAIR, Options{SplitAt: 0})
	assert.True(t, errors.Is(err, common.ErrInvalidOption))
	_, err = New(dataset.FFAIR, Options{SplitAt: 3, EmptyBlock: EmptyBlockPolicy(7)})
	assert.True(t, errors.Is(err, common.ErrInvalidOption))
}

func TestPairedDoublesWidth(t *testing.T) {
	s := mustStrategy(t, dataset.IUXray, DefaultOptions())
	ext := &valueExtractor{regions: 49, dims: 8}

	fused, err := Fuse(context.Background(), s, ext, images(1, 2), 2)
	require.NoError(t, err)

	regions, attDims, globalDims := fused.Shape()
	assert.Equal(t, 98, regions)
	assert.Equal(t, 8, attDims)
	assert.Equal(t, 16, globalDims)

	// view order is preserved: first view on top, second below
	assert.Equal(t, 1.0, fused.Attention.At(0, 0))
	assert.Equal(t, 2.0, fused.Attention.At(49, 0))
	assert.Equal(t, 1.0, fused.Global.AtVec(7))
	assert.Equal(t, 2.0, fused.Global.AtVec(8))
}

func TestSinglePassesThrough(t *testing.T) {
	s := mustStrategy(t, dataset.MIMICCXR, DefaultOptions())
	p := constPair(3, 4, 5)

	fused, err := s.Combine([]features.Pair{p})
	require.NoError(t, err)
	assert.Same(t, p.Attention, fused.Attention)
	assert.Same(t, p.Global, fused.Global)
}

func TestImageCountErrors(t *testing.T) {
	ext := &valueExtractor{regions: 1, dims: 1}
	tests := []struct {
		profile dataset.Profile
		n       int
	}{
		{dataset.IUXray, 1},
		{dataset.IUXray, 3},
		{dataset.MIMICCXR, 2},
		{dataset.MIMICCXR, 0},
		{dataset.FFAIR, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.profile, tt.n), func(t *testing.T) {
			s := mustStrategy(t, tt.profile, DefaultOptions())
			_, err := Fuse(context.Background(), s, ext, rangeImages(tt.n), 1)
			assert.True(t, errors.Is(err, common.ErrImageCount))
		})
	}
	assert.Zero(t, ext.calls.Load(), "count is validated before extraction")
}

func TestSequenceFortyImages(t *testing.T) {
	s := mustStrategy(t, dataset.FFAIR, DefaultOptions())
	ext := &valueExtractor{regions: 2, dims: 3}

	fused, err := Fuse(context.Background(), s, ext, rangeImages(40), 8)
	require.NoError(t, err)

	regions, attDims, globalDims := fused.Shape()
	assert.Equal(t, 4, regions)
	assert.Equal(t, 3, attDims)
	assert.Equal(t, 6, globalDims)

	// mean(0..29) = 14.5, mean(30..39) = 34.5
	want := mat.NewDense(4, 3, []float64{
		14.5, 14.5, 14.5,
		14.5, 14.5, 14.5,
		34.5, 34.5, 34.5,
		34.5, 34.5, 34.5,
	})
	assert.True(t, mat.EqualApprox(want, fused.Attention, 1e-12))
	assert.True(t, mat.EqualApprox(mat.NewVecDense(6, []float64{14.5, 14.5, 14.5, 34.5, 34.5, 34.5}), fused.Global, 1e-12))
	assert.Equal(t, int64(40), ext.calls.Load())
}

func TestSequenceEmptyRemainder(t *testing.T) {
	ext := &valueExtractor{regions: 2, dims: 3}

	s := mustStrategy(t, dataset.FFAIR, DefaultOptions())
	_, err := Fuse(context.Background(), s, ext, rangeImages(30), 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrEmptyBlock))

	s = mustStrategy(t, dataset.FFAIR, Options{SplitAt: 30, EmptyBlock: EmptyBlockZero})
	fused, err := Fuse(context.Background(), s, ext, rangeImages(30), 4)
	require.NoError(t, err)
	regions, _, globalDims := fused.Shape()
	assert.Equal(t, 4, regions)
	assert.Equal(t, 6, globalDims)
	assert.InDelta(t, 14.5, fused.Attention.At(0, 0), 1e-12)
	assert.Equal(t, 0.0, fused.Attention.At(3, 2))
	assert.Equal(t, 0.0, fused.Global.AtVec(5))
}

func TestSequenceConfigurableSplit(t *testing.T) {
	s := mustStrategy(t, dataset.FFAIR, Options{SplitAt: 2})
	fused, err := s.Combine([]features.Pair{constPair(1, 1, 1), constPair(1, 1, 3), constPair(1, 1, 10)})
	require.NoError(t, err)
	assert.Equal(t, 2.0, fused.Attention.At(0, 0))
	assert.Equal(t, 10.0, fused.Attention.At(1, 0))
	assert.Equal(t, 2, s.(sequence).SplitAt())
}

func TestSequenceShapeMismatch(t *testing.T) {
	s := mustStrategy(t, dataset.FFAIR, Options{SplitAt: 1})
	_, err := s.Combine([]features.Pair{constPair(1, 2, 1), constPair(1, 3, 1)})
	assert.True(t, errors.Is(err, common.ErrShapeMismatch))
}

func TestExtractKeepsOrderAndPropagatesErrors(t *testing.T) {
	ext := &valueExtractor{regions: 1, dims: 1}
	pairs, err := Extract(context.Background(), ext, rangeImages(25), 6)
	require.NoError(t, err)
	for i, p := range pairs {
		assert.Equal(t, float64(i), p.Global.AtVec(0))
	}

	failing := &valueExtractor{regions: 1, dims: 1, failOn: 7}
	_, err = Extract(context.Background(), failing, rangeImages(10), 3)
	assert.ErrorContains(t, err, "image 7")
}

func TestParseEmptyBlockPolicy(t *testing.T) {
	p, err := ParseEmptyBlockPolicy("zero")
	require.NoError(t, err)
	assert.Equal(t, EmptyBlockZero, p)

	p, err = ParseEmptyBlockPolicy("")
	require.NoError(t, err)
	assert.Equal(t, EmptyBlockError, p)

	_, err = ParseEmptyBlockPolicy("skip")
	assert.True(t, errors.Is(err, common.ErrInvalidOption))
	assert.Equal(t, "zero", EmptyBlockZero.String())
}
