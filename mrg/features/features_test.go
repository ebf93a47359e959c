package features

import (
	"context"
	"errors"
	"testing"

	"github.com/ZanzyTHEbar/medreport/mrg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewImage(t *testing.T) {
	img, err := NewImage(3, 2, 2, make([]float32, 12))
	require.NoError(t, err)
	assert.Equal(t, 3, img.Channels)

	_, err = NewImage(3, 2, 2, make([]float32, 11))
	assert.True(t, errors.Is(err, common.ErrShapeMismatch))

	_, err = NewImage(0, 2, 2, nil)
	assert.True(t, errors.Is(err, common.ErrShapeMismatch))
}

func TestHashExtractorDeterministic(t *testing.T) {
	ext := NewHashExtractor(4, 8)
	img, err := NewImage(1, 2, 2, []float32{0.1, 0.2, 0.3, 0.4})
	require.NoError(t, err)

	a, err := ext.Extract(context.Background(), img)
	require.NoError(t, err)
	b, err := ext.Extract(context.Background(), img)
	require.NoError(t, err)

	regions, attDims, globalDims := a.Shape()
	assert.Equal(t, 4, regions)
	assert.Equal(t, 8, attDims)
	assert.Equal(t, 8, globalDims)
	assert.True(t, mat.Equal(a.Attention, b.Attention))
	assert.True(t, mat.Equal(a.Global, b.Global))
	assert.True(t, a.SameShape(b))
	require.NoError(t, a.Validate())

	other, err := ext.Extract(context.Background(), Image{Channels: 1, Height: 2, Width: 2, Data: []float32{1, 2, 3, 4}})
	require.NoError(t, err)
	assert.False(t, mat.Equal(a.Attention, other.Attention))
}

func TestHashExtractorGlobalIsRegionMean(t *testing.T) {
	ext := NewHashExtractor(3, 5)
	p, err := ext.Extract(context.Background(), Image{Channels: 1, Height: 1, Width: 1, Data: []float32{7}})
	require.NoError(t, err)
	for j := 0; j < 5; j++ {
		want := (p.Attention.At(0, j) + p.Attention.At(1, j) + p.Attention.At(2, j)) / 3
		assert.InDelta(t, want, p.Global.AtVec(j), 1e-12)
	}
}

func TestHashExtractorHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHashExtractor(1, 1).Extract(ctx, Image{Channels: 1, Height: 1, Width: 1, Data: []float32{0}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewExtractor(t *testing.T) {
	ext := NewExtractor("hash", Options{})
	r, d := ext.Shape()
	assert.Equal(t, 49, r)
	assert.Equal(t, 512, d)

	ext = NewExtractor("onnx", Options{Regions: 2, Dims: 3})
	r, d = ext.Shape()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, d)
}

func TestPairValidate(t *testing.T) {
	assert.True(t, errors.Is(Pair{}.Validate(), common.ErrShapeMismatch))
}
