package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uniform(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestDecodeNormalizesUniformImage(t *testing.T) {
	l := NewLoader(8, "")
	img, err := l.Decode(bytes.NewReader(encodePNG(t, uniform(5, 3, color.RGBA{R: 255, G: 0, B: 128, A: 255}))))
	require.NoError(t, err)

	assert.Equal(t, 3, img.Channels)
	assert.Equal(t, 8, img.Height)
	assert.Equal(t, 8, img.Width)
	require.Len(t, img.Data, 3*8*8)

	plane := 64
	wantR := (1 - DefaultMean[0]) / DefaultStd[0]
	wantG := (0 - DefaultMean[1]) / DefaultStd[1]
	wantB := (128.0/255 - DefaultMean[2]) / DefaultStd[2]
	for i := 0; i < plane; i++ {
		assert.InDelta(t, wantR, img.Data[i], 0.02)
		assert.InDelta(t, wantG, img.Data[plane+i], 0.02)
		assert.InDelta(t, wantB, img.Data[2*plane+i], 0.02)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := NewLoader(4, "").Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestOrient(t *testing.T) {
	// 2x1 image: red on the left, blue on the right
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	red := color.RGBA{R: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	src.SetRGBA(0, 0, red)
	src.SetRGBA(1, 0, blue)

	tests := []struct {
		o          int
		w, h       int
		first, end color.RGBA
	}{
		{1, 2, 1, red, blue},
		{2, 2, 1, blue, red},
		{3, 2, 1, blue, red},
		{4, 2, 1, red, blue},
		{6, 1, 2, red, blue},
		{8, 1, 2, blue, red},
	}
	for _, tt := range tests {
		out := orient(src, tt.o)
		b := out.Bounds()
		assert.Equal(t, tt.w, b.Dx(), "orientation %d", tt.o)
		assert.Equal(t, tt.h, b.Dy(), "orientation %d", tt.o)
		assert.Equal(t, tt.first, color.RGBAModel.Convert(out.At(0, 0)), "orientation %d", tt.o)
		assert.Equal(t, tt.end, color.RGBAModel.Convert(out.At(b.Dx()-1, b.Dy()-1)), "orientation %d", tt.o)
	}
}

func TestReadOrientationWithoutExif(t *testing.T) {
	assert.Equal(t, 1, readOrientation(bytes.NewReader(encodePNG(t, uniform(1, 1, color.RGBA{A: 255})))))
}

func TestLoadStudyKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	shades := []uint8{0, 255, 60}
	var paths []string
	for i, s := range shades {
		name := filepath.Join("study", string(rune('a'+i))+".png")
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "study"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), encodePNG(t, uniform(4, 4, color.RGBA{R: s, G: s, B: s, A: 255})), 0o644))
		paths = append(paths, name)
	}

	l := NewLoader(4, dir)
	imgs, err := l.LoadStudy(context.Background(), paths, 3)
	require.NoError(t, err)
	require.Len(t, imgs, 3)
	for i, s := range shades {
		want := (float32(s)/255 - DefaultMean[0]) / DefaultStd[0]
		assert.InDelta(t, want, imgs[i].Data[0], 0.02)
	}

	_, err = l.LoadStudy(context.Background(), []string{"missing.png"}, 1)
	assert.Error(t, err)
}
