// Package imaging decodes study images into normalized model input tensors.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/ZanzyTHEbar/medreport/mrg/features"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/image/draw"
)

// ImageNet channel statistics used by the visual backbone.
var (
	DefaultMean = [3]float32{0.485, 0.456, 0.406}
	DefaultStd  = [3]float32{0.229, 0.224, 0.225}
)

// DefaultSize is the square input side of the visual backbone.
const DefaultSize = 224

// Loader turns encoded images into features.Image tensors.
type Loader struct {
	Size         int
	Mean         [3]float32
	Std          [3]float32
	Interpolator draw.Interpolator
	// Root is joined with relative paths passed to LoadStudy.
	Root string
}

// NewLoader returns a loader producing size x size RGB tensors.
func NewLoader(size int, root string) *Loader {
	if size <= 0 {
		size = DefaultSize
	}
	return &Loader{
		Size:         size,
		Mean:         DefaultMean,
		Std:          DefaultStd,
		Interpolator: draw.BiLinear,
		Root:         root,
	}
}

// Decode reads one PNG or JPEG image, applies its EXIF orientation, resizes
// it and normalizes every channel.
func (l *Loader) Decode(r io.Reader) (features.Image, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return features.Image{}, fmt.Errorf("failed to read image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return features.Image{}, fmt.Errorf("failed to decode image: %w", err)
	}
	img = orient(img, readOrientation(bytes.NewReader(raw)))

	dst := image.NewRGBA(image.Rect(0, 0, l.Size, l.Size))
	interp := l.Interpolator
	if interp == nil {
		interp = draw.BiLinear
	}
	interp.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return l.normalize(dst)
}

// Load decodes the image at path.
func (l *Loader) Load(path string) (features.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return features.Image{}, err
	}
	defer f.Close()
	img, err := l.Decode(f)
	if err != nil {
		return features.Image{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// LoadStudy loads the images of one study concurrently, keeping path order.
func (l *Loader) LoadStudy(ctx context.Context, paths []string, workers int) ([]features.Image, error) {
	if workers <= 0 {
		workers = 1
	}
	out := make([]features.Image, len(paths))
	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError()
	for i, path := range paths {
		if l.Root != "" && !filepath.IsAbs(path) {
			path = filepath.Join(l.Root, path)
		}
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := l.Load(path)
			if err != nil {
				return err
			}
			out[i] = img
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalize converts an RGBA image into a CHW tensor of (v/255 - mean) / std.
func (l *Loader) normalize(img *image.RGBA) (features.Image, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			px := img.Pix[off : off+3 : off+3]
			for c := 0; c < 3; c++ {
				v := float32(px[c]) / 255
				data[c*plane+y*w+x] = (v - l.Mean[c]) / l.Std[c]
			}
		}
	}
	return features.NewImage(3, h, w, data)
}
