// Package fusion turns the variable number of images in a study into one
// fixed-shape feature pair for the decoder.
//
// Attention features are concatenated along the region axis (rows), the axis
// the decoder attends over. Global features are concatenated end to end.
package fusion

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/medreport/mrg/common"
	"github.com/ZanzyTHEbar/medreport/mrg/dataset"
	"github.com/ZanzyTHEbar/medreport/mrg/features"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/mat"
)

// Fused is the per-study decoder input. It is built fresh for every study.
type Fused struct {
	Attention *mat.Dense
	Global    *mat.VecDense
}

// Shape returns attention rows, attention columns and global length.
func (f Fused) Shape() (regions, attDims, globalDims int) {
	return features.Pair{Attention: f.Attention, Global: f.Global}.Shape()
}

// Strategy fuses the feature pairs of one study.
type Strategy interface {
	Name() string
	// ImagesPerStudy is the exact image count required, or 0 when variable.
	ImagesPerStudy() int
	// Combine fuses already extracted pairs, in image order.
	Combine(pairs []features.Pair) (Fused, error)
}

// EmptyBlockPolicy decides what the sequence strategy does when a block has no images.
type EmptyBlockPolicy int

const (
	// EmptyBlockError fails the study with ErrEmptyBlock.
	EmptyBlockError EmptyBlockPolicy = iota
	// EmptyBlockZero substitutes an all-zero block of the same shape.
	EmptyBlockZero
)

func (p EmptyBlockPolicy) String() string {
	switch p {
	case EmptyBlockError:
		return "error"
	case EmptyBlockZero:
		return "zero"
	default:
		return fmt.Sprintf("EmptyBlockPolicy(%d)", int(p))
	}
}

// ParseEmptyBlockPolicy accepts "error" or "zero".
func ParseEmptyBlockPolicy(s string) (EmptyBlockPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "error":
		return EmptyBlockError, nil
	case "zero":
		return EmptyBlockZero, nil
	default:
		return 0, fmt.Errorf("%w: empty block policy %q", common.ErrInvalidOption, s)
	}
}

// DefaultSplitAt is the size of the leading block of an angiography sequence.
const DefaultSplitAt = 30

// Options configures strategy construction. It is copied into the strategy.
type Options struct {
	SplitAt    int
	EmptyBlock EmptyBlockPolicy
}

// DefaultOptions returns the options matching the reference training setup.
func DefaultOptions() Options {
	return Options{SplitAt: DefaultSplitAt, EmptyBlock: EmptyBlockError}
}

// New returns the strategy for profile p.
func New(p dataset.Profile, opts Options) (Strategy, error) {
	switch p {
	case dataset.IUXray:
		return paired{}, nil
	case dataset.MIMICCXR:
		return single{}, nil
	case dataset.FFAIR:
		if opts.SplitAt <= 0 {
			return nil, fmt.Errorf("%w: split point must be positive, got %d", common.ErrInvalidOption, opts.SplitAt)
		}
		if opts.EmptyBlock != EmptyBlockError && opts.EmptyBlock != EmptyBlockZero {
			return nil, fmt.Errorf("%w: %s", common.ErrInvalidOption, opts.EmptyBlock)
		}
		return sequence{splitAt: opts.SplitAt, emptyBlock: opts.EmptyBlock}, nil
	default:
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownDataset, p)
	}
}

// CheckCount validates the number of images in a study against s.
func CheckCount(s Strategy, n int) error {
	want := s.ImagesPerStudy()
	if want > 0 && n != want {
		return fmt.Errorf("%w: %s strategy needs %d images, got %d", common.ErrImageCount, s.Name(), want, n)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s strategy got no images", common.ErrImageCount, s.Name())
	}
	return nil
}

// Extract runs ext over images with at most workers concurrent calls. The
// returned pairs keep the order of images.
func Extract(ctx context.Context, ext features.Extractor, images []features.Image, workers int) ([]features.Pair, error) {
	if workers <= 0 {
		workers = 1
	}
	pairs := make([]features.Pair, len(images))
	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError()
	for i := range images {
		p.Go(func(ctx context.Context) error {
			pair, err := ext.Extract(ctx, images[i])
			if err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			if err := pair.Validate(); err != nil {
				return fmt.Errorf("image %d: %w", i, err)
			}
			pairs[i] = pair
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// Fuse validates the image count, extracts every image and combines the result.
func Fuse(ctx context.Context, s Strategy, ext features.Extractor, images []features.Image, workers int) (Fused, error) {
	if err := CheckCount(s, len(images)); err != nil {
		return Fused{}, err
	}
	pairs, err := Extract(ctx, ext, images, workers)
	if err != nil {
		return Fused{}, err
	}
	return s.Combine(pairs)
}
