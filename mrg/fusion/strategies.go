package fusion

import (
	"fmt"

	"github.com/ZanzyTHEbar/medreport/mrg/common"
	"github.com/ZanzyTHEbar/medreport/mrg/features"

	"gonum.org/v1/gonum/mat"
)

// paired fuses a two-view study (frontal and lateral) by concatenation.
type paired struct{}

func (paired) Name() string        { return "paired" }
func (paired) ImagesPerStudy() int { return 2 }

func (s paired) Combine(pairs []features.Pair) (Fused, error) {
	if err := CheckCount(s, len(pairs)); err != nil {
		return Fused{}, err
	}
	return concatPairs(pairs[0], pairs[1])
}

// single passes a one-image study through untouched.
type single struct{}

func (single) Name() string        { return "single" }
func (single) ImagesPerStudy() int { return 1 }

func (s single) Combine(pairs []features.Pair) (Fused, error) {
	if err := CheckCount(s, len(pairs)); err != nil {
		return Fused{}, err
	}
	if err := pairs[0].Validate(); err != nil {
		return Fused{}, err
	}
	return Fused{Attention: pairs[0].Attention, Global: pairs[0].Global}, nil
}

// sequence averages an ordered frame sequence in two blocks, [0, splitAt)
// and [splitAt, n), then concatenates the block means.
type sequence struct {
	splitAt    int
	emptyBlock EmptyBlockPolicy
}

func (sequence) Name() string        { return "sequence" }
func (sequence) ImagesPerStudy() int { return 0 }

// SplitAt returns the size of the leading block.
func (s sequence) SplitAt() int { return s.splitAt }

func (s sequence) Combine(pairs []features.Pair) (Fused, error) {
	if err := CheckCount(s, len(pairs)); err != nil {
		return Fused{}, err
	}
	for i := range pairs {
		if err := pairs[i].Validate(); err != nil {
			return Fused{}, fmt.Errorf("image %d: %w", i, err)
		}
		if !pairs[i].SameShape(pairs[0]) {
			return Fused{}, fmt.Errorf("%w: image %d differs from image 0", common.ErrShapeMismatch, i)
		}
	}

	cut := min(s.splitAt, len(pairs))
	head, tail := pairs[:cut], pairs[cut:]

	first := meanPair(head)
	var second features.Pair
	if len(tail) == 0 {
		if s.emptyBlock == EmptyBlockError {
			return Fused{}, fmt.Errorf("%w: %d images leave the block after index %d empty", common.ErrEmptyBlock, len(pairs), s.splitAt)
		}
		second = zeroLike(first)
	} else {
		second = meanPair(tail)
	}
	return concatPairs(first, second)
}

// meanPair averages attention and global features element-wise. pairs must
// be non-empty and share one shape.
func meanPair(pairs []features.Pair) features.Pair {
	r, c := pairs[0].Attention.Dims()
	att := mat.NewDense(r, c, nil)
	glob := mat.NewVecDense(pairs[0].Global.Len(), nil)
	for _, p := range pairs {
		att.Add(att, p.Attention)
		glob.AddVec(glob, p.Global)
	}
	inv := 1 / float64(len(pairs))
	att.Scale(inv, att)
	glob.ScaleVec(inv, glob)
	return features.Pair{Attention: att, Global: glob}
}

func zeroLike(p features.Pair) features.Pair {
	r, c := p.Attention.Dims()
	return features.Pair{
		Attention: mat.NewDense(r, c, nil),
		Global:    mat.NewVecDense(p.Global.Len(), nil),
	}
}

// concatPairs stacks attention rows of a above b and joins the global vectors.
func concatPairs(a, b features.Pair) (Fused, error) {
	if err := a.Validate(); err != nil {
		return Fused{}, err
	}
	if err := b.Validate(); err != nil {
		return Fused{}, err
	}
	_, ca := a.Attention.Dims()
	_, cb := b.Attention.Dims()
	if ca != cb {
		return Fused{}, fmt.Errorf("%w: attention dims %d and %d", common.ErrShapeMismatch, ca, cb)
	}

	var att mat.Dense
	att.Stack(a.Attention, b.Attention)

	la, lb := a.Global.Len(), b.Global.Len()
	glob := mat.NewVecDense(la+lb, nil)
	glob.SliceVec(0, la).(*mat.VecDense).CopyVec(a.Global)
	glob.SliceVec(la, la+lb).(*mat.VecDense).CopyVec(b.Global)

	return Fused{Attention: &att, Global: glob}, nil
}
