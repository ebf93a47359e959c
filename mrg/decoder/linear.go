package decoder

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/ZanzyTHEbar/medreport/mrg/common"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Default sizes for the linear decoder.
const (
	DefaultHidden    = 64
	DefaultMaxLength = 60
)

// LinearOptions configures NewLinear.
type LinearOptions struct {
	VocabSize int // tokenizer vocabulary size plus one for the sentinel
	Hidden    int
	MaxLength int
	Seed      int64
}

// Linear is a tiny recurrent-free language model: the study features are
// folded into a context vector, each step adds the embedding of the previous
// token, and a projection yields vocabulary logits. Decoding is greedy.
//
// Linear is safe for concurrent use; it keeps no per-call state.
type Linear struct {
	vocab     int
	hidden    int
	maxLength int

	emb  *mat.Dense    // [vocab x hidden]
	proj *mat.Dense    // [hidden x vocab]
	bias *mat.VecDense // [vocab]
}

// NewLinear builds a decoder whose weights are drawn from a seeded source,
// so equal options give equal outputs.
func NewLinear(opts LinearOptions) (*Linear, error) {
	if opts.VocabSize < 2 {
		return nil, fmt.Errorf("%w: decoder vocabulary size %d", common.ErrInvalidOption, opts.VocabSize)
	}
	if opts.Hidden <= 0 {
		opts.Hidden = DefaultHidden
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	scale := 1 / math.Sqrt(float64(opts.Hidden))
	fill := func(n int) []float64 {
		data := make([]float64, n)
		for i := range data {
			data[i] = rng.NormFloat64() * scale
		}
		return data
	}

	return &Linear{
		vocab:     opts.VocabSize,
		hidden:    opts.Hidden,
		maxLength: opts.MaxLength,
		emb:       mat.NewDense(opts.VocabSize, opts.Hidden, fill(opts.VocabSize*opts.Hidden)),
		proj:      mat.NewDense(opts.Hidden, opts.VocabSize, fill(opts.Hidden*opts.VocabSize)),
		bias:      mat.NewVecDense(opts.VocabSize, nil),
	}, nil
}

// VocabSize implements Decoder.
func (m *Linear) VocabSize() int { return m.vocab }

// MaxLength is the longest report Sample emits, sentinels excluded.
func (m *Linear) MaxLength() int { return m.maxLength }

// Forward implements Decoder.
func (m *Linear) Forward(ctx context.Context, global *mat.VecDense, attention *mat.Dense, targets []int) (*mat.Dense, error) {
	if len(targets) < 2 {
		return nil, fmt.Errorf("%w: target sequence needs at least two ids, got %d", common.ErrMissingTargets, len(targets))
	}
	for i, id := range targets {
		if id < 0 || id >= m.vocab {
			return nil, fmt.Errorf("%w: target %d at position %d", common.ErrIDOutOfRange, id, i)
		}
	}
	cv, err := m.fold(global, attention)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(len(targets)-1, m.vocab, nil)
	row := make([]float64, m.vocab)
	for t := 0; t < len(targets)-1; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m.step(cv, targets[t], row)
		logSoftmax(row)
		out.SetRow(t, row)
	}
	return out, nil
}

// Sample implements Decoder.
func (m *Linear) Sample(ctx context.Context, global *mat.VecDense, attention *mat.Dense) (Sampled, error) {
	cv, err := m.fold(global, attention)
	if err != nil {
		return Sampled{}, err
	}

	ids := []int{0}
	var logProbs []float64
	row := make([]float64, m.vocab)
	prev := 0
	for len(logProbs) < m.maxLength {
		if err := ctx.Err(); err != nil {
			return Sampled{}, err
		}
		m.step(cv, prev, row)
		logSoftmax(row)
		next := floats.MaxIdx(row)
		logProbs = append(logProbs, row[next])
		if next == 0 {
			break
		}
		ids = append(ids, next)
		prev = next
	}
	return Sampled{IDs: append(ids, 0), LogProbs: logProbs}, nil
}

// fold folds both feature tensors into one hidden-sized vector. Feature i
// lands in slot i mod hidden, so any extractor width works.
func (m *Linear) fold(global *mat.VecDense, attention *mat.Dense) (*mat.VecDense, error) {
	if global == nil || attention == nil {
		return nil, fmt.Errorf("%w: decoder input is missing a tensor", common.ErrShapeMismatch)
	}
	out := mat.NewVecDense(m.hidden, nil)
	for i := 0; i < global.Len(); i++ {
		slot := i % m.hidden
		out.SetVec(slot, out.AtVec(slot)+global.AtVec(i))
	}
	rows, cols := attention.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			slot := c % m.hidden
			out.SetVec(slot, out.AtVec(slot)+attention.At(r, c)/float64(rows))
		}
	}
	return out, nil
}

// step writes the logits following token prev into dst.
func (m *Linear) step(cv *mat.VecDense, prev int, dst []float64) {
	h := mat.NewVecDense(m.hidden, nil)
	h.AddVec(cv, m.emb.RowView(prev))
	for i := 0; i < m.hidden; i++ {
		h.SetVec(i, math.Tanh(h.AtVec(i)))
	}
	logits := mat.NewVecDense(m.vocab, dst)
	logits.MulVec(m.proj.T(), h)
	logits.AddVec(logits, m.bias)
}

func logSoftmax(row []float64) {
	floats.AddConst(-floats.LogSumExp(row), row)
}
