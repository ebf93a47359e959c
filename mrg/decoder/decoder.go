// Package decoder defines the contract of the report decoder and ships a
// small deterministic linear decoder used when no trained model is wired in.
package decoder

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Decoder maps fused study features to report tokens.
type Decoder interface {
	// Forward runs a teacher-forced pass over targets, which must be a full
	// id sequence [0, ids..., 0]. Row t of the result holds the
	// log-probabilities over the vocabulary for position t+1.
	Forward(ctx context.Context, global *mat.VecDense, attention *mat.Dense, targets []int) (*mat.Dense, error)
	// Sample decodes a report autoregressively.
	Sample(ctx context.Context, global *mat.VecDense, attention *mat.Dense) (Sampled, error)
	// VocabSize is the number of logits per step, sentinel included.
	VocabSize() int
}

// Sampled is one sampled report. IDs is framed as [0, ids..., 0] so it can be
// handed straight to a tokenizer. LogProbs holds the log-probability of every
// emitted token, the closing sentinel included.
type Sampled struct {
	IDs      []int
	LogProbs []float64
}
