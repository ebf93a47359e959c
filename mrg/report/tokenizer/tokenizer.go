// Package tokenizer encodes reports to id sequences and decodes them back.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/medreport/mrg/corpus"
	"github.com/ZanzyTHEbar/medreport/mrg/dataset"
	"github.com/ZanzyTHEbar/medreport/mrg/report/normalize"
	"github.com/ZanzyTHEbar/medreport/mrg/report/vocab"

	"github.com/rs/zerolog"
)

// Config holds what is needed to build a tokenizer from an annotation file
type Config struct {
	AnnPath   string
	Dataset   string
	Threshold int
}

// Tokenizer owns a vocabulary and the normalizer of one profile. Both are
// fixed at construction, so a Tokenizer can be shared across goroutines.
type Tokenizer struct {
	normalizer *normalize.Normalizer
	vocab      *vocab.Vocabulary
}

// New loads the annotation file and builds the vocabulary from its train split.
func New(cfg Config, logger zerolog.Logger) (*Tokenizer, error) {
	profile, err := dataset.Parse(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	c, err := corpus.Load(cfg.AnnPath)
	if err != nil {
		return nil, err
	}
	t, err := FromCorpus(c, profile, cfg.Threshold)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("dataset", profile.String()).
		Str("ann_path", cfg.AnnPath).
		Int("threshold", cfg.Threshold).
		Int("train_reports", len(c.Split(corpus.SplitTrain))).
		Int("vocab_size", t.vocab.Size()).
		Msg("Tokenizer vocabulary built")
	return t, nil
}

// FromCorpus builds the vocabulary from the train split of c.
func FromCorpus(c corpus.Corpus, profile dataset.Profile, threshold int) (*Tokenizer, error) {
	n, err := normalize.New(profile)
	if err != nil {
		return nil, err
	}
	v := vocab.Build(c.Reports(corpus.SplitTrain), n.Normalize, threshold)
	return &Tokenizer{normalizer: n, vocab: v}, nil
}

// WithVocabulary pairs an existing vocabulary with the normalizer of profile.
func WithVocabulary(profile dataset.Profile, v *vocab.Vocabulary) (*Tokenizer, error) {
	if v == nil {
		return nil, fmt.Errorf("vocabulary is required")
	}
	n, err := normalize.New(profile)
	if err != nil {
		return nil, err
	}
	return &Tokenizer{normalizer: n, vocab: v}, nil
}

func (t *Tokenizer) Profile() dataset.Profile     { return t.normalizer.Profile() }
func (t *Tokenizer) Vocabulary() *vocab.Vocabulary { return t.vocab }
func (t *Tokenizer) VocabSize() int                { return t.vocab.Size() }

// Normalize returns the cleaned form of report.
func (t *Tokenizer) Normalize(report string) string {
	return t.normalizer.Normalize(report)
}

// Encode normalizes report and maps it to ids bracketed by the sentinel.
// Unknown tokens map to the unknown id.
func (t *Tokenizer) Encode(report string) []int {
	tokens := strings.Fields(t.normalizer.Normalize(report))
	ids := make([]int, 0, len(tokens)+2)
	ids = append(ids, vocab.SentinelID)
	for _, tok := range tokens {
		ids = append(ids, t.vocab.IDByToken(tok))
	}
	return append(ids, vocab.SentinelID)
}

// Decode turns ids back into text. Index 0 is the leading sentinel and is
// skipped; the first zero after it ends the sequence. An id the vocabulary
// does not know is an error.
func (t *Tokenizer) Decode(ids []int) (string, error) {
	var b strings.Builder
	for i := 1; i < len(ids); i++ {
		if ids[i] == vocab.SentinelID {
			break
		}
		tok, err := t.vocab.TokenByID(ids[i])
		if err != nil {
			return "", fmt.Errorf("decode position %d: %w", i, err)
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(tok)
	}
	return b.String(), nil
}

// DecodeBatch decodes each sequence independently.
func (t *Tokenizer) DecodeBatch(batch [][]int) ([]string, error) {
	out := make([]string, len(batch))
	for i, ids := range batch {
		s, err := t.Decode(ids)
		if err != nil {
			return nil, fmt.Errorf("sequence %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}
