// Package vocab builds and holds the word-level report vocabulary.
//
// Ids start at 1 and follow the lexicographic order of the retained tokens.
// Id 0 is reserved for the start/end sentinel and never maps to a token.
package vocab

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/medreport/mrg/common"

	roaring "github.com/RoaringBitmap/roaring"
	"github.com/armon/go-radix"
)

const (
	// UnknownToken stands in for every out-of-vocabulary token.
	UnknownToken = "#unk#"
	// SentinelID marks both the start and the end of an id sequence.
	SentinelID = 0
)

// NormalizeFunc cleans a raw report before it is split into tokens.
type NormalizeFunc func(string) string

// Vocabulary is an immutable token <-> id mapping. All methods are safe for
// concurrent use.
type Vocabulary struct {
	tokens []string // tokens[id-1]
	ids    map[string]int
	unkID  int
	prefix *radix.Tree

	// corpus statistics, only present on built vocabularies
	counts   map[string]int
	postings map[string]*roaring.Bitmap
	docs     int
}

// Build normalizes every report, counts whitespace tokens and keeps the ones
// seen at least minFrequency times. The unknown token is always kept.
func Build(reports []string, normalize NormalizeFunc, minFrequency int) *Vocabulary {
	counts := make(map[string]int)
	postings := make(map[string]*roaring.Bitmap)

	for i, report := range reports {
		if normalize != nil {
			report = normalize(report)
		}
		for _, tok := range strings.Fields(report) {
			counts[tok]++
			bm, ok := postings[tok]
			if !ok {
				bm = roaring.New()
				postings[tok] = bm
			}
			bm.Add(uint32(i))
		}
	}

	kept := make([]string, 0, len(counts)+1)
	for tok, n := range counts {
		if n >= minFrequency && tok != UnknownToken {
			kept = append(kept, tok)
		}
	}
	kept = append(kept, UnknownToken)
	sort.Strings(kept)

	v := newVocabulary(kept)
	v.docs = len(reports)
	v.counts = make(map[string]int, len(kept))
	v.postings = make(map[string]*roaring.Bitmap, len(kept))
	for _, tok := range kept {
		v.counts[tok] = counts[tok]
		if bm, ok := postings[tok]; ok {
			v.postings[tok] = bm
		}
	}
	return v
}

// FromTokens restores a vocabulary whose ids follow the given order: tokens[0]
// gets id 1. The list must be duplicate free and contain UnknownToken.
func FromTokens(tokens []string) (*Vocabulary, error) {
	seen := make(map[string]struct{}, len(tokens))
	for i, tok := range tokens {
		if tok == "" || strings.ContainsAny(tok, " \t\n") {
			return nil, fmt.Errorf("%w: token %d is empty or contains whitespace", common.ErrInvalidOption, i+1)
		}
		if _, dup := seen[tok]; dup {
			return nil, fmt.Errorf("%w: duplicate token %q", common.ErrInvalidOption, tok)
		}
		seen[tok] = struct{}{}
	}
	if _, ok := seen[UnknownToken]; !ok {
		return nil, fmt.Errorf("%w: vocabulary has no %s token", common.ErrInvalidOption, UnknownToken)
	}
	cp := make([]string, len(tokens))
	copy(cp, tokens)
	return newVocabulary(cp), nil
}

// FromMapping restores a vocabulary from an explicit token -> id map. Ids must
// be exactly 1..len(m).
func FromMapping(m map[string]int) (*Vocabulary, error) {
	tokens := make([]string, len(m))
	for tok, id := range m {
		if id < 1 || id > len(m) {
			return nil, fmt.Errorf("%w: id %d for %q outside 1..%d", common.ErrInvalidOption, id, tok, len(m))
		}
		if tokens[id-1] != "" {
			return nil, fmt.Errorf("%w: id %d assigned twice", common.ErrInvalidOption, id)
		}
		tokens[id-1] = tok
	}
	return FromTokens(tokens)
}

func newVocabulary(tokens []string) *Vocabulary {
	v := &Vocabulary{
		tokens: tokens,
		ids:    make(map[string]int, len(tokens)),
		prefix: radix.New(),
	}
	for i, tok := range tokens {
		v.ids[tok] = i + 1
		v.prefix.Insert(tok, i+1)
	}
	v.unkID = v.ids[UnknownToken]
	return v
}

// Size returns the number of tokens, excluding the sentinel.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// UnknownID returns the id of UnknownToken.
func (v *Vocabulary) UnknownID() int { return v.unkID }

// Lookup returns the id of tok and whether it is in the vocabulary.
func (v *Vocabulary) Lookup(tok string) (int, bool) {
	id, ok := v.ids[tok]
	return id, ok
}

// IDByToken returns the id of tok, or the unknown id.
func (v *Vocabulary) IDByToken(tok string) int {
	if id, ok := v.ids[tok]; ok {
		return id
	}
	return v.unkID
}

// TokenByID returns the token for id. The sentinel and ids past the end are
// out of range.
func (v *Vocabulary) TokenByID(id int) (string, error) {
	if id < 1 || id > len(v.tokens) {
		return "", fmt.Errorf("%w: %d (vocabulary size %d)", common.ErrIDOutOfRange, id, len(v.tokens))
	}
	return v.tokens[id-1], nil
}

// Tokens returns the tokens in id order.
func (v *Vocabulary) Tokens() []string {
	out := make([]string, len(v.tokens))
	copy(out, v.tokens)
	return out
}

// Mapping returns a copy of the token -> id map.
func (v *Vocabulary) Mapping() map[string]int {
	out := make(map[string]int, len(v.ids))
	for k, id := range v.ids {
		out[k] = id
	}
	return out
}

// WithPrefix lists vocabulary tokens starting with prefix in lexicographic order.
func (v *Vocabulary) WithPrefix(prefix string) []string {
	var out []string
	v.prefix.WalkPrefix(prefix, func(key string, _ interface{}) bool {
		out = append(out, key)
		return false
	})
	return out
}

// Frequency returns how often tok occurred in the training corpus. Restored
// vocabularies carry no statistics and report 0.
func (v *Vocabulary) Frequency(tok string) int { return v.counts[tok] }

// DocumentFrequency returns the number of training reports containing tok.
func (v *Vocabulary) DocumentFrequency(tok string) uint64 {
	bm, ok := v.postings[tok]
	if !ok {
		return 0
	}
	return bm.GetCardinality()
}

// Documents returns the indexes of training reports containing tok.
func (v *Vocabulary) Documents(tok string) []uint32 {
	bm, ok := v.postings[tok]
	if !ok {
		return nil
	}
	return bm.ToArray()
}

// CorpusSize returns the number of reports the vocabulary was built from.
func (v *Vocabulary) CorpusSize() int { return v.docs }
