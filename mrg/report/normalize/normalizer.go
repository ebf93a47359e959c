// Package normalize turns raw free-text reports into the canonical token
// stream the vocabulary is built from. Each dataset profile owns an ordered
// table of rewrite rules; the tables are plain data and every rule can be
// exercised on its own.
package normalize

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/medreport/mrg/common"
	"github.com/ZanzyTHEbar/medreport/mrg/dataset"
)

const (
	sentenceSep = ". "
	joinSep     = " . "
	terminator  = " ."
)

// Pipeline is a complete normalization recipe.
type Pipeline struct {
	// Report rules run over the whole raw report before sentence splitting.
	Report []Rule
	// Sentence rules run over each sentence after the report is lowercased and split.
	Sentence []Rule
	// Final rules run over the joined report.
	Final []Rule
}

// Normalize applies the pipeline. A report with no non-blank sentence yields "".
func (p *Pipeline) Normalize(raw string) string {
	text := ApplyAll(p.Report, raw)
	text = strings.ToLower(strings.TrimSpace(text))

	var kept []string
	for _, sent := range strings.Split(text, sentenceSep) {
		cleaned := ApplyAll(p.Sentence, sent)
		if strings.TrimSpace(cleaned) == "" {
			continue
		}
		kept = append(kept, cleaned)
	}
	if len(kept) == 0 {
		return ""
	}
	return ApplyAll(p.Final, strings.Join(kept, joinSep)+terminator)
}

// Normalizer binds a profile to its pipeline. It holds no mutable state and is
// safe for concurrent use.
type Normalizer struct {
	profile  dataset.Profile
	pipeline *Pipeline
}

// New returns the normalizer for profile p.
func New(p dataset.Profile) (*Normalizer, error) {
	var pl *Pipeline
	switch p {
	case dataset.IUXray:
		pl = iuXrayPipeline()
	case dataset.MIMICCXR:
		pl = mimicCXRPipeline()
	case dataset.FFAIR:
		pl = ffaIRPipeline()
	default:
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownDataset, p)
	}
	return &Normalizer{profile: p, pipeline: pl}, nil
}

// ForDataset parses a dataset identifier and returns its normalizer.
func ForDataset(name string) (*Normalizer, error) {
	p, err := dataset.Parse(name)
	if err != nil {
		return nil, err
	}
	return New(p)
}

func (n *Normalizer) Profile() dataset.Profile { return n.profile }

// Normalize cleans a single report.
func (n *Normalizer) Normalize(report string) string {
	return n.pipeline.Normalize(report)
}

// Pipeline exposes the rule tables for inspection. Callers must not modify them.
func (n *Normalizer) Pipeline() *Pipeline { return n.pipeline }
