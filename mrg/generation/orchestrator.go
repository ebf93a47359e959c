// Package generation drives a batch of studies from images to decoder output.
package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/medreport/mrg/common"
	"github.com/ZanzyTHEbar/medreport/mrg/dataset"
	"github.com/ZanzyTHEbar/medreport/mrg/decoder"
	"github.com/ZanzyTHEbar/medreport/mrg/features"
	"github.com/ZanzyTHEbar/medreport/mrg/fusion"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Study is one generation unit: the images of a single examination.
type Study struct {
	ID     string
	Images []features.Image
}

// Options configures an Orchestrator.
type Options struct {
	Fusion  fusion.Options
	Workers int // concurrent extractions per study
}

// DefaultOptions returns the default fusion options and four workers.
func DefaultOptions() Options {
	return Options{Fusion: fusion.DefaultOptions(), Workers: 4}
}

// Result is the output of one Generate call. Train mode fills Outputs with
// one [targets-1 x vocab] log-probability matrix per study; sample mode fills
// IDs with one framed id sequence per study.
type Result struct {
	RunID   uuid.UUID
	Mode    Mode
	Outputs []*mat.Dense
	IDs     [][]int
}

// Orchestrator binds a profile to its fusion strategy once and then runs
// batches through extractor, strategy and decoder.
type Orchestrator struct {
	profile   dataset.Profile
	strategy  fusion.Strategy
	extractor features.Extractor
	decoder   decoder.Decoder
	workers   int
	logger    zerolog.Logger
	metrics   *common.GenerationMetrics
}

// New selects the strategy for profile. An unknown profile is a configuration error.
func New(profile dataset.Profile, ext features.Extractor, dec decoder.Decoder, opts Options, logger zerolog.Logger) (*Orchestrator, error) {
	if ext == nil || dec == nil {
		return nil, fmt.Errorf("%w: extractor and decoder are required", common.ErrInvalidOption)
	}
	strategy, err := fusion.New(profile, opts.Fusion)
	if err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Orchestrator{
		profile:   profile,
		strategy:  strategy,
		extractor: ext,
		decoder:   dec,
		workers:   opts.Workers,
		logger:    logger.With().Str("dataset", profile.String()).Str("strategy", strategy.Name()).Logger(),
		metrics:   &common.GenerationMetrics{},
	}, nil
}

func (o *Orchestrator) Profile() dataset.Profile         { return o.profile }
func (o *Orchestrator) Strategy() fusion.Strategy         { return o.strategy }
func (o *Orchestrator) Metrics() map[string]interface{} { return o.metrics.GetMetrics() }

// Generate runs every study in batch. In train mode targets must hold one id
// sequence per study. The mode is checked before any image is touched, and
// the first failing study aborts the batch with a *common.StudyError.
func (o *Orchestrator) Generate(ctx context.Context, batch []Study, targets [][]int, mode Mode) (Result, error) {
	if !mode.Valid() {
		return Result{}, fmt.Errorf("%w: %q", common.ErrInvalidMode, string(mode))
	}
	if mode == ModeTrain {
		if targets == nil {
			return Result{}, common.ErrMissingTargets
		}
		if len(targets) != len(batch) {
			return Result{}, fmt.Errorf("%w: %d target sequences for %d studies", common.ErrMissingTargets, len(targets), len(batch))
		}
	}

	start := time.Now()
	res := Result{RunID: uuid.New(), Mode: mode}
	log := o.logger.With().Str("run_id", res.RunID.String()).Str("mode", string(mode)).Logger()

	images := 0
	for i, study := range batch {
		images += len(study.Images)
		if err := o.runStudy(ctx, i, study, targets, mode, &res, log); err != nil {
			o.metrics.UpdateMetrics(start, i, images, false)
			log.Error().Err(err).Int("study", i).Msg("Generation failed")
			return Result{}, err
		}
	}

	o.metrics.UpdateMetrics(start, len(batch), images, true)
	log.Info().
		Int("studies", len(batch)).
		Int("images", images).
		Dur("elapsed", time.Since(start)).
		Msg("Batch generated")
	return res, nil
}

func (o *Orchestrator) runStudy(ctx context.Context, i int, study Study, targets [][]int, mode Mode, res *Result, log zerolog.Logger) error {
	wrap := func(err error) error {
		return &common.StudyError{Index: i, StudyID: study.ID, Err: err}
	}

	fused, err := fusion.Fuse(ctx, o.strategy, o.extractor, study.Images, o.workers)
	if err != nil {
		return wrap(err)
	}

	switch mode {
	case ModeTrain:
		out, err := o.decoder.Forward(ctx, fused.Global, fused.Attention, targets[i])
		if err != nil {
			return wrap(err)
		}
		res.Outputs = append(res.Outputs, out)
	case ModeSample:
		sampled, err := o.decoder.Sample(ctx, fused.Global, fused.Attention)
		if err != nil {
			return wrap(err)
		}
		log.Debug().
			Int("study", i).
			Int("tokens", len(sampled.IDs)-2).
			Float64("log_prob", floats.Sum(sampled.LogProbs)).
			Msg("Study sampled")
		res.IDs = append(res.IDs, sampled.IDs)
	}
	return nil
}
