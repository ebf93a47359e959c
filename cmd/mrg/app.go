package main

import (
	"context"
	"fmt"

	internal "github.com/ZanzyTHEbar/medreport/mrg"
	"github.com/ZanzyTHEbar/medreport/mrg/config"
	"github.com/ZanzyTHEbar/medreport/mrg/corpus"
	"github.com/ZanzyTHEbar/medreport/mrg/dataset"
	"github.com/ZanzyTHEbar/medreport/mrg/report/tokenizer"
	"github.com/ZanzyTHEbar/medreport/mrg/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

// app carries the state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string
	dataset    string
	annPath    string
	threshold  int64
	vocabID    string

	cfg    *config.Config
	logger zerolog.Logger
}

func (a *app) globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml",
			Destination: &a.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &a.logLevel,
		},
		&cli.StringFlag{
			Name:        "dataset",
			Aliases:     []string{"d"},
			Usage:       "dataset profile (iu_xray, mimic_cxr, ffa_ir)",
			Destination: &a.dataset,
		},
		&cli.StringFlag{
			Name:        "ann-path",
			Usage:       "annotation file with train/val/test splits",
			Destination: &a.annPath,
		},
		&cli.Int64Flag{
			Name:        "threshold",
			Usage:       "minimum token frequency kept in the vocabulary",
			Destination: &a.threshold,
		},
		&cli.StringFlag{
			Name:        "vocab-id",
			Usage:       "load a stored vocabulary snapshot instead of building one (\"latest\" for the newest)",
			Destination: &a.vocabID,
		},
	}
}

// before loads configuration and lets explicit flags override it.
func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level, err := zerolog.ParseLevel(a.logLevel)
	if err != nil {
		return ctx, fmt.Errorf("invalid log level %q: %w", a.logLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	a.logger = internal.GetLogger()

	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return ctx, err
	}
	if cmd.IsSet("dataset") {
		cfg.Dataset.Name = a.dataset
	}
	if cmd.IsSet("ann-path") {
		cfg.Dataset.AnnPath = a.annPath
	}
	if cmd.IsSet("threshold") {
		cfg.Dataset.Threshold = int(a.threshold)
	}
	a.cfg = cfg
	return ctx, nil
}

func (a *app) profile() (dataset.Profile, error) {
	return dataset.Parse(a.cfg.Dataset.Name)
}

func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, store.Config{URL: a.cfg.Store.URL, AuthToken: a.cfg.Store.AuthToken}, a.logger)
}

// tokenizer returns a tokenizer over a stored snapshot when --vocab-id is
// given, otherwise over a vocabulary built from the annotation file.
func (a *app) tokenizer(ctx context.Context) (*tokenizer.Tokenizer, error) {
	if a.vocabID == "" {
		return tokenizer.New(tokenizer.Config{
			AnnPath:   a.cfg.Dataset.AnnPath,
			Dataset:   a.cfg.Dataset.Name,
			Threshold: a.cfg.Dataset.Threshold,
		}, a.logger)
	}

	p, err := a.profile()
	if err != nil {
		return nil, err
	}
	s, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	var id uuid.UUID
	if a.vocabID == "latest" {
		id, err = s.LatestVocabulary(ctx, p.String())
	} else {
		id, err = uuid.Parse(a.vocabID)
	}
	if err != nil {
		return nil, err
	}
	v, snap, err := s.LoadVocabulary(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap.Dataset != p.String() {
		return nil, fmt.Errorf("vocabulary %s was built for %s, not %s", id, snap.Dataset, p)
	}
	a.logger.Info().Str("vocab_id", id.String()).Int("vocab_size", v.Size()).Msg("Vocabulary loaded")
	return tokenizer.WithVocabulary(p, v)
}

func (a *app) loadCorpus() (corpus.Corpus, error) {
	return corpus.Load(a.cfg.Dataset.AnnPath)
}
