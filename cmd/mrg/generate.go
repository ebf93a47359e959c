package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ZanzyTHEbar/medreport/mrg/corpus"
	"github.com/ZanzyTHEbar/medreport/mrg/decoder"
	"github.com/ZanzyTHEbar/medreport/mrg/features"
	"github.com/ZanzyTHEbar/medreport/mrg/fusion"
	"github.com/ZanzyTHEbar/medreport/mrg/generation"
	"github.com/ZanzyTHEbar/medreport/mrg/imaging"
	"github.com/ZanzyTHEbar/medreport/mrg/report/tokenizer"
	"github.com/ZanzyTHEbar/medreport/mrg/store"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/mat"
)

type generated struct {
	RunID     string  `json:"run_id"`
	StudyID   string  `json:"study_id"`
	Report    string  `json:"report,omitempty"`
	Reference string  `json:"reference,omitempty"`
	Loss      float64 `json:"loss,omitempty"`
}

func (a *app) generateCmd() *cli.Command {
	var (
		split     string
		modeName  string
		limit     int64
		batchSize int64
		save      bool
	)
	return &cli.Command{
		Name:  "generate",
		Usage: "run studies of a corpus split through extractor, fusion and decoder",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "split",
				Usage:       "corpus split (train, val, test)",
				Value:       corpus.SplitTest,
				Destination: &split,
			},
			&cli.StringFlag{
				Name:        "mode",
				Usage:       "sample (autoregressive) or train (teacher forced)",
				Value:       string(generation.ModeSample),
				Destination: &modeName,
			},
			&cli.Int64Flag{
				Name:        "limit",
				Usage:       "maximum number of studies (0 = all)",
				Destination: &limit,
			},
			&cli.Int64Flag{
				Name:        "batch-size",
				Usage:       "studies per Generate call",
				Value:       8,
				Destination: &batchSize,
			},
			&cli.BoolFlag{
				Name:        "save",
				Usage:       "store sampled reports",
				Destination: &save,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			mode, err := generation.ParseMode(modeName)
			if err != nil {
				return err
			}
			if batchSize <= 0 {
				batchSize = 1
			}
			c, err := a.loadCorpus()
			if err != nil {
				return err
			}
			records := c.Split(split)
			if limit > 0 && int(limit) < len(records) {
				records = records[:limit]
			}

			tok, err := a.tokenizer(ctx)
			if err != nil {
				return err
			}
			orch, err := a.orchestrator(tok)
			if err != nil {
				return err
			}

			var st *store.Store
			if save && mode == generation.ModeSample {
				if st, err = a.openStore(ctx); err != nil {
					return err
				}
				defer st.Close()
			}

			loader := imaging.NewLoader(a.cfg.Image.Size, a.cfg.Dataset.ImageDir)
			enc := json.NewEncoder(os.Stdout)
			for start := 0; start < len(records); start += int(batchSize) {
				end := min(start+int(batchSize), len(records))
				if err := a.runBatch(ctx, orch, tok, loader, st, records[start:end], mode, enc); err != nil {
					return err
				}
			}
			a.logger.Info().Interface("metrics", orch.Metrics()).Msg("Generation finished")
			return nil
		},
	}
}

func (a *app) orchestrator(tok *tokenizer.Tokenizer) (*generation.Orchestrator, error) {
	p, err := a.profile()
	if err != nil {
		return nil, err
	}
	policy, err := fusion.ParseEmptyBlockPolicy(a.cfg.Fusion.EmptyBlock)
	if err != nil {
		return nil, err
	}
	ext := features.NewExtractor(a.cfg.Extractor.Provider, features.Options{
		Regions:           a.cfg.Extractor.Regions,
		Dims:              a.cfg.Extractor.Dims,
		ModelPath:         a.cfg.Extractor.ModelPath,
		ExecutionProvider: a.cfg.Extractor.ExecutionProvider,
		DeviceID:          a.cfg.Extractor.DeviceID,
	})
	dec, err := decoder.NewLinear(decoder.LinearOptions{
		VocabSize: tok.VocabSize() + 1,
		Hidden:    a.cfg.Decoder.Hidden,
		MaxLength: a.cfg.Decoder.MaxLength,
		Seed:      a.cfg.Decoder.Seed,
	})
	if err != nil {
		return nil, err
	}
	return generation.New(p, ext, dec, generation.Options{
		Fusion:  fusion.Options{SplitAt: a.cfg.Fusion.SplitAt, EmptyBlock: policy},
		Workers: a.cfg.Fusion.Workers,
	}, a.logger)
}

func (a *app) runBatch(ctx context.Context, orch *generation.Orchestrator, tok *tokenizer.Tokenizer, loader *imaging.Loader, st *store.Store, records []corpus.Record, mode generation.Mode, enc *json.Encoder) error {
	batch := make([]generation.Study, len(records))
	var targets [][]int
	for i, rec := range records {
		imgs, err := loader.LoadStudy(ctx, rec.ImagePath, a.cfg.Fusion.Workers)
		if err != nil {
			return fmt.Errorf("study %s: %w", rec.ID, err)
		}
		batch[i] = generation.Study{ID: rec.ID, Images: imgs}
		if mode == generation.ModeTrain {
			targets = append(targets, tok.Encode(rec.Report))
		}
	}

	res, err := orch.Generate(ctx, batch, targets, mode)
	if err != nil {
		return err
	}

	if mode == generation.ModeTrain {
		for i, out := range res.Outputs {
			line := generated{RunID: res.RunID.String(), StudyID: records[i].ID, Loss: nll(out, targets[i])}
			if err := enc.Encode(line); err != nil {
				return err
			}
		}
		return nil
	}

	texts, err := tok.DecodeBatch(res.IDs)
	if err != nil {
		return err
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		line := generated{RunID: res.RunID.String(), StudyID: rec.ID, Report: texts[i], Reference: tok.Normalize(rec.Report)}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	if st != nil {
		if _, err := st.SaveReports(ctx, res.RunID, tok.Profile().String(), ids, texts); err != nil {
			return err
		}
	}
	return nil
}

// nll is the mean negative log-likelihood of targets[1:] under out.
func nll(out *mat.Dense, targets []int) float64 {
	rows, _ := out.Dims()
	if rows == 0 {
		return 0
	}
	var sum float64
	for t := 0; t < rows; t++ {
		sum -= out.At(t, targets[t+1])
	}
	return sum / float64(rows)
}
