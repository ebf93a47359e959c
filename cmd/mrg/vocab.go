package main

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/medreport/mrg/report/tokenizer"

	"github.com/urfave/cli/v3"
)

func (a *app) vocabCmd() *cli.Command {
	var (
		save       bool
		exportPath string
	)
	return &cli.Command{
		Name:  "vocab",
		Usage: "Build and inspect report vocabularies",
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "build the vocabulary from the train split",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "save",
						Usage:       "store the vocabulary as a snapshot",
						Destination: &save,
					},
					&cli.StringFlag{
						Name:        "export",
						Usage:       "also write a one-token-per-line vocab file",
						Destination: &exportPath,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					tok, err := a.tokenizer(ctx)
					if err != nil {
						return err
					}
					v := tok.Vocabulary()
					fmt.Printf("dataset=%s vocab_size=%d\n", tok.Profile(), v.Size())

					if exportPath != "" {
						if err := exportVocab(exportPath, tok); err != nil {
							return err
						}
						fmt.Printf("exported=%s\n", exportPath)
					}
					if save {
						s, err := a.openStore(ctx)
						if err != nil {
							return err
						}
						defer s.Close()
						snap, err := s.SaveVocabulary(ctx, tok.Profile().String(), a.cfg.Dataset.Threshold, v)
						if err != nil {
							return err
						}
						fmt.Printf("vocab_id=%s\n", snap.ID)
					}
					return nil
				},
			},
			{
				Name:      "export",
				Usage:     "write the vocabulary to a file and verify it loads as a WordPiece vocab",
				ArgsUsage: "<path>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.Args().First()
					if path == "" {
						return fmt.Errorf("missing output path")
					}
					tok, err := a.tokenizer(ctx)
					if err != nil {
						return err
					}
					if err := exportVocab(path, tok); err != nil {
						return err
					}
					fmt.Println(path)
					return nil
				},
			},
			{
				Name:      "prefix",
				Usage:     "list vocabulary tokens starting with a prefix",
				ArgsUsage: "<prefix>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					tok, err := a.tokenizer(ctx)
					if err != nil {
						return err
					}
					v := tok.Vocabulary()
					for _, t := range v.WithPrefix(cmd.Args().First()) {
						fmt.Printf("%d\t%s\t%d\t%d\n", v.IDByToken(t), t, v.Frequency(t), v.DocumentFrequency(t))
					}
					return nil
				},
			},
		},
	}
}

func exportVocab(path string, tok *tokenizer.Tokenizer) error {
	v := tok.Vocabulary()
	if err := v.Export(path); err != nil {
		return err
	}
	return v.VerifyExport(path)
}
