package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	a := &app{}
	root := &cli.Command{
		Name:   "mrg",
		Usage:  "Medical report generation toolkit",
		Flags:  a.globalFlags(),
		Before: a.before,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			a.vocabCmd(),
			a.normalizeCmd(),
			a.encodeCmd(),
			a.decodeCmd(),
			a.generateCmd(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
