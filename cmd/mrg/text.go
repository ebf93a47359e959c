package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/medreport/mrg/report/normalize"

	"github.com/urfave/cli/v3"
)

// inputLines returns the joined arguments, or stdin line by line when there are none.
func inputLines(cmd *cli.Command) ([]string, error) {
	if cmd.Args().Len() > 0 {
		return []string{strings.Join(cmd.Args().Slice(), " ")}, nil
	}
	var lines []string
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

func (a *app) normalizeCmd() *cli.Command {
	return &cli.Command{
		Name:      "normalize",
		Usage:     "clean report text with the dataset's normalizer",
		ArgsUsage: "[report text]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			n, err := normalize.ForDataset(a.cfg.Dataset.Name)
			if err != nil {
				return err
			}
			lines, err := inputLines(cmd)
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Println(n.Normalize(l))
			}
			return nil
		},
	}
}

func (a *app) encodeCmd() *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "encode report text to token ids",
		ArgsUsage: "[report text]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			tok, err := a.tokenizer(ctx)
			if err != nil {
				return err
			}
			lines, err := inputLines(cmd)
			if err != nil {
				return err
			}
			for _, l := range lines {
				fmt.Println(formatIDs(tok.Encode(l)))
			}
			return nil
		},
	}
}

func (a *app) decodeCmd() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "decode token ids back to text",
		ArgsUsage: "[ids...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			tok, err := a.tokenizer(ctx)
			if err != nil {
				return err
			}
			lines, err := inputLines(cmd)
			if err != nil {
				return err
			}
			batch := make([][]int, len(lines))
			for i, l := range lines {
				if batch[i], err = parseIDs(l); err != nil {
					return fmt.Errorf("line %d: %w", i+1, err)
				}
			}
			texts, err := tok.DecodeBatch(batch)
			if err != nil {
				return err
			}
			for _, t := range texts {
				fmt.Println(t)
			}
			return nil
		},
	}
}

func formatIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, " ")
}

// parseIDs accepts ids separated by spaces or commas, optionally bracketed.
func parseIDs(s string) ([]int, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
	ids := make([]int, len(fields))
	for i, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", f, err)
		}
		ids[i] = id
	}
	return ids, nil
}
