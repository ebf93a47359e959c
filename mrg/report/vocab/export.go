package vocab

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/sugarme/tokenizer/model/wordpiece"
)

// SentinelToken occupies line 0 of an exported vocab file so that line
// numbers match ids.
const SentinelToken = "<s>"

// WriteTo writes the vocabulary in vocab.txt layout: one token per line,
// line number equals id.
func (v *Vocabulary) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var n int64
	for _, tok := range append([]string{SentinelToken}, v.tokens...) {
		k, err := bw.WriteString(tok + "\n")
		n += int64(k)
		if err != nil {
			return n, err
		}
	}
	return n, bw.Flush()
}

// Export writes the vocabulary to path in vocab.txt layout.
func (v *Vocabulary) Export(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create vocab file: %w", err)
	}
	if _, err := v.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write vocab file: %w", err)
	}
	return f.Close()
}

// VerifyExport loads an exported file through a WordPiece model and checks
// that every token resolves to the same id. Downstream tooling consumes the
// export through that loader.
func (v *Vocabulary) VerifyExport(path string) error {
	wp, err := wordpiece.NewWordPieceFromFile(path, UnknownToken)
	if err != nil {
		return fmt.Errorf("load wordpiece vocab: %w", err)
	}
	got := wp.GetVocab()
	if len(got) != len(v.tokens)+1 {
		return fmt.Errorf("exported vocab has %d entries, want %d", len(got), len(v.tokens)+1)
	}
	for i, tok := range v.tokens {
		id, ok := got[tok]
		if !ok {
			return fmt.Errorf("token %q missing from exported vocab", tok)
		}
		if id != i+1 {
			return fmt.Errorf("token %q exported with id %d, want %d", tok, id, i+1)
		}
	}
	return nil
}
