// Package corpus reads annotation files: a JSON document keyed by split name,
// each split an ordered list of study records.
package corpus

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
)

// Split names used by the annotation files.
const (
	SplitTrain = "train"
	SplitVal   = "val"
	SplitTest  = "test"
)

// Record is one study: its report and the images it was taken from.
type Record struct {
	ID        string   `json:"id"`
	Report    string   `json:"report"`
	ImagePath []string `json:"image_path,omitempty"`
}

// Corpus maps split name to its records.
type Corpus map[string][]Record

// Load reads and decodes the annotation file at path.
func Load(path string) (Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open annotation file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads an annotation document from r. The train split is required.
func Decode(r io.Reader) (Corpus, error) {
	var c Corpus
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("decode annotation file: %w", err)
	}
	if _, ok := c[SplitTrain]; !ok {
		return nil, fmt.Errorf("annotation file has no %q split", SplitTrain)
	}
	return c, nil
}

// Split returns the records of the named split, or nil.
func (c Corpus) Split(name string) []Record { return c[name] }

// Reports returns the report texts of a split in record order.
func (c Corpus) Reports(split string) []string {
	recs := c[split]
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Report
	}
	return out
}
