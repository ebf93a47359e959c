package generation

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/medreport/mrg/common"
)

// Mode selects between teacher-forced and autoregressive decoding.
type Mode string

const (
	ModeTrain  Mode = "train"
	ModeSample Mode = "sample"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == ModeTrain || m == ModeSample }

// ParseMode accepts "train" or "sample", case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", common.ErrInvalidMode, s)
	}
	return m, nil
}
