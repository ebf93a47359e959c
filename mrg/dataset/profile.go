// Package dataset names the supported report datasets. A Profile selects both
// the report normalization rules and the image fusion strategy.
package dataset

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/medreport/mrg/common"
)

// Profile identifies a dataset-specific rule set
type Profile int

const (
	IUXray Profile = iota + 1
	MIMICCXR
	FFAIR
)

var profileNames = map[Profile]string{
	IUXray:   "iu_xray",
	MIMICCXR: "mimic_cxr",
	FFAIR:    "ffa_ir",
}

// Profiles lists every supported profile in a stable order
func Profiles() []Profile {
	return []Profile{IUXray, MIMICCXR, FFAIR}
}

func (p Profile) String() string {
	if name, ok := profileNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Profile(%d)", int(p))
}

// Valid reports whether p is one of the known profiles
func (p Profile) Valid() bool {
	_, ok := profileNames[p]
	return ok
}

// Parse maps a dataset identifier to its profile.
func Parse(name string) (Profile, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for p, pn := range profileNames {
		if pn == n {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", common.ErrUnknownDataset, name)
}

// MustParse is Parse for static identifiers; it panics on an unknown name.
func MustParse(name string) Profile {
	p, err := Parse(name)
	if err != nil {
		panic(err)
	}
	return p
}
