package dataset

import (
	"errors"
	"testing"

	"github.com/ZanzyTHEbar/medreport/mrg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Profile
		wantErr bool
	}{
		{"iu", "iu_xray", IUXray, false},
		{"mimic", "mimic_cxr", MIMICCXR, false},
		{"ffa", "ffa_ir", FFAIR, false},
		{"case and space", "  MIMIC_CXR ", MIMICCXR, false},
		{"unknown", "chexpert", 0, true},
		{"empty", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, common.ErrUnknownDataset))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, MustParse(got.String()))
		})
	}
}

func TestProfileString(t *testing.T) {
	assert.Equal(t, "ffa_ir", FFAIR.String())
	assert.Equal(t, "Profile(9)", Profile(9).String())
	assert.False(t, Profile(0).Valid())
	assert.Len(t, Profiles(), 3)
	assert.Panics(t, func() { MustParse("nope") })
}
