package vocab

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/medreport/mrg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []string{
	"no acute findings",
	"no effusion no pneumothorax",
	"heart size normal",
	"no acute disease",
}

func TestBuildThresholdAndOrder(t *testing.T) {
	v := Build(corpus, nil, 2)

	// "no" x4 and "acute" x2 survive, plus the unknown token
	assert.Equal(t, []string{UnknownToken, "acute", "no"}, v.Tokens())
	assert.Equal(t, 3, v.Size())

	id, ok := v.Lookup(UnknownToken)
	require.True(t, ok)
	assert.Equal(t, 1, id)
	assert.Equal(t, 1, v.UnknownID())
	assert.Equal(t, 2, v.IDByToken("acute"))
	assert.Equal(t, 3, v.IDByToken("no"))
	assert.Equal(t, v.UnknownID(), v.IDByToken("pneumothorax"))
}

func TestBuildIsDeterministic(t *testing.T) {
	a := Build(corpus, strings.ToLower, 1)
	b := Build(corpus, strings.ToLower, 1)
	assert.Equal(t, a.Mapping(), b.Mapping())
	assert.Equal(t, a.Tokens(), b.Tokens())
}

func TestBuildAppliesNormalizer(t *testing.T) {
	v := Build([]string{"No Findings", "NO"}, strings.ToLower, 2)
	assert.Equal(t, []string{UnknownToken, "no"}, v.Tokens())
}

func TestBuildUnknownTokenInCorpusIsNotDuplicated(t *testing.T) {
	v := Build([]string{"#unk# #unk# seen"}, nil, 1)
	assert.Equal(t, []string{UnknownToken, "seen"}, v.Tokens())
}

func TestBuildEmptyCorpus(t *testing.T) {
	v := Build(nil, nil, 3)
	assert.Equal(t, []string{UnknownToken}, v.Tokens())
	assert.Equal(t, 0, v.CorpusSize())
}

func TestTokenByID(t *testing.T) {
	v := Build(corpus, nil, 2)

	tok, err := v.TokenByID(2)
	require.NoError(t, err)
	assert.Equal(t, "acute", tok)

	for _, id := range []int{0, -1, 4, 100} {
		_, err := v.TokenByID(id)
		assert.True(t, errors.Is(err, common.ErrIDOutOfRange), "id %d", id)
	}
}

func TestStatistics(t *testing.T) {
	v := Build(corpus, nil, 1)
	assert.Equal(t, 4, v.Frequency("no"))
	assert.Equal(t, uint64(3), v.DocumentFrequency("no"))
	assert.Equal(t, []uint32{0, 1, 3}, v.Documents("no"))
	assert.Equal(t, uint64(0), v.DocumentFrequency("missing"))
	assert.Equal(t, 4, v.CorpusSize())
}

func TestWithPrefix(t *testing.T) {
	v := Build([]string{"pleural pleura pneumonia normal"}, nil, 1)
	assert.Equal(t, []string{"pleura", "pleural"}, v.WithPrefix("pleu"))
	assert.Equal(t, []string{"pleura", "pleural", "pneumonia"}, v.WithPrefix("p"))
	assert.Empty(t, v.WithPrefix("x"))
}

func TestFromMapping(t *testing.T) {
	v, err := FromMapping(map[string]int{"no": 1, "findings": 2, UnknownToken: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"no", "findings", UnknownToken}, v.Tokens())
	assert.Equal(t, 3, v.UnknownID())

	tests := []struct {
		name string
		m    map[string]int
	}{
		{"gap", map[string]int{"a": 1, UnknownToken: 3}},
		{"zero id", map[string]int{"a": 0, UnknownToken: 1}},
		{"no unknown", map[string]int{"a": 1, "b": 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMapping(tt.m)
			assert.True(t, errors.Is(err, common.ErrInvalidOption))
		})
	}
}

func TestFromTokensRejectsBadInput(t *testing.T) {
	_, err := FromTokens([]string{"a", "a", UnknownToken})
	assert.Error(t, err)
	_, err = FromTokens([]string{"a b", UnknownToken})
	assert.Error(t, err)
	_, err = FromTokens([]string{"", UnknownToken})
	assert.Error(t, err)
}

func TestWriteToLayout(t *testing.T) {
	v := Build(corpus, nil, 2)
	var buf bytes.Buffer
	_, err := v.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, SentinelToken+"\n"+UnknownToken+"\nacute\nno\n", buf.String())
}

func TestExportRoundTrip(t *testing.T) {
	v := Build(corpus, nil, 1)
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, v.Export(path))
	require.NoError(t, v.VerifyExport(path))
}
