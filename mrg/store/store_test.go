package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	internal "github.com/ZanzyTHEbar/medreport/mrg"
	"github.com/ZanzyTHEbar/medreport/mrg/report/vocab"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "db", "mrg.db")
	s, err := Open(context.Background(), Config{URL: dsn}, internal.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func identity(s string) string { return s }

func TestVocabularyRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v := vocab.Build([]string{"no effusion", "no pneumothorax", "effusion"}, identity, 1)
	snap, err := s.SaveVocabulary(ctx, "iu_xray", 1, v)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, snap.ID)
	assert.Equal(t, v.Size(), snap.Size)

	restored, got, err := s.LoadVocabulary(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, v.Tokens(), restored.Tokens())
	assert.Equal(t, "iu_xray", got.Dataset)
	assert.Equal(t, 1, got.Threshold)
	assert.False(t, got.CreatedAt.IsZero())

	latest, err := s.LatestVocabulary(ctx, "iu_xray")
	require.NoError(t, err)
	assert.Equal(t, snap.ID, latest)
}

func TestVocabularyNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, _, err := s.LoadVocabulary(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.LatestVocabulary(ctx, "ffa_ir")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestReports(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := uuid.New()

	saved, err := s.SaveReports(ctx, run, "mimic_cxr", []string{"s1", "s2"}, []string{"no effusion .", "heart size normal ."})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	got, err := s.RunReports(ctx, run)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "s1", got[0].StudyID)
	assert.Equal(t, "heart size normal .", got[1].Text)
	assert.Equal(t, saved[1].ID, got[1].ID)
	assert.Equal(t, run, got[0].RunID)

	_, err = s.SaveReports(ctx, run, "mimic_cxr", []string{"s1"}, nil)
	assert.Error(t, err)

	_, err = s.RunReports(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolveDSN(t *testing.T) {
	_, err := resolveDSN(Config{})
	assert.Error(t, err)

	dsn, err := resolveDSN(Config{URL: "libsql://db.example.com", AuthToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "libsql://db.example.com?authToken=tok", dsn)
	assert.Equal(t, "libsql://db.example.com?authToken=REDACTED", redact(dsn))

	dsn, err = resolveDSN(Config{URL: "file::memory:?cache=shared"})
	require.NoError(t, err)
	assert.Equal(t, "file::memory:?cache=shared", dsn)
}
