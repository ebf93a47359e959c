package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/medreport/mrg/report/vocab"

	"github.com/google/uuid"
)

// VocabularySnapshot describes one stored vocabulary.
type VocabularySnapshot struct {
	ID        uuid.UUID
	Dataset   string
	Threshold int
	Size      int
	CreatedAt time.Time
}

// SaveVocabulary stores v in a single transaction and returns its snapshot.
func (s *Store) SaveVocabulary(ctx context.Context, dataset string, threshold int, v *vocab.Vocabulary) (VocabularySnapshot, error) {
	snap := VocabularySnapshot{
		ID:        uuid.New(),
		Dataset:   dataset,
		Threshold: threshold,
		Size:      v.Size(),
	}
	created := now()
	snap.CreatedAt = parseTime(created)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return VocabularySnapshot{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO vocabularies (id, dataset, threshold, size, created_at) VALUES (?, ?, ?, ?, ?)",
		snap.ID.String(), dataset, threshold, snap.Size, created); err != nil {
		return VocabularySnapshot{}, fmt.Errorf("failed to insert vocabulary: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO vocabulary_tokens (vocab_id, token_id, token, frequency) VALUES (?, ?, ?, ?)")
	if err != nil {
		return VocabularySnapshot{}, fmt.Errorf("failed to prepare token insert: %w", err)
	}
	defer stmt.Close()
	for i, tok := range v.Tokens() {
		if _, err := stmt.ExecContext(ctx, snap.ID.String(), i+1, tok, v.Frequency(tok)); err != nil {
			return VocabularySnapshot{}, fmt.Errorf("failed to insert token %q: %w", tok, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return VocabularySnapshot{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Debug().
		Str("vocab_id", snap.ID.String()).
		Str("dataset", dataset).
		Int("vocab_size", snap.Size).
		Msg("Vocabulary saved")
	return snap, nil
}

// LoadVocabulary restores the vocabulary stored under id.
func (s *Store) LoadVocabulary(ctx context.Context, id uuid.UUID) (*vocab.Vocabulary, VocabularySnapshot, error) {
	var snap VocabularySnapshot
	var rawID, created string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, dataset, threshold, size, created_at FROM vocabularies WHERE id = ?", id.String()).
		Scan(&rawID, &snap.Dataset, &snap.Threshold, &snap.Size, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, VocabularySnapshot{}, fmt.Errorf("vocabulary %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, VocabularySnapshot{}, fmt.Errorf("failed to query vocabulary: %w", err)
	}
	snap.ID = id
	snap.CreatedAt = parseTime(created)

	rows, err := s.db.QueryContext(ctx,
		"SELECT token FROM vocabulary_tokens WHERE vocab_id = ? ORDER BY token_id", id.String())
	if err != nil {
		return nil, VocabularySnapshot{}, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	tokens := make([]string, 0, snap.Size)
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, VocabularySnapshot{}, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, VocabularySnapshot{}, err
	}
	if len(tokens) != snap.Size {
		return nil, VocabularySnapshot{}, fmt.Errorf("vocabulary %s has %d tokens, want %d", id, len(tokens), snap.Size)
	}

	v, err := vocab.FromTokens(tokens)
	if err != nil {
		return nil, VocabularySnapshot{}, err
	}
	return v, snap, nil
}

// LatestVocabulary returns the newest snapshot id for dataset.
func (s *Store) LatestVocabulary(ctx context.Context, dataset string) (uuid.UUID, error) {
	var rawID string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM vocabularies WHERE dataset = ? ORDER BY created_at DESC, rowid DESC LIMIT 1", dataset).
		Scan(&rawID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("vocabulary for %s: %w", dataset, ErrNotFound)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to query latest vocabulary: %w", err)
	}
	return uuid.Parse(rawID)
}
