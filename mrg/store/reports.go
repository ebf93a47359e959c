package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Report is one generated report of a run.
type Report struct {
	ID        uuid.UUID
	RunID     uuid.UUID
	StudyID   string
	Position  int
	Dataset   string
	Text      string
	CreatedAt time.Time
}

// SaveReports stores the decoded reports of one run, in batch order.
func (s *Store) SaveReports(ctx context.Context, runID uuid.UUID, dataset string, studyIDs, texts []string) ([]Report, error) {
	if len(studyIDs) != len(texts) {
		return nil, fmt.Errorf("%d study ids for %d reports", len(studyIDs), len(texts))
	}
	created := now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO reports (id, run_id, study_id, position, dataset, report, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare report insert: %w", err)
	}
	defer stmt.Close()

	out := make([]Report, len(texts))
	for i := range texts {
		r := Report{
			ID:        uuid.New(),
			RunID:     runID,
			StudyID:   studyIDs[i],
			Position:  i,
			Dataset:   dataset,
			Text:      texts[i],
			CreatedAt: parseTime(created),
		}
		if _, err := stmt.ExecContext(ctx, r.ID.String(), runID.String(), r.StudyID, i, dataset, r.Text, created); err != nil {
			return nil, fmt.Errorf("failed to insert report %d: %w", i, err)
		}
		out[i] = r
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Debug().Str("run_id", runID.String()).Int("reports", len(out)).Msg("Reports saved")
	return out, nil
}

// RunReports lists the reports of runID in batch order.
func (s *Store) RunReports(ctx context.Context, runID uuid.UUID) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, study_id, position, dataset, report, created_at FROM reports WHERE run_id = ? ORDER BY position",
		runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var r Report
		var rawID, created string
		if err := rows.Scan(&rawID, &r.StudyID, &r.Position, &r.Dataset, &r.Text, &created); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		if r.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("invalid report id %q: %w", rawID, err)
		}
		r.RunID = runID
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return out, nil
}
