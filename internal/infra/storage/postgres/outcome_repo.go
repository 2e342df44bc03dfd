package postgres

import (
	"context"
	"fmt"
	"time"

	"slotwatch/internal/core/domain"
)

// OutcomeRepo implements storage.OutcomeRepository using PostgreSQL.
type OutcomeRepo struct {
	db *DB
}

// NewOutcomeRepo creates a new PostgreSQL outcome repository.
func NewOutcomeRepo(db *DB) *OutcomeRepo {
	return &OutcomeRepo{db: db}
}

type outcomeRow struct {
	ID         string    `db:"id"`
	Target     string    `db:"target"`
	Location   string    `db:"location"`
	Outcome    string    `db:"outcome"`
	Notes      string    `db:"notes"`
	DetectedAt time.Time `db:"detected_at"`
}

// Append saves an outcome record.
func (r *OutcomeRepo) Append(ctx context.Context, rec *domain.OutcomeRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO run_statistics (id, target, location, outcome, notes, detected_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.Target, rec.Location, string(rec.Outcome), rec.Notes, rec.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append outcome record: %w", err)
	}
	return nil
}

// ListRecent returns the most recent records for a target, newest first.
func (r *OutcomeRepo) ListRecent(
	ctx context.Context,
	target string,
	limit int,
) ([]*domain.OutcomeRecord, error) {
	var rows []outcomeRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, target, location, outcome, notes, detected_at
		 FROM run_statistics
		 WHERE target = $1
		 ORDER BY detected_at DESC
		 LIMIT $2`,
		target, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcome records: %w", err)
	}

	recs := make([]*domain.OutcomeRecord, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, &domain.OutcomeRecord{
			ID:         row.ID,
			Target:     row.Target,
			Location:   row.Location,
			Outcome:    domain.OutcomeCode(row.Outcome),
			Notes:      row.Notes,
			DetectedAt: row.DetectedAt,
		})
	}
	return recs, nil
}
