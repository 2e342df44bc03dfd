package postgres

import (
	"context"
	"fmt"
	"time"

	"slotwatch/internal/core/domain"
)

// BlocklistRepo implements storage.BlocklistRepository using PostgreSQL.
type BlocklistRepo struct {
	db *DB
}

// NewBlocklistRepo creates a new PostgreSQL blocklist repository.
func NewBlocklistRepo(db *DB) *BlocklistRepo {
	return &BlocklistRepo{db: db}
}

type blocklistRow struct {
	Subject   string    `db:"subject"`
	Kind      string    `db:"kind"`
	Category  string    `db:"category"`
	Reason    string    `db:"reason"`
	BlockedAt time.Time `db:"blocked_at"`
}

// Add appends a blocklist entry.
func (r *BlocklistRepo) Add(ctx context.Context, entry *domain.BlocklistEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO blocked_subjects (subject, kind, category, reason, blocked_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.Subject, string(entry.Kind), entry.Category, entry.Reason, entry.BlockedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add blocklist entry: %w", err)
	}
	return nil
}

// IsBlocked reports whether subject has an entry for category, optionally
// limited to entries newer than the window.
func (r *BlocklistRepo) IsBlocked(
	ctx context.Context,
	subject, category string,
	within time.Duration,
) (bool, error) {
	query := `SELECT COUNT(*) FROM blocked_subjects WHERE subject = $1 AND category = $2`
	args := []any{subject, category}
	if within > 0 {
		query += ` AND blocked_at >= $3`
		args = append(args, time.Now().Add(-within))
	}

	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("failed to check blocklist: %w", err)
	}
	return count > 0, nil
}

// ListRecent returns the most recent entries for a category, newest first.
func (r *BlocklistRepo) ListRecent(
	ctx context.Context,
	category string,
	limit int,
) ([]*domain.BlocklistEntry, error) {
	var rows []blocklistRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT subject, kind, category, reason, blocked_at
		 FROM blocked_subjects
		 WHERE category = $1
		 ORDER BY blocked_at DESC
		 LIMIT $2`,
		category, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocklist entries: %w", err)
	}

	entries := make([]*domain.BlocklistEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, &domain.BlocklistEntry{
			Subject:   row.Subject,
			Kind:      domain.SubjectKind(row.Kind),
			Category:  row.Category,
			Reason:    row.Reason,
			BlockedAt: row.BlockedAt,
		})
	}
	return entries, nil
}

// Remove deletes all entries for subject in category.
func (r *BlocklistRepo) Remove(ctx context.Context, subject, category string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM blocked_subjects WHERE subject = $1 AND category = $2`,
		subject, category,
	)
	if err != nil {
		return fmt.Errorf("failed to remove blocklist entry: %w", err)
	}
	return nil
}
