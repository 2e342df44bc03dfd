package postgres

import (
	"context"
	"fmt"

	"slotwatch/internal/core/domain"
)

// LookupRepo implements storage.LookupRepository using PostgreSQL.
type LookupRepo struct {
	db *DB
}

// NewLookupRepo creates a new PostgreSQL lookup repository.
func NewLookupRepo(db *DB) *LookupRepo {
	return &LookupRepo{db: db}
}

// Record saves one completed egress IP lookup.
func (r *LookupRepo) Record(ctx context.Context, lookup *domain.EgressLookup) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO egress_lookups (ip, identity, looked_up_at) VALUES ($1, $2, $3)`,
		lookup.IP, lookup.Identity, lookup.LookedUpAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record egress lookup: %w", err)
	}
	return nil
}
