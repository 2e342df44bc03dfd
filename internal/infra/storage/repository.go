package storage

import (
	"context"
	"errors"
	"time"

	"slotwatch/internal/core/domain"
)

var (
	// ErrNotFound is returned when a requested record doesn't exist.
	ErrNotFound = errors.New("record not found")
)

// BlocklistRepository handles persisted block records for IPs and credentials.
type BlocklistRepository interface {
	// Add appends a blocklist entry.
	Add(ctx context.Context, entry *domain.BlocklistEntry) error

	// IsBlocked reports whether subject has an entry for category. When
	// within > 0, entries older than the window do not count.
	IsBlocked(ctx context.Context, subject, category string, within time.Duration) (bool, error)

	// ListRecent returns the most recent entries for a category, newest first.
	ListRecent(ctx context.Context, category string, limit int) ([]*domain.BlocklistEntry, error)

	// Remove deletes all entries for subject in category.
	Remove(ctx context.Context, subject, category string) error
}

// OutcomeRepository is the append sink for run statistics.
type OutcomeRepository interface {
	// Append saves an outcome record.
	Append(ctx context.Context, rec *domain.OutcomeRecord) error

	// ListRecent returns the most recent records for a target, newest first.
	ListRecent(ctx context.Context, target string, limit int) ([]*domain.OutcomeRecord, error)
}

// LookupRepository is the audit log of completed egress IP lookups.
type LookupRepository interface {
	// Record saves one completed lookup.
	Record(ctx context.Context, lookup *domain.EgressLookup) error
}

// StateRepository holds the small per-target run state: the credential
// rotation pointer and the captcha cooldown record. Implementations must
// write whole records (a partial write must never corrupt a subsequent read);
// a single writer per target is assumed.
type StateRepository interface {
	// RotationPointer returns the persisted pointer for target, 0 if absent.
	RotationPointer(ctx context.Context, target string) (int, error)

	// SetRotationPointer replaces the pointer for target.
	SetRotationPointer(ctx context.Context, target string, index int) error

	// Cooldown returns the cooldown record for target, nil if absent.
	Cooldown(ctx context.Context, target string) (*domain.CooldownState, error)

	// SetCooldown replaces the cooldown record for target.
	SetCooldown(ctx context.Context, target string, state *domain.CooldownState) error

	// ClearCooldown removes the cooldown record for target.
	ClearCooldown(ctx context.Context, target string) error
}
