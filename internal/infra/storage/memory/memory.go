package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"slotwatch/internal/core/domain"
)

// MemoryStorage backs every repository interface for tests and DB-less runs.
type MemoryStorage struct {
	blocklist []*domain.BlocklistEntry
	outcomes  []*domain.OutcomeRecord
	lookups   []*domain.EgressLookup
	pointers  map[string]int
	cooldowns map[string]*domain.CooldownState
	mu        sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		pointers:  make(map[string]int),
		cooldowns: make(map[string]*domain.CooldownState),
	}
}

// -----------------------------------------------------------------------------
// Blocklist Repository
// -----------------------------------------------------------------------------

type BlocklistRepo struct {
	store *MemoryStorage
}

func NewBlocklistRepo(store *MemoryStorage) *BlocklistRepo {
	return &BlocklistRepo{store: store}
}

func (r *BlocklistRepo) Add(ctx context.Context, entry *domain.BlocklistEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *entry
	r.store.blocklist = append(r.store.blocklist, &cp)
	return nil
}

func (r *BlocklistRepo) IsBlocked(
	ctx context.Context,
	subject, category string,
	within time.Duration,
) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	cutoff := time.Time{}
	if within > 0 {
		cutoff = time.Now().Add(-within)
	}
	for _, e := range r.store.blocklist {
		if e.Subject == subject && e.Category == category && e.BlockedAt.After(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (r *BlocklistRepo) ListRecent(
	ctx context.Context,
	category string,
	limit int,
) ([]*domain.BlocklistEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.BlocklistEntry
	for _, e := range r.store.blocklist {
		if e.Category == category {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].BlockedAt.After(out[j].BlockedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *BlocklistRepo) Remove(ctx context.Context, subject, category string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.blocklist[:0]
	for _, e := range r.store.blocklist {
		if e.Subject != subject || e.Category != category {
			kept = append(kept, e)
		}
	}
	r.store.blocklist = kept
	return nil
}

// -----------------------------------------------------------------------------
// Outcome Repository
// -----------------------------------------------------------------------------

type OutcomeRepo struct {
	store *MemoryStorage
}

func NewOutcomeRepo(store *MemoryStorage) *OutcomeRepo {
	return &OutcomeRepo{store: store}
}

func (r *OutcomeRepo) Append(ctx context.Context, rec *domain.OutcomeRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *rec
	r.store.outcomes = append(r.store.outcomes, &cp)
	return nil
}

func (r *OutcomeRepo) ListRecent(
	ctx context.Context,
	target string,
	limit int,
) ([]*domain.OutcomeRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []*domain.OutcomeRecord
	for _, rec := range r.store.outcomes {
		if rec.Target == target {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DetectedAt.After(out[j].DetectedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// Lookup Repository
// -----------------------------------------------------------------------------

type LookupRepo struct {
	store *MemoryStorage
}

func NewLookupRepo(store *MemoryStorage) *LookupRepo {
	return &LookupRepo{store: store}
}

func (r *LookupRepo) Record(ctx context.Context, lookup *domain.EgressLookup) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *lookup
	r.store.lookups = append(r.store.lookups, &cp)
	return nil
}

// Lookups returns all recorded lookups. Test helper.
func (r *LookupRepo) Lookups() []*domain.EgressLookup {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return append([]*domain.EgressLookup(nil), r.store.lookups...)
}

// -----------------------------------------------------------------------------
// State Repository
// -----------------------------------------------------------------------------

type StateRepo struct {
	store *MemoryStorage
}

func NewStateRepo(store *MemoryStorage) *StateRepo {
	return &StateRepo{store: store}
}

func (r *StateRepo) RotationPointer(ctx context.Context, target string) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.pointers[target], nil
}

func (r *StateRepo) SetRotationPointer(ctx context.Context, target string, index int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.pointers[target] = index
	return nil
}

func (r *StateRepo) Cooldown(ctx context.Context, target string) (*domain.CooldownState, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	state, ok := r.store.cooldowns[target]
	if !ok {
		return nil, nil
	}
	cp := *state
	return &cp, nil
}

func (r *StateRepo) SetCooldown(
	ctx context.Context,
	target string,
	state *domain.CooldownState,
) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *state
	r.store.cooldowns[target] = &cp
	return nil
}

func (r *StateRepo) ClearCooldown(ctx context.Context, target string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.cooldowns, target)
	return nil
}
