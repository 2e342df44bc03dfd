package domain

import "time"

// SubjectKind distinguishes what a blocklist entry refers to.
type SubjectKind string

const (
	SubjectIP         SubjectKind = "ip"
	SubjectCredential SubjectKind = "credential"
)

// BlocklistEntry records a subject rejected by a target. A subject present in
// the store is never selected again for the same target while the entry
// exists (or until it ages past the configured recheck window).
type BlocklistEntry struct {
	Subject   string
	Kind      SubjectKind
	Category  string // target name, e.g. "hungary"
	Reason    string
	BlockedAt time.Time
}
