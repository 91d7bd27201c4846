package engine

import "github.com/ternarybob/messis/internal/models"

// AdmitResult is the outcome of offering a record to the deduplicator.
type AdmitResult int

const (
	Accepted AdmitResult = iota
	SkippedDuplicate
)

// Deduplicator performs identity-based duplicate suppression. Seeded from
// the checkpoint's completed set, it makes cross-run dedup happen before any
// network fetch: a completed identity is never admitted into the work queue
// at all.
type Deduplicator struct {
	seen map[string]bool
}

// NewDeduplicator seeds the seen set from identity keys completed in prior
// runs. A nil map starts empty.
func NewDeduplicator(completed map[string]bool) *Deduplicator {
	seen := make(map[string]bool, len(completed))
	for key, done := range completed {
		if done {
			seen[key] = true
		}
	}
	return &Deduplicator{seen: seen}
}

// Admit applies keep-first: the first record for an identity is accepted,
// later ones are skipped.
func (d *Deduplicator) Admit(id models.Identity) AdmitResult {
	key := id.Key()
	if d.seen[key] {
		return SkippedDuplicate
	}
	d.seen[key] = true
	return Accepted
}

// ForceAdmit applies keep-latest for explicit re-scrapes: the identity is
// recorded but always accepted, so the new record replaces the old wholesale.
func (d *Deduplicator) ForceAdmit(id models.Identity) AdmitResult {
	d.seen[id.Key()] = true
	return Accepted
}

// Seen reports whether the identity has been admitted or completed before.
func (d *Deduplicator) Seen(id models.Identity) bool {
	return d.seen[id.Key()]
}
