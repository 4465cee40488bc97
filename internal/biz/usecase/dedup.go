package usecase

import (
	"sync"
	"time"
)

// DefaultDedupTTL is how long a message id is remembered
const DefaultDedupTTL = 60 * time.Second

type dedupEntry struct {
	id   string
	seen time.Time
}

// Deduper remembers recently seen message ids. An id is only forgotten
// once its TTL has elapsed, so memory grows with the arrival rate inside
// one window. Redeliveries arriving after the TTL are not caught.
type Deduper struct {
	mu    sync.Mutex
	ttl   time.Duration
	seen  map[string]time.Time
	order []dedupEntry // first sightings, oldest first
	now   func() time.Time
}

// NewDeduper creates a deduper with the given TTL
func NewDeduper(ttl time.Duration) *Deduper {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Deduper{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

// IsDuplicate reports whether id was already seen within the TTL.
// On first sight the id is recorded; a duplicate is not re-recorded, so
// the window stays anchored at the first occurrence.
func (d *Deduper) IsDuplicate(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.purgeLocked(now)

	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = now
	d.order = append(d.order, dedupEntry{id: id, seen: now})
	return false
}

// Len returns the number of remembered ids
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// purgeLocked drops expired entries. First-seen times only grow in
// insertion order, so the scan stops at the first live entry.
func (d *Deduper) purgeLocked(now time.Time) {
	cutoff := now.Add(-d.ttl)
	n := 0
	for n < len(d.order) && !d.order[n].seen.After(cutoff) {
		delete(d.seen, d.order[n].id)
		n++
	}
	if n == 0 {
		return
	}
	// copy the live tail so the backing array does not pin expired ids
	d.order = append(d.order[:0:0], d.order[n:]...)
}
