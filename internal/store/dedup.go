package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// DedupStore is the persistent set of already-published canonical links.
// Records are created exactly once per link, only after a confirmed publish,
// and never deleted.
type DedupStore struct {
	store *Store
}

// NewDedupStore creates a dedup store over the shared backing store
func NewDedupStore(store *Store) *DedupStore {
	return &DedupStore{store: store}
}

// Has reports whether a publish record exists for the link. A read failure
// degrades to "not yet published" so a transient store outage never stalls
// the pipeline; the commit step's insert-if-absent keeps duplicates bounded.
func (d *DedupStore) Has(canonicalLink string) bool {
	var exists int
	err := d.store.db.QueryRow(
		`SELECT 1 FROM published WHERE canonical_link = ?`, canonicalLink).Scan(&exists)
	switch {
	case err == nil:
		return true
	case errors.Is(err, sql.ErrNoRows):
		return false
	default:
		logrus.Warnf("Dedup read failed for %s, treating as unpublished: %v", canonicalLink, err)
		return false
	}
}

// Commit records a confirmed publish for the link at publishedAt. Idempotent:
// committing the same link twice is a no-op. Must only be called after the
// platform has confirmed the post.
func (d *DedupStore) Commit(canonicalLink string, publishedAt time.Time) error {
	_, err := d.store.db.Exec(
		`INSERT OR IGNORE INTO published (canonical_link, published_at) VALUES (?, ?)`,
		canonicalLink, publishedAt.UTC())
	if err != nil {
		return fmt.Errorf("committing publish record for %s: %w", canonicalLink, err)
	}
	return nil
}

// Count returns the number of published records, for status reporting
func (d *DedupStore) Count() int {
	var n int
	if err := d.store.db.QueryRow(`SELECT COUNT(*) FROM published`).Scan(&n); err != nil {
		return 0
	}
	return n
}
