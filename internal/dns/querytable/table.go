// Package querytable holds the in-memory correlation table mapping a
// 16-bit DNS transaction ID to its pending query (spec §6.2). Every
// mutating method here is only ever called from the dispatcher's
// strand goroutine, so the map itself needs no internal locking — the
// single-writer discipline is enforced by convention, the same way the
// teacher's single-writer caches rely on their own call contracts.
package querytable

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/haukened/adnsq/internal/dns/domain"
)

// maxDrawAttempts bounds how many times DrawID redraws on collision
// before giving up. A full 65536-entry table means every ID is taken,
// which is an overload condition, not a transient collision.
const maxDrawAttempts = 16

// Table is the transaction-ID -> *domain.Query correlation map.
// It is not safe for concurrent use; callers must only invoke its
// methods from the dispatcher's strand goroutine.
type Table struct {
	entries map[uint16]*domain.Query
}

// New returns an empty Table.
func New() *Table {
	return &Table{entries: make(map[uint16]*domain.Query)}
}

// DrawID returns a transaction ID drawn from crypto/rand (RFC 5452
// §9.2 unpredictability) that is not currently registered in the
// table. It redraws on collision up to maxDrawAttempts times before
// reporting an error.
func (t *Table) DrawID() (uint16, error) {
	var buf [2]byte
	for attempt := 0; attempt < maxDrawAttempts; attempt++ {
		if _, err := rand.Read(buf[:]); err != nil {
			return 0, fmt.Errorf("draw transaction id: %w", err)
		}
		id := binary.BigEndian.Uint16(buf[:])
		if _, taken := t.entries[id]; !taken {
			return id, nil
		}
	}
	return 0, fmt.Errorf("no free transaction id after %d attempts (table has %d entries)", maxDrawAttempts, len(t.entries))
}

// Register inserts q under id. It returns an error if id is already
// registered (I1) — callers are expected to have drawn id via DrawID
// immediately beforehand, so a collision here indicates a caller bug
// rather than a normal retry path.
func (t *Table) Register(id uint16, q *domain.Query) error {
	if _, exists := t.entries[id]; exists {
		return fmt.Errorf("transaction id %d already registered", id)
	}
	q.ID = id
	t.entries[id] = q
	return nil
}

// Lookup returns the query registered under id, if any, without
// removing it. Used when a datagram might turn out to be malformed:
// the query must stay registered so a later, well-formed reply (or
// the timeout) can still resolve it.
func (t *Table) Lookup(id uint16) (*domain.Query, bool) {
	q, ok := t.entries[id]
	return q, ok
}

// LookupAndRemove returns the query registered under id, if any, and
// removes it from the table atomically with the lookup so a duplicate
// or late reply for the same ID cannot find it twice (I4).
func (t *Table) LookupAndRemove(id uint16) (*domain.Query, bool) {
	q, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	return q, ok
}

// Remove deletes id from the table without returning its query, used
// when a send error aborts a query the caller already holds a
// reference to.
func (t *Table) Remove(id uint16) {
	delete(t.entries, id)
}

// Len reports the number of currently registered queries.
func (t *Table) Len() int {
	return len(t.entries)
}

// DrainAbandon removes every entry from the table and returns the
// abandoned queries, for use by Stop() (spec §6.7): outstanding
// queries at shutdown are abandoned, not resolved with a terminal
// callback, matching the teacher/original behavior.
func (t *Table) DrainAbandon() []*domain.Query {
	abandoned := make([]*domain.Query, 0, len(t.entries))
	for id, q := range t.entries {
		abandoned = append(abandoned, q)
		delete(t.entries, id)
	}
	return abandoned
}
