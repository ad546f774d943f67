// Package ledgertest provides an in-memory ledger.Store for tests.
package ledgertest

import (
	"context"
	"sync"
	"time"

	"github.com/bcaldwell/homeparser/pkg/ledger"
)

// MemStore keeps committed entries in memory. Work done inside a failed RunInTx is discarded.
type MemStore struct {
	mu      sync.Mutex
	entries []ledger.Entry
	nextID  int64
	closes  int

	// ExistsErr and InsertErr are returned by every lookup or insert when set.
	ExistsErr error
	InsertErr error
	// Conflicts lists hashes that another writer stores between lookup and insert.
	Conflicts map[string]bool
}

func NewMemStore() *MemStore {
	return &MemStore{Conflicts: map[string]bool{}}
}

func (s *MemStore) RunInTx(ctx context.Context, fn func(ctx context.Context, b ledger.Batch) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := &memBatch{store: s, nextID: s.nextID}
	if err := fn(ctx, b); err != nil {
		return err
	}

	s.entries = append(s.entries, b.pending...)
	s.nextID = b.nextID
	return nil
}

func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

// Entries returns a copy of the committed entries in insert order.
func (s *MemStore) Entries() []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledger.Entry(nil), s.entries...)
}

func (s *MemStore) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type memBatch struct {
	store   *MemStore
	pending []ledger.Entry
	nextID  int64
}

func (b *memBatch) Exists(_ context.Context, date time.Time, hash string) (bool, error) {
	if b.store.ExistsErr != nil {
		return false, b.store.ExistsErr
	}

	return b.has(date, hash), nil
}

func (b *memBatch) Insert(_ context.Context, e *ledger.Entry) (bool, error) {
	if b.store.InsertErr != nil {
		return false, b.store.InsertErr
	}

	if b.store.Conflicts[e.Hash] || b.has(e.Date, e.Hash) {
		return false, nil
	}

	b.nextID++
	row := *e
	row.ID = b.nextID
	row.DateParsed = time.Now()
	b.pending = append(b.pending, row)
	return true, nil
}

func (b *memBatch) has(date time.Time, hash string) bool {
	for _, rows := range [][]ledger.Entry{b.store.entries, b.pending} {
		for _, e := range rows {
			if e.Hash == hash && e.Date.Equal(date) {
				return true
			}
		}
	}

	return false
}
