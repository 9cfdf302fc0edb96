package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/c360studio/semdigest/record"
)

// MemoryStore keeps records in process memory. Values are stored as JSON
// so callers never share a *record.Record with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[int64][]byte
	now  func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[int64][]byte), now: time.Now}
}

// Persist implements Store.
func (s *MemoryStore) Persist(_ context.Context, rec *record.Record) error {
	stamp(rec, s.now)
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.ID] = data
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id int64) (*record.Record, error) {
	s.mu.RLock()
	data, ok := s.data[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]*record.Record, 0, len(s.data))
	for _, data := range s.data {
		var rec record.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, err
		}
		recs = append(recs, &rec)
	}
	sortByID(recs)
	return recs, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
