package store

import (
	"context"
	"sync"
	"time"

	"signaged/proto"
)

// MemoryStore keeps layouts in process memory. Each key carries its own
// lock so writes to different screens never contend.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memEntry
}

type memEntry struct {
	mu  sync.Mutex
	rec Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memEntry)}
}

func (s *MemoryStore) Get(ctx context.Context, screenID string) (Record, error) {
	s.mu.RLock()
	entry, ok := s.records[screenID]
	s.mu.RUnlock()
	if !ok {
		return Record{}, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.rec, nil
}

func (s *MemoryStore) Put(ctx context.Context, screenID string, layout proto.Layout) (int64, error) {
	s.mu.Lock()
	entry, ok := s.records[screenID]
	if !ok {
		entry = &memEntry{}
		s.records[screenID] = entry
	}
	s.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.rec = Record{
		Layout:    layout,
		Version:   entry.rec.Version + 1,
		Checksum:  layout.Checksum(),
		UpdatedAt: time.Now(),
	}
	return entry.rec.Version, nil
}

func (s *MemoryStore) Delete(ctx context.Context, screenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, screenID)
	return nil
}
