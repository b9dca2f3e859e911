package catalog

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/VintageWander/filey/pkg/models"
)

// MemoryStore keeps records in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	order   []uuid.UUID
	records map[uuid.UUID]models.FileRecord
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]models.FileRecord)}
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (s *MemoryStore) Insert(_ context.Context, rec models.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(rec)
	return nil
}

func (s *MemoryStore) insertLocked(rec models.FileRecord) {
	if _, ok := s.records[rec.ID]; ok {
		return
	}
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
}

func (s *MemoryStore) SetVisibility(_ context.Context, id uuid.UUID, v models.Visibility) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return false, nil
	}
	rec.Visibility = v
	s.records[id] = rec
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *MemoryStore) List(context.Context) ([]models.FileRecord, error) {
	return s.filter(func(models.FileRecord) bool { return true }), nil
}

func (s *MemoryStore) ListPublic(context.Context) ([]models.FileRecord, error) {
	return s.filter(func(r models.FileRecord) bool { return r.Visibility == models.Public }), nil
}

func (s *MemoryStore) GetPublic(ctx context.Context, id uuid.UUID) (*models.FileRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil || rec == nil || rec.Visibility != models.Public {
		return nil, err
	}
	return rec, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) filter(keep func(models.FileRecord) bool) []models.FileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FileRecord, 0, len(s.order))
	for _, id := range s.order {
		if rec := s.records[id]; keep(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// replace swaps the contents for recs.
func (s *MemoryStore) replace(recs []models.FileRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[uuid.UUID]models.FileRecord, len(recs))
	s.order = nil
	for _, rec := range recs {
		s.insertLocked(rec)
	}
}
