package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/VintageWander/filey/internal/logging"
	"github.com/VintageWander/filey/pkg/models"
)

const fileFormatVersion = 1

type snapshot struct {
	Version int                 `json:"version"`
	Files   []models.FileRecord `json:"files"`
}

// FileStore keeps the catalog in a JSON file. Every mutation rewrites the
// file; a change made by another filey process is picked up on next access.
type FileStore struct {
	path string

	mu      sync.Mutex
	mem     *MemoryStore
	modTime time.Time
	size    int64

	rename func(oldpath, newpath string) error
}

// OpenFileStore loads path, creating its directory if needed. A missing file
// is an empty catalog.
func OpenFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create catalog dir: %w", err)
	}
	s := &FileStore{path: path, mem: NewMemoryStore(), rename: os.Rename}
	if err := s.reloadIfChanged(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) reloadIfChanged() error {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat catalog: %w", err)
	}
	if info.ModTime().Equal(s.modTime) && info.Size() == s.size {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read catalog: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse catalog %s: %w", s.path, err)
	}
	if snap.Version != fileFormatVersion {
		return fmt.Errorf("catalog %s has unsupported version %d", s.path, snap.Version)
	}

	s.mem.replace(snap.Files)
	s.modTime, s.size = info.ModTime(), info.Size()
	logging.Debug("catalog loaded", zap.String("path", s.path), zap.Int("files", len(snap.Files)))
	return nil
}

// persist writes the snapshot to a temp file and renames it into place.
func (s *FileStore) persist(ctx context.Context) error {
	recs, _ := s.mem.List(ctx)
	data, err := json.MarshalIndent(snapshot{Version: fileFormatVersion, Files: recs}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".catalog-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp catalog: %w", err)
	}
	if err := s.rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename catalog: %w", err)
	}

	if info, err := os.Stat(s.path); err == nil {
		s.modTime, s.size = info.ModTime(), info.Size()
	}
	return nil
}

// read runs fn against the freshest contents.
func (s *FileStore) read(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadIfChanged(); err != nil {
		return err
	}
	return fn()
}

// write runs fn and persists when it reports a change.
func (s *FileStore) write(ctx context.Context, fn func() (bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reloadIfChanged(); err != nil {
		return err
	}
	changed, err := fn()
	if err != nil || !changed {
		return err
	}
	if err := s.persist(ctx); err != nil {
		s.resync()
		return err
	}
	return nil
}

// resync drops in-memory changes that never reached disk. If the file cannot
// be read now, the zeroed stamp forces a reload on the next access.
func (s *FileStore) resync() {
	s.modTime, s.size = time.Time{}, -1
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		s.mem.replace(nil)
		return
	}
	if err := s.reloadIfChanged(); err != nil {
		logging.Warn("catalog reload failed", zap.String("path", s.path), zap.Error(err))
	}
}

func (s *FileStore) Get(ctx context.Context, id uuid.UUID) (rec *models.FileRecord, err error) {
	err = s.read(func() error {
		rec, err = s.mem.Get(ctx, id)
		return err
	})
	return rec, err
}

func (s *FileStore) Insert(ctx context.Context, rec models.FileRecord) error {
	return s.write(ctx, func() (bool, error) {
		if existing, _ := s.mem.Get(ctx, rec.ID); existing != nil {
			return false, nil
		}
		return true, s.mem.Insert(ctx, rec)
	})
}

func (s *FileStore) SetVisibility(ctx context.Context, id uuid.UUID, v models.Visibility) (found bool, err error) {
	err = s.write(ctx, func() (bool, error) {
		found, err = s.mem.SetVisibility(ctx, id, v)
		return found, err
	})
	return found, err
}

func (s *FileStore) Delete(ctx context.Context, id uuid.UUID) (found bool, err error) {
	err = s.write(ctx, func() (bool, error) {
		found, err = s.mem.Delete(ctx, id)
		return found, err
	})
	return found, err
}

func (s *FileStore) List(ctx context.Context) (recs []models.FileRecord, err error) {
	err = s.read(func() error {
		recs, err = s.mem.List(ctx)
		return err
	})
	return recs, err
}

func (s *FileStore) ListPublic(ctx context.Context) (recs []models.FileRecord, err error) {
	err = s.read(func() error {
		recs, err = s.mem.ListPublic(ctx)
		return err
	})
	return recs, err
}

func (s *FileStore) GetPublic(ctx context.Context, id uuid.UUID) (rec *models.FileRecord, err error) {
	err = s.read(func() error {
		rec, err = s.mem.GetPublic(ctx, id)
		return err
	})
	return rec, err
}

func (s *FileStore) Close() error { return nil }
