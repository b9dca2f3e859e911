// Package local provides a local filesystem storage backend.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/VintageWander/filey/internal/storage"
)

// Config holds local filesystem backend settings.
type Config struct {
	// RootPath, when set, confines references to a directory tree and
	// resolves relative references against it. Empty means host paths.
	RootPath string
}

// Backend implements storage.Backend on the local filesystem.
type Backend struct {
	root string
}

// New creates a local filesystem backend.
func New(cfg Config) (*Backend, error) {
	if cfg.RootPath == "" {
		return &Backend{}, nil
	}
	root, err := filepath.Abs(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("resolve root path %s: %w", cfg.RootPath, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root path %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", root)
	}
	return &Backend{root: root}, nil
}

func (b *Backend) fullPath(ref string) (string, error) {
	p := filepath.FromSlash(ref)
	if b.root == "" {
		return p, nil
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(b.root, p)
	}
	rel, err := filepath.Rel(b.root, filepath.Clean(p))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside %s", ref, b.root)
	}
	return p, nil
}

// Open reads a file with range support.
func (b *Backend) Open(_ context.Context, ref string, offset, length int64) (io.ReadCloser, error) {
	path, err := b.fullPath(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", ref, err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", ref, storage.ErrNotFile)
	}

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return nil, fmt.Errorf("seek %s: %w", ref, err)
		}
	}

	if length > 0 {
		return &limitedReadCloser{Reader: io.LimitReader(f, length), Closer: f}, nil
	}
	return f, nil
}

// Stat returns size and modification time of a regular file.
func (b *Backend) Stat(_ context.Context, ref string) (storage.Info, error) {
	path, err := b.fullPath(ref)
	if err != nil {
		return storage.Info{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return storage.Info{}, fmt.Errorf("stat %s: %w", ref, err)
	}
	if !info.Mode().IsRegular() {
		return storage.Info{}, fmt.Errorf("stat %s: %w", ref, storage.ErrNotFile)
	}
	return storage.Info{Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Type returns "local".
func (b *Backend) Type() string { return "local" }

// Close is a no-op for local backends.
func (b *Backend) Close() error { return nil }

type limitedReadCloser struct {
	io.Reader
	io.Closer
}
