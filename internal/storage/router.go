package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/VintageWander/filey/internal/apperr"
	"github.com/VintageWander/filey/internal/logging"
	"github.com/VintageWander/filey/internal/metrics"
)

// Router dispatches references to backends by URI scheme. References without
// a scheme, and file:// references, go to the local backend.
type Router struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRouter creates a Router with local as the backend for plain paths.
func NewRouter(local Backend) *Router {
	return &Router{backends: map[string]Backend{"file": local}}
}

// Register routes scheme:// references to b, replacing any previous backend.
func (r *Router) Register(scheme string, b Backend) {
	r.mu.Lock()
	old := r.backends[scheme]
	r.backends[scheme] = b
	r.mu.Unlock()

	if old != nil && old != b {
		old.Close()
	}
	logging.Debug("storage backend registered", zap.String("scheme", scheme), zap.String("type", b.Type()))
}

// Open implements Backend.
func (r *Router) Open(ctx context.Context, ref string, offset, length int64) (io.ReadCloser, error) {
	b, key, err := r.resolve(ref)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rc, err := b.Open(ctx, key, offset, length)
	metrics.RecordStorageOperation(b.Type(), "open", time.Since(start), err == nil)
	if err != nil {
		return nil, apperr.E(apperr.FilesystemError, "storage.open", err)
	}
	return rc, nil
}

// Stat implements Backend.
func (r *Router) Stat(ctx context.Context, ref string) (Info, error) {
	b, key, err := r.resolve(ref)
	if err != nil {
		return Info{}, err
	}
	start := time.Now()
	info, err := b.Stat(ctx, key)
	metrics.RecordStorageOperation(b.Type(), "stat", time.Since(start), err == nil)
	if err != nil {
		return Info{}, apperr.E(apperr.FilesystemError, "storage.stat", err)
	}
	return info, nil
}

// Type returns "router".
func (r *Router) Type() string { return "router" }

// Close closes every registered backend.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for scheme, b := range r.backends {
		if err := b.Close(); err != nil && first == nil {
			first = fmt.Errorf("close %s backend: %w", scheme, err)
		}
	}
	return first
}

func (r *Router) resolve(ref string) (Backend, string, error) {
	scheme, key := SplitRef(ref)
	if scheme == "" {
		scheme = "file"
	}

	r.mu.RLock()
	b, ok := r.backends[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, "", apperr.Errorf(apperr.FilesystemError, "storage.resolve", "no backend for %s:// references", scheme)
	}
	return b, key, nil
}

// SplitRef separates "scheme://rest" into its parts. Plain paths, including
// Windows drive paths, have an empty scheme.
func SplitRef(ref string) (scheme, rest string) {
	before, after, ok := strings.Cut(ref, "://")
	if !ok || !validScheme(before) {
		return "", ref
	}
	return strings.ToLower(before), after
}

func validScheme(s string) bool {
	if len(s) < 2 {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}
