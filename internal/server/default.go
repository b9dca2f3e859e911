package server

import (
	"context"
	"errors"
	"sync"
)

// ErrNoDefault is returned by Start when no process-wide server is set.
var ErrNoDefault = errors.New("server: no default lifecycle")

var (
	defaultMu sync.RWMutex
	defaultLC *Lifecycle
)

// SetDefault makes l the process-wide server controlled by Start and Stop.
func SetDefault(l *Lifecycle) {
	defaultMu.Lock()
	defaultLC = l
	defaultMu.Unlock()
}

// Default returns the process-wide server, or nil.
func Default() *Lifecycle {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLC
}

// Start runs the process-wide server until it stops.
func Start(ctx context.Context) error {
	l := Default()
	if l == nil {
		return ErrNoDefault
	}
	return l.Start(ctx)
}

// Stop stops the process-wide server. It is a no-op when none is set or
// running.
func Stop() {
	if l := Default(); l != nil {
		l.Stop()
	}
}
