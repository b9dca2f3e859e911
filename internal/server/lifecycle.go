// Package server runs the peer HTTP server with start/stop control and
// graceful shutdown on stop or on process signals.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/netutil"

	"github.com/VintageWander/filey/internal/apperr"
	"github.com/VintageWander/filey/internal/logging"
)

// Config controls the listener and shutdown behavior.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration // drain budget before open connections are cut
	MaxConnections  int           // 0 means unlimited
	HandleSignals   bool          // stop on interrupt and, where supported, terminate
}

// Lifecycle owns at most one running server at a time.
type Lifecycle struct {
	handler http.Handler
	cfg     Config
	log     *zap.Logger

	mu     sync.Mutex
	handle *handle
}

// handle is the cancellation trigger of the running server.
type handle struct {
	cancel context.CancelFunc
	once   sync.Once
	addr   net.Addr
	done   chan struct{}
}

func (h *handle) fire() { h.once.Do(h.cancel) }

// New creates a stopped Lifecycle serving handler.
func New(handler http.Handler, cfg Config) *Lifecycle {
	return &Lifecycle{handler: handler, cfg: cfg, log: logging.Named("server")}
}

// Launch binds the listener and starts serving in the background. The handle
// is registered before the first connection is accepted. The returned channel
// yields the terminal serve error (nil after a clean stop) and is then closed.
func (l *Lifecycle) Launch(ctx context.Context) (<-chan error, error) {
	const op = "server.start"

	l.mu.Lock()
	if l.handle != nil {
		l.mu.Unlock()
		return nil, apperr.E(apperr.AlreadyRunning, op, nil)
	}

	ln, err := net.Listen("tcp", l.cfg.Addr)
	if err != nil {
		l.mu.Unlock()
		return nil, apperr.E(apperr.BindFailure, op, err)
	}
	if l.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, l.cfg.MaxConnections)
	}

	runCtx, cancel := context.WithCancel(ctx)
	stopSignals := func() {}
	if l.cfg.HandleSignals {
		runCtx, stopSignals = signal.NotifyContext(runCtx, shutdownSignals...)
	}
	h := &handle{cancel: cancel, addr: ln.Addr(), done: make(chan struct{})}
	l.handle = h
	l.mu.Unlock()

	srv := &http.Server{
		Handler:           l.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	l.log.Info("peer server listening", zap.String("addr", h.addr.String()))

	result := make(chan error, 1)
	go func() {
		defer close(result)
		defer close(h.done)
		defer stopSignals()

		var err error
		select {
		case <-runCtx.Done():
			l.log.Info("peer server stopping", zap.Error(context.Cause(runCtx)))
			l.drain(srv)
			err = <-serveErr
		case err = <-serveErr:
			l.log.Error("peer server failed", zap.Error(err))
		}
		cancel()
		l.release(h)

		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		l.log.Info("peer server stopped")
		result <- err
	}()

	return result, nil
}

// drain stops accepting and waits for in-flight requests, cutting them off
// once the shutdown timeout passes.
func (l *Lifecycle) drain(srv *http.Server) {
	timeout := l.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		l.log.Warn("graceful shutdown timed out, closing connections", zap.Error(err))
		srv.Close()
	}
}

func (l *Lifecycle) release(h *handle) {
	l.mu.Lock()
	if l.handle == h {
		l.handle = nil
	}
	l.mu.Unlock()
}

// Start serves until ctx is cancelled, Stop is called or a shutdown signal
// arrives.
func (l *Lifecycle) Start(ctx context.Context) error {
	done, err := l.Launch(ctx)
	if err != nil {
		return err
	}
	return <-done
}

// Stop fires the running server's cancellation and clears the handle. It is
// a no-op when nothing is running.
func (l *Lifecycle) Stop() {
	l.take()
}

// Shutdown stops the server and waits until it has drained or ctx ends.
func (l *Lifecycle) Shutdown(ctx context.Context) error {
	h := l.take()
	if h == nil {
		return nil
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Lifecycle) take() *handle {
	l.mu.Lock()
	h := l.handle
	l.handle = nil
	l.mu.Unlock()
	if h != nil {
		h.fire()
	}
	return h
}

// Running reports whether a server handle is registered.
func (l *Lifecycle) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle != nil
}

// Addr returns the bound address of the running server, or nil.
func (l *Lifecycle) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.handle == nil {
		return nil
	}
	return l.handle.addr
}
