package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/VintageWander/filey/internal/api"
	"github.com/VintageWander/filey/internal/catalog"
	"github.com/VintageWander/filey/internal/catalog/postgres"
	"github.com/VintageWander/filey/internal/config"
	"github.com/VintageWander/filey/internal/logging"
	"github.com/VintageWander/filey/internal/metrics"
	"github.com/VintageWander/filey/internal/server"
	"github.com/VintageWander/filey/internal/storage"
	"github.com/VintageWander/filey/internal/storage/local"
	"github.com/VintageWander/filey/internal/storage/s3"
	"github.com/VintageWander/filey/internal/storage/smb"
	"github.com/VintageWander/filey/pkg/protocol"
)

// catalogOptions provides the storage router and the catalog.
func catalogOptions(cfg *config.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(newStorage, newStore, newCatalog),
	)
}

// appOptions is the full peer server graph used by `filey serve`.
func appOptions(cfg *config.Config) fx.Option {
	return fx.Options(
		catalogOptions(cfg),
		fx.Provide(newAPIServer, newLifecycle),
		fx.Invoke(runPeerServer, runMetricsServer),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logging.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
	)
}

func newStorage(lc fx.Lifecycle, cfg *config.Config) (storage.Backend, error) {
	lb, err := local.New(local.Config{})
	if err != nil {
		return nil, err
	}
	router := storage.NewRouter(lb)

	if cfg.S3Enabled() {
		b, err := s3.New(context.Background(), s3.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
		})
		if err != nil {
			return nil, err
		}
		router.Register("s3", b)
	}
	if cfg.SMBMountPath != "" {
		b, err := smb.New(smb.Config{Server: cfg.SMBServer, MountPath: cfg.SMBMountPath})
		if err != nil {
			return nil, err
		}
		router.Register("smb", b)
	}

	lc.Append(fx.StopHook(router.Close))
	return router, nil
}

func newStore(lc fx.Lifecycle, cfg *config.Config) (catalog.Store, error) {
	var store catalog.Store
	if cfg.DatabaseURL != "" {
		ctx := context.Background()
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		logging.Info("catalog backed by postgres")
		store = pg
	} else {
		fs, err := catalog.OpenFileStore(cfg.CatalogFile)
		if err != nil {
			return nil, err
		}
		logging.Info("catalog backed by file", zap.String("path", cfg.CatalogFile))
		store = fs
	}
	lc.Append(fx.StopHook(store.Close))
	return store, nil
}

func newCatalog(store catalog.Store, fs storage.Backend) *catalog.Catalog {
	return catalog.New(store, fs)
}

func newAPIServer(cat *catalog.Catalog, fs storage.Backend) *api.Server {
	return api.NewServer(cat, fs)
}

func newLifecycle(srv *api.Server, cfg *config.Config) *server.Lifecycle {
	if !cfg.UsesPeerPort() {
		logging.Warn("listen address is not on the peer port; other peers will not discover this instance",
			zap.String("addr", cfg.ListenAddr),
			zap.Int("peer_port", protocol.PeerPort))
	}
	l := server.New(srv.Handler(), server.Config{
		Addr:            cfg.ListenAddr,
		ShutdownTimeout: cfg.ShutdownTimeout,
		MaxConnections:  cfg.MaxConnections,
		HandleSignals:   true,
	})
	server.SetDefault(l)
	return l
}

// runPeerServer starts serving with the application and shuts the
// application down if serving ends on its own, for example on SIGTERM.
func runPeerServer(lc fx.Lifecycle, l *server.Lifecycle, sd fx.Shutdowner, cat *catalog.Catalog) {
	var stopping atomic.Bool
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if recs, err := cat.List(ctx); err == nil {
				logging.Info("catalog loaded", zap.Int("files", len(recs)))
			}
			done, err := l.Launch(context.Background())
			if err != nil {
				return err
			}
			go func() {
				err := <-done
				if stopping.Load() {
					return
				}
				code := 0
				if err != nil {
					logging.Error("peer server exited", zap.Error(err))
					code = 1
				}
				sd.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopping.Store(true)
			return l.Shutdown(ctx)
		},
	})
}

func runMetricsServer(lc fx.Lifecycle, cfg *config.Config) {
	if cfg.MetricsAddr == "" {
		return
	}
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", cfg.MetricsAddr)
			if err != nil {
				return err
			}
			go func() {
				logging.Info("metrics server listening", zap.String("addr", ln.Addr().String()))
				if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
					logging.Error("metrics server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
}
