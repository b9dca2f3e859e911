package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/VintageWander/filey/internal/catalog"
	"github.com/VintageWander/filey/internal/config"
	"github.com/VintageWander/filey/internal/logging"
	"github.com/VintageWander/filey/internal/server"
	"github.com/VintageWander/filey/pkg/models"
	"github.com/VintageWander/filey/pkg/protocol"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	logging.Replace(zap.NewNop())
	t.Setenv("LISTEN_ADDR", "127.0.0.1:0")
	t.Setenv("CATALOG_FILE", filepath.Join(t.TempDir(), "catalog.json"))
	t.Setenv("DATABASE_URL", "")
	t.Setenv("S3_BUCKET", "")
	t.Setenv("S3_ENDPOINT", "")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestAppServesSharedFiles(t *testing.T) {
	cfg := testConfig(t)

	var (
		lifecycle *server.Lifecycle
		cat       *catalog.Catalog
	)
	app := fxtest.New(t, appOptions(cfg), fx.Populate(&lifecycle, &cat))
	app.RequireStart()

	require.True(t, lifecycle.Running())

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))
	_, err := cat.Upsert(context.Background(), []models.FileDraft{
		{Name: "notes.txt", Visibility: models.Public, Path: path},
	})
	require.NoError(t, err)

	resp, err := http.Get("http://" + lifecycle.Addr().String() + "/files")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var env protocol.Envelope[[]protocol.FileSummary]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, "notes.txt", env.Data[0].Name)
	assert.Equal(t, "text/plain", env.Data[0].Mime)

	app.RequireStop()
	assert.False(t, lifecycle.Running())
}

func TestDefaultStopEndsApp(t *testing.T) {
	cfg := testConfig(t)

	var lifecycle *server.Lifecycle
	app := fxtest.New(t, appOptions(cfg), fx.Populate(&lifecycle))
	app.RequireStart()
	defer app.RequireStop()
	require.Same(t, lifecycle, server.Default())

	server.Stop()
	select {
	case <-app.Wait():
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}
	assert.False(t, lifecycle.Running())
}

func TestAppFailsToStartOnBusyPort(t *testing.T) {
	cfg := testConfig(t)

	var first *server.Lifecycle
	app := fxtest.New(t, appOptions(cfg), fx.Populate(&first))
	app.RequireStart()
	defer app.RequireStop()

	cfg2 := *cfg
	cfg2.ListenAddr = first.Addr().String()
	cfg2.CatalogFile = filepath.Join(t.TempDir(), "other.json")
	second := fx.New(appOptions(&cfg2), fx.NopLogger)
	err := second.Start(context.Background())
	require.Error(t, err)
}

func TestCatalogOptionsPersistAcrossRuns(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "a.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, 0o644))

	var cat *catalog.Catalog
	app := fxtest.New(t, catalogOptions(cfg), fx.Populate(&cat))
	app.RequireStart()
	recs, err := cat.Upsert(context.Background(), []models.FileDraft{
		{Name: "a.bin", Visibility: models.Private, Path: path},
	})
	require.NoError(t, err)
	app.RequireStop()

	var reopened *catalog.Catalog
	app = fxtest.New(t, catalogOptions(cfg), fx.Populate(&reopened))
	app.RequireStart()
	defer app.RequireStop()

	got, err := reopened.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, recs, got)
}

func TestAppWarnsOffPeerPort(t *testing.T) {
	cfg := testConfig(t)
	core, logs := observer.New(zapcore.WarnLevel)
	logging.Replace(zap.New(core))
	t.Cleanup(func() { logging.Replace(zap.NewNop()) })

	app := fxtest.New(t, appOptions(cfg))
	app.RequireStart()
	app.RequireStop()

	entries := logs.FilterField(zap.String("addr", "127.0.0.1:0")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestDraftFor(t *testing.T) {
	d, err := draftFor("content://media/42", models.Public)
	require.NoError(t, err)
	assert.Equal(t, "content://media/42", d.Path)
	assert.Equal(t, "content://media/42", d.Name)

	d, err = draftFor("notes.txt", models.Private)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(d.Path))
	assert.Equal(t, "notes.txt", d.Name)
	assert.Equal(t, models.Private, d.Visibility)
}
