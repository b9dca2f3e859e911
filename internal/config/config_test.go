package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CATALOG_FILE", "/tmp/filey-test/catalog.json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":38899", cfg.ListenAddr)
	assert.Equal(t, 2*time.Second, cfg.PeerTimeout)
	assert.Equal(t, 64, cfg.ScanConcurrency)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.S3Enabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", "127.0.0.1:0")
	t.Setenv("PEER_TIMEOUT", "500ms")
	t.Setenv("SCAN_CONCURRENCY", "8")
	t.Setenv("S3_BUCKET", "media")
	t.Setenv("MAX_CONNECTIONS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:0", cfg.ListenAddr)
	assert.Equal(t, 500*time.Millisecond, cfg.PeerTimeout)
	assert.Equal(t, 8, cfg.ScanConcurrency)
	assert.Equal(t, 256, cfg.MaxConnections)
	assert.True(t, cfg.S3Enabled())
}

func TestLoadRejectsZeroConcurrency(t *testing.T) {
	t.Setenv("SCAN_CONCURRENCY", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestUsesPeerPort(t *testing.T) {
	for addr, want := range map[string]bool{
		":38899":         true,
		"0.0.0.0:38899":  true,
		"[::]:38899":     true,
		"127.0.0.1:0":    false,
		":8080":          false,
		"not an address": false,
	} {
		cfg := &Config{ListenAddr: addr}
		assert.Equal(t, want, cfg.UsesPeerPort(), addr)
	}
}
