// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/VintageWander/filey/pkg/protocol"
)

// Config holds all filey configuration.
type Config struct {
	// Peer server
	ListenAddr      string
	MetricsAddr     string // empty disables the metrics server
	ShutdownTimeout time.Duration
	MaxConnections  int

	// Logging
	LogLevel  string
	LogFormat string

	// Catalog: postgres when DatabaseURL is set, otherwise a JSON file
	DatabaseURL string
	CatalogFile string

	// Discovery
	PeerTimeout     time.Duration
	ScanConcurrency int

	// S3 storage for s3:// references (enabled when S3Bucket or S3Endpoint is set)
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string

	// SMB share mounted on the host, for smb:// references
	SMBServer    string
	SMBMountPath string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      envOr("LISTEN_ADDR", fmt.Sprintf(":%d", protocol.PeerPort)),
		MetricsAddr:     envOr("METRICS_ADDR", ""),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxConnections:  envInt("MAX_CONNECTIONS", 256),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "console"),
		DatabaseURL:     envOr("DATABASE_URL", ""),
		CatalogFile:     envOr("CATALOG_FILE", defaultCatalogFile()),
		PeerTimeout:     envDuration("PEER_TIMEOUT", 2*time.Second),
		ScanConcurrency: envInt("SCAN_CONCURRENCY", 64),
		S3Endpoint:      envOr("S3_ENDPOINT", ""),
		S3Bucket:        envOr("S3_BUCKET", ""),
		S3AccessKey:     envOr("S3_ACCESS_KEY", ""),
		S3SecretKey:     envOr("S3_SECRET_KEY", ""),
		S3Region:        envOr("S3_REGION", "us-east-1"),
		SMBServer:       envOr("SMB_SERVER", ""),
		SMBMountPath:    envOr("SMB_MOUNT_PATH", ""),
	}

	if cfg.PeerTimeout <= 0 {
		return nil, fmt.Errorf("PEER_TIMEOUT must be positive")
	}
	if cfg.ScanConcurrency <= 0 {
		return nil, fmt.Errorf("SCAN_CONCURRENCY must be positive")
	}
	if cfg.DatabaseURL == "" && cfg.CatalogFile == "" {
		return nil, fmt.Errorf("one of DATABASE_URL or CATALOG_FILE is required")
	}

	return cfg, nil
}

// S3Enabled reports whether s3:// references can be resolved.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" || c.S3Endpoint != ""
}

// UsesPeerPort reports whether ListenAddr is on protocol.PeerPort. Peers only
// probe that port, so any other port makes this instance undiscoverable.
func (c *Config) UsesPeerPort() bool {
	_, port, err := net.SplitHostPort(c.ListenAddr)
	return err == nil && port == strconv.Itoa(protocol.PeerPort)
}

func defaultCatalogFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "filey", "catalog.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
