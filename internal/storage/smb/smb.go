// Package smb serves smb:// references from an SMB/CIFS share that is
// already mounted on the host (mount.cifs, fstab or a mapped drive).
// I/O goes through the local backend rooted at the mount point.
package smb

import (
	"fmt"

	"github.com/VintageWander/filey/internal/storage/local"
)

// Config holds SMB backend settings. Server is informational; all reads
// use MountPath.
type Config struct {
	Server    string // e.g. //nas/media
	MountPath string
}

// Backend resolves smb://relative/path against the mount point.
type Backend struct {
	*local.Backend
	server string
}

// New creates an SMB backend. The mount point must exist.
func New(cfg Config) (*Backend, error) {
	if cfg.MountPath == "" {
		return nil, fmt.Errorf("smb mount path is required")
	}
	lb, err := local.New(local.Config{RootPath: cfg.MountPath})
	if err != nil {
		return nil, fmt.Errorf("smb backend at %s: %w", cfg.MountPath, err)
	}
	return &Backend{Backend: lb, server: cfg.Server}, nil
}

// Type returns "smb".
func (b *Backend) Type() string { return "smb" }

// Server returns the configured share name.
func (b *Backend) Server() string { return b.server }
