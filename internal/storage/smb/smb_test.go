package smb

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VintageWander/filey/internal/storage"
)

func TestNewRequiresMountPath(t *testing.T) {
	_, err := New(Config{Server: "//nas/media"})
	assert.Error(t, err)
}

func TestReadsRelativeToMount(t *testing.T) {
	mount := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(mount, "movies"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(mount, "movies", "a.txt"), []byte("hello smb"), 0o644))

	b, err := New(Config{Server: "//nas/media", MountPath: mount})
	require.NoError(t, err)
	assert.Equal(t, "smb", b.Type())
	assert.Equal(t, "//nas/media", b.Server())

	router := storage.NewRouter(b)
	router.Register("smb", b)

	rc, err := router.Open(context.Background(), "smb://movies/a.txt", 6, 0)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "smb", string(data))
}

func TestRejectsEscapingMount(t *testing.T) {
	b, err := New(Config{MountPath: t.TempDir()})
	require.NoError(t, err)
	_, err = b.Stat(context.Background(), "../etc/passwd")
	assert.Error(t, err)
}
