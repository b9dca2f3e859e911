package apperr

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := E(NotFound, "files.get", errors.New("no public file 42"))
	wrapped := fmt.Errorf("handler: %w", err)

	assert.ErrorIs(t, wrapped, NotFound)
	assert.NotErrorIs(t, wrapped, CatalogError)
	assert.Equal(t, NotFound, KindOf(wrapped))
	assert.Equal(t, "files.get: not found: no public file 42", err.Error())
}

func TestCauseIsPreserved(t *testing.T) {
	err := E(FilesystemError, "storage.open", fs.ErrNotExist)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.ErrorIs(t, err, FilesystemError)
}

func TestNilCause(t *testing.T) {
	err := E(AlreadyRunning, "server.start", nil)
	assert.Equal(t, "server.start: server already running", err.Error())
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
}
