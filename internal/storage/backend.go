// Package storage defines the Backend interface for reading shared file
// content and routes file references to the backend that owns them.
package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"time"
)

// ErrNotFile is returned when a reference resolves to something that is not
// a regular file, such as a directory.
var ErrNotFile = errors.New("not a regular file")

// Info describes stored content.
type Info struct {
	Size    int64
	ModTime time.Time
}

// Backend is the interface for content storage backends.
// Implementations only read: filey never writes into shared locations.
type Backend interface {
	// Open returns the content of ref starting at offset. A length of 0
	// reads to the end.
	Open(ctx context.Context, ref string, offset, length int64) (io.ReadCloser, error)

	// Stat returns size information for ref. Missing content yields an error
	// matching fs.ErrNotExist.
	Stat(ctx context.Context, ref string) (Info, error)

	// Type returns the backend type identifier ("local", "s3").
	Type() string

	// Close releases any resources held by the backend.
	Close() error
}

// ReadHead returns up to n leading bytes of ref.
func ReadHead(ctx context.Context, b Backend, ref string, n int64) ([]byte, error) {
	rc, err := b.Open(ctx, ref, 0, n)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(rc, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}

// Exists reports whether ref names readable file content.
func Exists(ctx context.Context, b Backend, ref string) (bool, error) {
	_, err := b.Stat(ctx, ref)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, ErrNotFile):
		return false, nil
	default:
		return false, err
	}
}
