package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/VintageWander/filey/pkg/models"
)

// Store persists file records. Implementations are safe for concurrent use
// and return records in insertion order.
type Store interface {
	// Get returns the record with id, or nil when absent.
	Get(ctx context.Context, id uuid.UUID) (*models.FileRecord, error)

	// Insert adds rec unless a record with the same id already exists, in
	// which case it does nothing and returns nil.
	Insert(ctx context.Context, rec models.FileRecord) error

	// SetVisibility changes visibility and reports whether the record existed.
	SetVisibility(ctx context.Context, id uuid.UUID, v models.Visibility) (bool, error)

	// Delete removes one record and reports whether it existed.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	List(ctx context.Context) ([]models.FileRecord, error)
	ListPublic(ctx context.Context) ([]models.FileRecord, error)

	// GetPublic returns the record only if it exists and is public.
	GetPublic(ctx context.Context, id uuid.UUID) (*models.FileRecord, error)

	Close() error
}
