package study

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an import or record does not exist.
var ErrNotFound = errors.New("study: not found")

// ImportRepository defines the persistence interface for imports.
type ImportRepository interface {
	Create(ctx context.Context, imp *Import) error
	GetByID(ctx context.Context, id uuid.UUID) (*Import, error)
	List(ctx context.Context, limit, offset int) ([]*Import, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// RecordRepository defines the persistence interface for instrument records.
type RecordRepository interface {
	// Replace removes an import's existing records and stores the given
	// set, so rebuilding is idempotent.
	Replace(ctx context.Context, importID uuid.UUID, entries []*RecordEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*RecordEntry, error)
	ListByImport(ctx context.Context, importID uuid.UUID) ([]*RecordEntry, error)
	UpdatePayload(ctx context.Context, entry *RecordEntry) error
}
