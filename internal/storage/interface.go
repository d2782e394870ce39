package storage

import (
	"context"
	"errors"

	"github.com/vslobodin/channel-mirror-bot/internal/models"
)

// ErrDuplicate is returned by MarkProcessed when a record for the fingerprint
// already exists. Callers are expected to check IsProcessed first; the store
// still enforces uniqueness rather than silently upserting.
var ErrDuplicate = errors.New("storage: fingerprint already recorded")

// Store is the persistent seen-ledger. Every operation is an independent
// transaction against durable state; storage errors propagate uncaught.
type Store interface {
	// IsProcessed reports whether a record exists for the fingerprint,
	// regardless of its terminal state.
	IsProcessed(ctx context.Context, fingerprint string) (bool, error)

	// MarkProcessed inserts a pending record for the post.
	MarkProcessed(ctx context.Context, post models.Post) (*models.SeenRecord, error)

	// MarkPublished transitions a pending record to terminal success.
	// A missing pending record is logged and ignored.
	MarkPublished(ctx context.Context, fingerprint, targetMessageID string) error

	// MarkFailed transitions a pending record to terminal failure.
	MarkFailed(ctx context.Context, fingerprint, errorMessage string) error

	// GetUnpublished returns pending records (not published, no error)
	// ordered by original creation time ascending, capped at limit.
	GetUnpublished(ctx context.Context, limit int) ([]models.SeenRecord, error)

	// Close releases the underlying storage resources. Idempotent.
	Close() error
}
