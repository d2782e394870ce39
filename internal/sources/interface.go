package sources

import (
	"context"
	"time"

	"github.com/vslobodin/channel-mirror-bot/internal/models"
)

// Source fetches recent posts from one external channel or group.
type Source interface {
	// Name identifies the platform ("telegram", "vk").
	Name() string

	// URL returns the configured source URL.
	URL() string

	// Initialize prepares the source for fetching. Called once per source
	// lifetime before the first fetch; may fail on connectivity/auth errors.
	Initialize(ctx context.Context) error

	// Fetch returns up to limit posts created at or after since, each with
	// its fingerprint computed. No items found is an empty result, not an
	// error.
	Fetch(ctx context.Context, limit int, since time.Time) ([]models.Post, error)

	// Close releases source-owned resources. Idempotent.
	Close() error
}
