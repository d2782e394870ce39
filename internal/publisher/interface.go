package publisher

import (
	"context"

	"github.com/vslobodin/channel-mirror-bot/internal/models"
)

// Publisher defines the contract for delivering posts to the destination
// channel.
type Publisher interface {
	// Initialize verifies credentials and destination reachability.
	Initialize(ctx context.Context) error

	// Publish delivers one post and returns the destination message id.
	Publish(ctx context.Context, post models.Post) (string, error)

	Close() error
}
