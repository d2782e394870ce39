package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vslobodin/channel-mirror-bot/internal/models"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func testPost(fingerprint string) models.Post {
	return models.Post{
		Platform:    models.PlatformTelegram,
		SourceID:    "golang_news",
		PostID:      "42",
		Text:        "hello",
		URL:         "https://t.me/golang_news/42",
		CreatedAt:   time.Date(2026, 2, 4, 14, 30, 0, 0, time.UTC),
		Fingerprint: fingerprint,
	}
}

func TestStore_IsProcessed(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	seen, err := store.IsProcessed(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = store.MarkProcessed(ctx, testPost("fp-1"))
	require.NoError(t, err)

	seen, err = store.IsProcessed(ctx, "fp-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestStore_MarkProcessed(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	rec, err := store.MarkProcessed(ctx, testPost("fp-1"))
	require.NoError(t, err)

	assert.Equal(t, "fp-1", rec.Fingerprint)
	assert.Equal(t, models.PlatformTelegram, rec.Platform)
	assert.False(t, rec.Published)
	assert.Empty(t, rec.ErrorMessage)
	assert.False(t, rec.DiscoveredAt.IsZero())
}

func TestStore_MarkProcessedDuplicate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, testPost("fp-1"))
	require.NoError(t, err)

	_, err = store.MarkProcessed(ctx, testPost("fp-1"))
	assert.ErrorIs(t, err, ErrDuplicate)

	// Exactly one record exists.
	pending, err := store.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestStore_MarkPublished(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, testPost("fp-1"))
	require.NoError(t, err)

	require.NoError(t, store.MarkPublished(ctx, "fp-1", "1001"))

	rec, err := store.GetByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Published)
	assert.Equal(t, "1001", rec.TargetMessageID)
	require.NotNil(t, rec.PublishedAt)
	assert.WithinDuration(t, time.Now().UTC(), *rec.PublishedAt, time.Minute)

	// Published records leave the pending backlog.
	pending, err := store.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStore_MarkPublishedNoPendingRecord(t *testing.T) {
	store := openTestStore(t)

	// Logged, not fatal.
	assert.NoError(t, store.MarkPublished(context.Background(), "absent", "1001"))
}

func TestStore_MarkFailed(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, testPost("fp-1"))
	require.NoError(t, err)

	require.NoError(t, store.MarkFailed(ctx, "fp-1", "chat not found"))

	rec, err := store.GetByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.False(t, rec.Published)
	assert.Equal(t, "chat not found", rec.ErrorMessage)

	// Terminal failure: the record still dedups future fetches but is no
	// longer pending.
	seen, err := store.IsProcessed(ctx, "fp-1")
	require.NoError(t, err)
	assert.True(t, seen)

	pending, err := store.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStore_NoTransitionOutOfTerminalState(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, testPost("fp-1"))
	require.NoError(t, err)
	require.NoError(t, store.MarkFailed(ctx, "fp-1", "boom"))

	// Marking a failed record published is ignored.
	require.NoError(t, store.MarkPublished(ctx, "fp-1", "1001"))

	rec, err := store.GetByFingerprint(ctx, "fp-1")
	require.NoError(t, err)
	assert.False(t, rec.Published)
	assert.Equal(t, "boom", rec.ErrorMessage)

	// And a published record cannot be failed.
	_, err = store.MarkProcessed(ctx, testPost("fp-2"))
	require.NoError(t, err)
	require.NoError(t, store.MarkPublished(ctx, "fp-2", "1002"))
	require.NoError(t, store.MarkFailed(ctx, "fp-2", "late error"))

	rec, err = store.GetByFingerprint(ctx, "fp-2")
	require.NoError(t, err)
	assert.True(t, rec.Published)
	assert.Empty(t, rec.ErrorMessage)
}

func TestStore_GetUnpublishedOrderAndLimit(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 4, 12, 0, 0, 0, time.UTC)
	for i, fp := range []string{"fp-c", "fp-a", "fp-b"} {
		post := testPost(fp)
		post.PostID = fp
		// Insert out of chronological order.
		post.CreatedAt = base.Add(time.Duration((i*7)%3) * time.Hour)
		_, err := store.MarkProcessed(ctx, post)
		require.NoError(t, err)
	}

	pending, err := store.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for i := 1; i < len(pending); i++ {
		assert.False(t, pending[i].CreatedAt.Before(pending[i-1].CreatedAt))
	}

	limited, err := store.GetUnpublished(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_CloseIdempotent(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestStore_ReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.MarkProcessed(ctx, testPost("fp-1"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	seen, err := reopened.IsProcessed(ctx, "fp-1")
	require.NoError(t, err)
	assert.True(t, seen)
}
