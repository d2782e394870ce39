package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/vslobodin/channel-mirror-bot/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore persists seen records in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)

// Open creates (or opens) the database at path and applies the schema.
func Open(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logrus.Debugf("seen-ledger opened at %s", path)
	return &SQLiteStore{db: db}, nil
}

// IsProcessed reports whether a record exists for the fingerprint.
func (s *SQLiteStore) IsProcessed(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM seen_posts WHERE fingerprint = ?", fingerprint).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check fingerprint: %w", err)
	}
	return true, nil
}

// MarkProcessed inserts a pending record for the post. Inserting an already
// recorded fingerprint returns ErrDuplicate.
func (s *SQLiteStore) MarkProcessed(ctx context.Context, post models.Post) (*models.SeenRecord, error) {
	discoveredAt := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO seen_posts (
			fingerprint, platform, source_id, post_id, url, created_at, discovered_at, published
		) VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		post.Fingerprint,
		string(post.Platform),
		post.SourceID,
		post.PostID,
		post.URL,
		formatTime(post.CreatedAt),
		formatTime(discoveredAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to insert seen record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted id: %w", err)
	}

	logrus.Debugf("post marked processed: %s:%s", post.Platform, post.PostID)
	return &models.SeenRecord{
		ID:           id,
		Fingerprint:  post.Fingerprint,
		Platform:     post.Platform,
		SourceID:     post.SourceID,
		PostID:       post.PostID,
		URL:          post.URL,
		CreatedAt:    post.CreatedAt.UTC(),
		DiscoveredAt: discoveredAt,
	}, nil
}

// MarkPublished transitions a pending record to terminal success. When no
// pending record matches, the call is logged and ignored.
func (s *SQLiteStore) MarkPublished(ctx context.Context, fingerprint, targetMessageID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE seen_posts
		SET published = 1, published_at = ?, target_message_id = ?
		WHERE fingerprint = ? AND published = 0 AND error_message IS NULL`,
		formatTime(time.Now().UTC()),
		nullString(targetMessageID),
		fingerprint,
	)
	if err != nil {
		return fmt.Errorf("failed to mark published: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		logrus.Warnf("no pending record to mark published: %s", shortHash(fingerprint))
		return nil
	}

	logrus.Debugf("post marked published: %s", shortHash(fingerprint))
	return nil
}

// MarkFailed transitions a pending record to terminal failure.
func (s *SQLiteStore) MarkFailed(ctx context.Context, fingerprint, errorMessage string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE seen_posts
		SET error_message = ?
		WHERE fingerprint = ? AND published = 0 AND error_message IS NULL`,
		errorMessage,
		fingerprint,
	)
	if err != nil {
		return fmt.Errorf("failed to mark failed: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		logrus.Warnf("no pending record to mark failed: %s", shortHash(fingerprint))
		return nil
	}

	logrus.Warnf("post marked failed: %s - %s", shortHash(fingerprint), errorMessage)
	return nil
}

// GetUnpublished returns pending records ordered by creation time ascending.
func (s *SQLiteStore) GetUnpublished(ctx context.Context, limit int) ([]models.SeenRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint, platform, source_id, post_id, url,
		       created_at, discovered_at, published, published_at,
		       target_message_id, error_message
		FROM seen_posts
		WHERE published = 0 AND error_message IS NULL
		ORDER BY created_at ASC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpublished posts: %w", err)
	}
	defer rows.Close()

	var records []models.SeenRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate unpublished posts: %w", err)
	}

	return records, nil
}

// GetByFingerprint looks up one record; returns nil when absent.
func (s *SQLiteStore) GetByFingerprint(ctx context.Context, fingerprint string) (*models.SeenRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint, platform, source_id, post_id, url,
		       created_at, discovered_at, published, published_at,
		       target_message_id, error_message
		FROM seen_posts
		WHERE fingerprint = ?`,
		fingerprint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	rec, err := scanRecord(rows)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Close releases the database handle. Safe to call more than once.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	db := s.db
	s.db = nil
	logrus.Debug("seen-ledger closed")
	return db.Close()
}

func scanRecord(rows *sql.Rows) (models.SeenRecord, error) {
	var (
		rec          models.SeenRecord
		platform     string
		createdAt    string
		discoveredAt string
		published    int
		publishedAt  sql.NullString
		targetMsgID  sql.NullString
		errorMessage sql.NullString
	)

	if err := rows.Scan(
		&rec.ID, &rec.Fingerprint, &platform, &rec.SourceID, &rec.PostID, &rec.URL,
		&createdAt, &discoveredAt, &published, &publishedAt,
		&targetMsgID, &errorMessage,
	); err != nil {
		return models.SeenRecord{}, fmt.Errorf("failed to scan seen record: %w", err)
	}

	rec.Platform = models.Platform(platform)
	rec.Published = published != 0
	rec.TargetMessageID = targetMsgID.String
	rec.ErrorMessage = errorMessage.String

	var err error
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return models.SeenRecord{}, err
	}
	if rec.DiscoveredAt, err = parseTime(discoveredAt); err != nil {
		return models.SeenRecord{}, err
	}
	if publishedAt.Valid {
		t, err := parseTime(publishedAt.String)
		if err != nil {
			return models.SeenRecord{}, err
		}
		rec.PublishedAt = &t
	}

	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func shortHash(fingerprint string) string {
	if len(fingerprint) > 16 {
		return fingerprint[:16] + "..."
	}
	return fingerprint
}
