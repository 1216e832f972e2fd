package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/cardsync/internal/models"
)

// MediaCacheRepository maps cache keys to platform media IDs so identical
// audio and images are never uploaded twice.
type MediaCacheRepository struct {
	db *sql.DB
}

// NewMediaCacheRepository creates a new MediaCacheRepository with the given database connection
func NewMediaCacheRepository(db *sql.DB) *MediaCacheRepository {
	return &MediaCacheRepository{db: db}
}

// Get retrieves a cache entry by key. Returns nil without error on a miss.
func (r *MediaCacheRepository) Get(key string) (*models.MediaCacheEntry, error) {
	var entry models.MediaCacheEntry
	err := r.db.QueryRow(
		"SELECT key, media_id, checksum, updated_at FROM media_cache WHERE key = ?",
		key,
	).Scan(&entry.Key, &entry.MediaID, &entry.Checksum, &entry.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return &entry, nil
}

// Upsert writes a cache entry, replacing any previous mapping for the key.
func (r *MediaCacheRepository) Upsert(entry *models.MediaCacheEntry) error {
	_, err := r.db.Exec(
		`INSERT INTO media_cache (key, media_id, checksum, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   media_id = excluded.media_id,
		   checksum = excluded.checksum,
		   updated_at = excluded.updated_at`,
		entry.Key, entry.MediaID, entry.Checksum, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}
	return nil
}
