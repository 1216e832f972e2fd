package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cardsync/internal/models"
	"github.com/desertthunder/cardsync/internal/services"
	"github.com/desertthunder/cardsync/internal/shared"
)

// AcquisitionCache maps track ids to locally cached encoded audio files.
//
// The cache key is the track id alone, never the search query, so a
// re-resolution of the same track never re-downloads even when playlist
// metadata changed cosmetically.
type AcquisitionCache struct {
	dir     string
	format  string
	fetcher services.Fetcher
	logger  *log.Logger
}

// NewAcquisitionCache creates a cache rooted at dir for the given audio format.
func NewAcquisitionCache(dir, format string, fetcher services.Fetcher, logger *log.Logger) *AcquisitionCache {
	return &AcquisitionCache{dir: dir, format: format, fetcher: fetcher, logger: logger}
}

// Path returns the canonical cache location for a track's audio file.
func (c *AcquisitionCache) Path(trackID string) string {
	return filepath.Join(c.dir, trackID+"."+c.format)
}

// Acquire returns a local encoded audio file for the track, fetching via the
// acquisition collaborator on a cache miss.
//
// A track the collaborator cannot locate surfaces [shared.ErrTrackNotFound];
// other fetch failures wrap [shared.ErrAcquisition]. Both are recoverable per
// track: the caller excludes the track from this run and retries next run.
func (c *AcquisitionCache) Acquire(ctx context.Context, track models.Track) (string, error) {
	path := c.Path(track.ID)
	if _, err := os.Stat(path); err == nil {
		c.logger.Debug("acquisition cache hit", "track", track.ID, "path", path)
		return path, nil
	}

	staging := filepath.Join(c.dir, ".staging", track.ID)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAcquisition, err)
	}
	defer os.RemoveAll(staging)

	c.logger.Info("fetching audio", "track", track.ID, "title", track.Label())
	fetched, err := c.fetcher.Fetch(ctx, track, staging, c.format)
	if err != nil {
		if errors.Is(err, shared.ErrTrackNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", shared.ErrAcquisition, err)
	}

	if err := os.Rename(fetched, path); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrAcquisition, err)
	}
	return path, nil
}

// Remove deletes the cached file for a track. Missing files are not an error.
func (c *AcquisitionCache) Remove(trackID string) error {
	err := os.Remove(c.Path(trackID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
