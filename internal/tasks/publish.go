package tasks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cardsync/internal/models"
	"github.com/desertthunder/cardsync/internal/services"
	"github.com/desertthunder/cardsync/internal/shared"
)

// MediaCache is the persisted mapping from content-addressable keys to
// platform media ids, shared across cards.
type MediaCache interface {
	Get(key string) (*models.MediaCacheEntry, error)
	Upsert(entry *models.MediaCacheEntry) error
}

// RetryPolicy bounds the transcode polling loop.
type RetryPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// Publisher drives the upload/transcode state machine for one audio file:
// PENDING → PRESIGNED → UPLOADED → TRANSCODING → CONFIRMED, or FAILED from
// any non-terminal state.
//
// Rate-limit backoff happens inside the platform client and never counts
// against the retry budgets here.
type Publisher struct {
	platform   services.Platform
	cache      MediaCache
	maxRetries int
	poll       RetryPolicy
	logger     *log.Logger
	sleep      func(time.Duration) // injectable for tests
}

// NewPublisher creates a Publisher. maxRetries bounds transient-failure
// retries on the presign and upload steps; poll bounds transcode polling.
func NewPublisher(platform services.Platform, cache MediaCache, maxRetries int, poll RetryPolicy, logger *log.Logger) *Publisher {
	return &Publisher{
		platform:   platform,
		cache:      cache,
		maxRetries: maxRetries,
		poll:       poll,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// Cached returns the reuse-cache media id for a track's audio, or "" on miss.
func (p *Publisher) Cached(trackID string) (string, error) {
	entry, err := p.cache.Get(models.AudioCacheKey(trackID))
	if err != nil {
		return "", err
	}
	if entry == nil {
		return "", nil
	}
	return entry.MediaID, nil
}

// Publish uploads a track's local audio file and waits for the platform to
// confirm the transcode, returning the confirmed media id.
//
// A reuse-cache hit, or a platform "already exists" response for the file's
// checksum, short-circuits without transmitting any bytes. Either way the
// reuse cache ends up holding the confirmed id for cross-card reuse.
func (p *Publisher) Publish(ctx context.Context, track models.Track, path string) (string, error) {
	if mediaID, err := p.Cached(track.ID); err != nil {
		return "", err
	} else if mediaID != "" {
		p.logger.Debug("reuse cache hit", "track", track.ID, "media", mediaID)
		return mediaID, nil
	}

	checksum, err := fileChecksum(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrUploadFailed, err)
	}

	var target *services.UploadTarget
	err = p.withRetries(func() error {
		t, err := p.platform.RequestUploadTarget(ctx, checksum, filepath.Base(path))
		if err == nil {
			target = t
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: presign: %v", shared.ErrUploadFailed, err)
	}

	if target.AlreadyExists {
		p.logger.Info("file already on platform", "track", track.ID, "checksum", checksum)
	} else {
		err = p.withRetries(func() error {
			return p.platform.UploadAudio(ctx, target.UploadURL, path)
		})
		if err != nil {
			return "", fmt.Errorf("%w: %v", shared.ErrUploadFailed, err)
		}
	}

	status, err := p.awaitTranscode(ctx, target.UploadID)
	if err != nil {
		return "", err
	}

	entry := &models.MediaCacheEntry{
		Key:       models.AudioCacheKey(track.ID),
		MediaID:   status.MediaID,
		Checksum:  status.Checksum,
		UpdatedAt: time.Now().UTC(),
	}
	if err := p.cache.Upsert(entry); err != nil {
		return "", err
	}

	p.logger.Info("publish confirmed", "track", track.ID, "media", status.MediaID)
	return status.MediaID, nil
}

// ResolveImage returns the platform media id for a chapter icon URL,
// uploading it on a cache miss.
func (p *Publisher) ResolveImage(ctx context.Context, url string) (string, error) {
	return p.resolveCached(ctx, models.ImageCacheKey(url), url, p.platform.UploadImage)
}

// ResolveCover returns the platform media URL for a card's cover art,
// uploading through the cover path on a cache miss. Covers and icons cache
// separately: the platform hands back different reference types for each.
func (p *Publisher) ResolveCover(ctx context.Context, url string) (string, error) {
	return p.resolveCached(ctx, models.CoverCacheKey(url), url, p.platform.UploadCoverImage)
}

func (p *Publisher) resolveCached(ctx context.Context, key, url string, upload func(context.Context, string) (string, error)) (string, error) {
	entry, err := p.cache.Get(key)
	if err != nil {
		return "", err
	}
	if entry != nil {
		return entry.MediaID, nil
	}

	mediaID, err := upload(ctx, url)
	if err != nil {
		return "", err
	}

	if err := p.cache.Upsert(&models.MediaCacheEntry{Key: key, MediaID: mediaID, UpdatedAt: time.Now().UTC()}); err != nil {
		return "", err
	}
	return mediaID, nil
}

// awaitTranscode polls at a fixed interval until the platform reports a
// terminal state or the attempt budget runs out. A timeout is its own
// failure, distinct from a platform-reported transcode failure.
func (p *Publisher) awaitTranscode(ctx context.Context, uploadID string) (*services.TranscodeStatus, error) {
	for attempt := 0; attempt < p.poll.MaxAttempts; attempt++ {
		status, err := p.platform.PollTranscode(ctx, uploadID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrTranscodeFailed, err)
		}

		switch status.State {
		case services.TranscodeDone:
			return status, nil
		case services.TranscodeFailed:
			return nil, fmt.Errorf("%w: upload %s", shared.ErrTranscodeFailed, uploadID)
		}

		p.sleep(p.poll.Interval)
	}
	return nil, fmt.Errorf("%w: upload %s after %d attempts", shared.ErrTranscodeTimeout, uploadID, p.poll.MaxAttempts)
}

// withRetries runs op, retrying transient API failures up to the configured
// attempt count with exponential backoff. Permanent failures surface
// immediately.
func (p *Publisher) withRetries(op func() error) error {
	var err error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		if attempt > 0 {
			p.sleep(time.Second << (attempt - 1))
		}

		err = op()
		if err == nil {
			return nil
		}

		var apiErr *shared.APIError
		if errors.As(err, &apiErr) && apiErr.Kind == shared.KindTransient {
			p.logger.Warn("transient failure, retrying", "attempt", attempt+1, "error", err)
			continue
		}
		return err
	}
	return err
}

func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
