// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/cardsync/internal/models"
	"github.com/desertthunder/cardsync/internal/services"
)

// MockProvider is a configurable test double for [services.Provider].
// Nil funcs return zero values.
type MockProvider struct {
	SnapshotFunc func(ctx context.Context, playlistID string) (string, error)
	PlaylistFunc func(ctx context.Context, playlistID string) (*models.Playlist, error)
	MetadataFunc func(ctx context.Context, playlistID string) (*services.PlaylistMetadata, error)

	SnapshotCalls int
	MetadataCalls int
	PlaylistCalls int
}

func (m *MockProvider) GetSnapshotID(ctx context.Context, playlistID string) (string, error) {
	m.SnapshotCalls++
	if m.SnapshotFunc == nil {
		return "", nil
	}
	return m.SnapshotFunc(ctx, playlistID)
}

func (m *MockProvider) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	m.PlaylistCalls++
	if m.PlaylistFunc == nil {
		return nil, fmt.Errorf("no playlist configured for %s", playlistID)
	}
	return m.PlaylistFunc(ctx, playlistID)
}

func (m *MockProvider) GetPlaylistMetadata(ctx context.Context, playlistID string) (*services.PlaylistMetadata, error) {
	m.MetadataCalls++
	if m.MetadataFunc == nil {
		return &services.PlaylistMetadata{Reachable: true}, nil
	}
	return m.MetadataFunc(ctx, playlistID)
}

// MockPlatform is a configurable test double for [services.Platform].
// Call counters track the publication pipeline's network behavior.
type MockPlatform struct {
	ListCardsFunc     func(ctx context.Context) ([]models.Card, error)
	GetCardFunc       func(ctx context.Context, cardID string) (*models.Card, error)
	UploadTargetFunc  func(ctx context.Context, checksum, filename string) (*services.UploadTarget, error)
	UploadAudioFunc   func(ctx context.Context, uploadURL, path string) error
	PollFunc          func(ctx context.Context, uploadID string) (*services.TranscodeStatus, error)
	UploadImageFunc   func(ctx context.Context, imageURL string) (string, error)
	UploadCoverFunc   func(ctx context.Context, imageURL string) (string, error)
	UpdateContentFunc func(ctx context.Context, content *models.CardContent) error

	PresignCalls int
	UploadCalls  int
	PollCalls    int
	ImageCalls   int
	CoverCalls   int
	UpdateCalls  int

	// UpdatedContent records every card content push, newest last.
	UpdatedContent []*models.CardContent
}

func (m *MockPlatform) ListCards(ctx context.Context) ([]models.Card, error) {
	if m.ListCardsFunc == nil {
		return nil, nil
	}
	return m.ListCardsFunc(ctx)
}

func (m *MockPlatform) GetCard(ctx context.Context, cardID string) (*models.Card, error) {
	if m.GetCardFunc == nil {
		return nil, errors.New("card not found")
	}
	return m.GetCardFunc(ctx, cardID)
}

func (m *MockPlatform) RequestUploadTarget(ctx context.Context, checksum, filename string) (*services.UploadTarget, error) {
	m.PresignCalls++
	if m.UploadTargetFunc == nil {
		return &services.UploadTarget{UploadURL: "https://uploads.example.com/" + checksum, UploadID: "upload-" + checksum}, nil
	}
	return m.UploadTargetFunc(ctx, checksum, filename)
}

func (m *MockPlatform) UploadAudio(ctx context.Context, uploadURL, path string) error {
	m.UploadCalls++
	if m.UploadAudioFunc == nil {
		return nil
	}
	return m.UploadAudioFunc(ctx, uploadURL, path)
}

func (m *MockPlatform) PollTranscode(ctx context.Context, uploadID string) (*services.TranscodeStatus, error) {
	m.PollCalls++
	if m.PollFunc == nil {
		return &services.TranscodeStatus{State: services.TranscodeDone, MediaID: "media-" + uploadID, Checksum: "sum-" + uploadID}, nil
	}
	return m.PollFunc(ctx, uploadID)
}

func (m *MockPlatform) UploadImage(ctx context.Context, imageURL string) (string, error) {
	m.ImageCalls++
	if m.UploadImageFunc == nil {
		return "icon-" + imageURL, nil
	}
	return m.UploadImageFunc(ctx, imageURL)
}

func (m *MockPlatform) UploadCoverImage(ctx context.Context, imageURL string) (string, error) {
	m.CoverCalls++
	if m.UploadCoverFunc == nil {
		return "https://media.example/cover/" + imageURL, nil
	}
	return m.UploadCoverFunc(ctx, imageURL)
}

func (m *MockPlatform) UpdateCardContent(ctx context.Context, content *models.CardContent) error {
	m.UpdateCalls++
	m.UpdatedContent = append(m.UpdatedContent, content)
	if m.UpdateContentFunc == nil {
		return nil
	}
	return m.UpdateContentFunc(ctx, content)
}

// MockFetcher is a test double for [services.Fetcher].
type MockFetcher struct {
	FetchFunc func(ctx context.Context, track models.Track, destDir, format string) (string, error)

	FetchCalls int
}

func (m *MockFetcher) Fetch(ctx context.Context, track models.Track, destDir, format string) (string, error) {
	m.FetchCalls++
	if m.FetchFunc == nil {
		return "", errors.New("no fetch configured")
	}
	return m.FetchFunc(ctx, track, destDir, format)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (FWriter) Write(p []byte) (int, error) {
	return 0, errors.New("write failed")
}
