package services

import (
	"context"

	"github.com/desertthunder/cardsync/internal/models"
)

// PlaylistMetadata is the lightweight reachability check result for one playlist.
type PlaylistMetadata struct {
	Name        string
	CoverArtURL string
	Reachable   bool
}

// Provider defines the playlist provider collaborator.
type Provider interface {
	// GetSnapshotID fetches the playlist's current opaque version token.
	GetSnapshotID(ctx context.Context, playlistID string) (string, error)

	// GetPlaylist fetches the snapshot token and full track list for a playlist.
	// Pagination is handled internally and exposed as one finite sequence.
	GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error)

	// GetPlaylistMetadata performs an existence/reachability check. Unreachable
	// or private playlists report Reachable=false rather than an error.
	GetPlaylistMetadata(ctx context.Context, playlistID string) (*PlaylistMetadata, error)
}

// UploadTarget is the platform's response to an upload request.
// An empty UploadURL with AlreadyExists set means the file is already on the
// platform by checksum and no bytes need to be transmitted.
type UploadTarget struct {
	AlreadyExists bool
	UploadURL     string
	UploadID      string
}

// TranscodeState is one poll response from the platform's transcode endpoint.
type TranscodeState string

const (
	TranscodePending TranscodeState = "pending"
	TranscodeDone    TranscodeState = "done"
	TranscodeFailed  TranscodeState = "failed"
)

// TranscodeStatus carries the outcome of a single transcode poll.
type TranscodeStatus struct {
	State    TranscodeState
	MediaID  string // transcoded audio identity, set when State is done
	Checksum string // confirmed remote checksum, set when State is done
	Duration int    // seconds
	FileSize int
}

// Platform defines the device-content platform collaborator.
type Platform interface {
	// ListCards returns the user-created cards in the account library.
	ListCards(ctx context.Context) ([]models.Card, error)

	// GetCard returns a single card with its current description.
	GetCard(ctx context.Context, cardID string) (*models.Card, error)

	// RequestUploadTarget asks for a presigned upload URL for a file with the
	// given checksum. The platform may report the file already exists.
	RequestUploadTarget(ctx context.Context, checksum, filename string) (*UploadTarget, error)

	// UploadAudio transmits the local file to the presigned target.
	UploadAudio(ctx context.Context, uploadURL, path string) error

	// PollTranscode checks the transcode status of one upload. Each call is a
	// single poll; the caller owns the retry loop.
	PollTranscode(ctx context.Context, uploadID string) (*TranscodeStatus, error)

	// UploadImage ingests a chapter icon by URL and returns the platform
	// media id, referenced as yoto:#<id> from chapter displays.
	UploadImage(ctx context.Context, imageURL string) (string, error)

	// UploadCoverImage ingests cover art by URL through the platform's cover
	// path and returns the media URL referenced from the card metadata.
	UploadCoverImage(ctx context.Context, imageURL string) (string, error)

	// UpdateCardContent replaces a card's full chapter list and cover.
	UpdateCardContent(ctx context.Context, content *models.CardContent) error
}

// Fetcher defines the audio acquisition collaborator.
type Fetcher interface {
	// Fetch obtains an encoded audio file for the track and returns its path.
	// Returns an error wrapping shared.ErrTrackNotFound when the track cannot
	// be located upstream.
	Fetch(ctx context.Context, track models.Track, destDir, format string) (string, error)
}
