// Spotify implementation of [Provider]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/desertthunder/cardsync/internal/models"
	"github.com/desertthunder/cardsync/internal/shared"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	trackPageLimit = 100
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int             `json:"duration_ms"`
	ExternalURLs externalURLs    `json:"external_urls"`
}

// SpotifyPlaylistTrack represents a track within a playlist context.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyTrackPage is one page of a playlist's track list.
type SpotifyTrackPage struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	SnapshotID string           `json:"snapshot_id"`
	Public     bool             `json:"public"`
	Images     []SpotifyImage   `json:"images"`
	Tracks     SpotifyTrackPage `json:"tracks"`
}

// SpotifyService implements [Provider] for the Spotify Web API.
//
// Uses the [clientcredentials] flow: playlist reads need no user consent.
type SpotifyService struct {
	config     *clientcredentials.Config
	baseURL    string
	httpClient *http.Client
}

// NewSpotifyService creates a new Spotify provider with the given API credentials.
func NewSpotifyService(clientID, clientSecret string) (*SpotifyService, error) {
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	return &SpotifyService{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     spotifyTokenURL,
		},
		baseURL: spotifyBaseURL,
	}, nil
}

// Authenticate builds the token-refreshing HTTP client from the client-credentials config.
func (s *SpotifyService) Authenticate(ctx context.Context) error {
	if _, err := s.config.Token(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	s.httpClient = s.config.Client(ctx)
	return nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated GET against the Spotify API.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.httpClient == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return shared.NewAPIError(resp.StatusCode, fmt.Sprintf("spotify GET %s: %s", endpoint, strings.TrimSpace(string(body))))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// GetSnapshotID fetches only the playlist's version token.
func (s *SpotifyService) GetSnapshotID(ctx context.Context, playlistID string) (string, error) {
	var response struct {
		SnapshotID string `json:"snapshot_id"`
	}
	endpoint := fmt.Sprintf("/playlists/%s?fields=snapshot_id", playlistID)
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return "", err
	}
	return response.SnapshotID, nil
}

// GetPlaylistMetadata checks a playlist for reachability, name, and cover art.
//
// Permanent API errors (missing, private) report an unreachable playlist
// rather than failing the caller.
func (s *SpotifyService) GetPlaylistMetadata(ctx context.Context, playlistID string) (*PlaylistMetadata, error) {
	var response struct {
		Name   string         `json:"name"`
		Images []SpotifyImage `json:"images"`
	}
	endpoint := fmt.Sprintf("/playlists/%s?fields=name,images", playlistID)
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		var apiErr *shared.APIError
		if errors.As(err, &apiErr) && apiErr.Kind == shared.KindPermanent {
			return &PlaylistMetadata{Reachable: false}, nil
		}
		return nil, err
	}

	meta := &PlaylistMetadata{Name: response.Name, Reachable: true}
	if len(response.Images) > 0 {
		meta.CoverArtURL = response.Images[0].URL
	}
	return meta, nil
}

// GetPlaylist fetches a playlist with its complete, depaginated track list.
func (s *SpotifyService) GetPlaylist(ctx context.Context, playlistID string) (*models.Playlist, error) {
	var sp SpotifyPlaylist
	if err := s.doRequest(ctx, fmt.Sprintf("/playlists/%s", playlistID), &sp); err != nil {
		return nil, err
	}

	playlist := &models.Playlist{
		PlaylistID: sp.ID,
		Name:       sp.Name,
		SnapshotID: sp.SnapshotID,
	}
	if len(sp.Images) > 0 {
		playlist.CoverArtURL = sp.Images[0].URL
	}

	page := sp.Tracks
	playlist.Tracks = appendTracks(playlist.Tracks, page.Items)

	for page.Next != nil {
		// the next offset comes from the page itself, not an assumed page size
		offset := page.Offset + page.Limit
		if page.Limit == 0 {
			offset = page.Offset + len(page.Items)
		}

		endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", playlistID, trackPageLimit, offset)
		page = SpotifyTrackPage{}
		if err := s.doRequest(ctx, endpoint, &page); err != nil {
			return nil, err
		}
		playlist.Tracks = appendTracks(playlist.Tracks, page.Items)
	}

	return playlist, nil
}

// appendTracks converts playlist track items to domain tracks, skipping
// unavailable entries (local files and removed tracks carry no id).
func appendTracks(tracks []models.Track, items []SpotifyPlaylistTrack) []models.Track {
	for _, item := range items {
		t := item.Track
		if t == nil || t.ID == "" {
			continue
		}

		names := make([]string, 0, len(t.Artists))
		for _, artist := range t.Artists {
			names = append(names, artist.Name)
		}

		track := models.Track{
			ID:         t.ID,
			Title:      t.Name,
			Artist:     strings.Join(names, ", "),
			Album:      t.Album.Name,
			DurationMS: t.DurationMS,
			URL:        t.ExternalURLs.Spotify,
		}
		if len(t.Album.Images) > 0 {
			track.ArtworkURL = t.Album.Images[0].URL
		}
		tracks = append(tracks, track)
	}
	return tracks
}
