package tasks

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/desertthunder/cardsync/internal/models"
	"github.com/desertthunder/cardsync/internal/shared"
	tu "github.com/desertthunder/cardsync/internal/testing"
)

func testTrack(id string) models.Track {
	return models.Track{
		ID:         id,
		Title:      "Track " + id,
		Artist:     "Artist",
		DurationMS: 180000,
		URL:        "https://open.spotify.com/track/" + id,
	}
}

func playlistProvider(playlists map[string]*models.Playlist) *tu.MockProvider {
	return &tu.MockProvider{
		PlaylistFunc: func(ctx context.Context, playlistID string) (*models.Playlist, error) {
			pl, ok := playlists[playlistID]
			if !ok {
				return nil, errors.New("not found")
			}
			return pl, nil
		},
	}
}

func TestResolvePlaylists(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("MergeDedupesFirstOccurrence", func(t *testing.T) {
		provider := playlistProvider(map[string]*models.Playlist{
			"p1": {PlaylistID: "p1", SnapshotID: "s1", Tracks: []models.Track{testTrack("A"), testTrack("B")}},
			"p2": {PlaylistID: "p2", SnapshotID: "s2", Tracks: []models.Track{testTrack("B"), testTrack("C")}},
		})
		mappings := []models.PlaylistMapping{{PlaylistID: "p1"}, {PlaylistID: "p2"}}

		resolved, err := ResolvePlaylists(context.Background(), provider, logger, mappings)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		ids := resolved.TrackIDs()
		want := []string{"A", "B", "C"}
		if len(ids) != len(want) {
			t.Fatalf("expected %v, got %v", want, ids)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Errorf("position %d: expected %s, got %s", i, want[i], ids[i])
			}
		}
		if resolved.Fingerprint != models.Fingerprint([]string{"s1", "s2"}) {
			t.Errorf("unexpected fingerprint: %s", resolved.Fingerprint)
		}
	})

	t.Run("CoverArtFromFirstWithArtwork", func(t *testing.T) {
		provider := playlistProvider(map[string]*models.Playlist{
			"p1": {PlaylistID: "p1", SnapshotID: "s1"},
			"p2": {PlaylistID: "p2", SnapshotID: "s2", CoverArtURL: "https://img.example.com/p2.jpg"},
			"p3": {PlaylistID: "p3", SnapshotID: "s3", CoverArtURL: "https://img.example.com/p3.jpg"},
		})
		mappings := []models.PlaylistMapping{{PlaylistID: "p1"}, {PlaylistID: "p2"}, {PlaylistID: "p3"}}

		resolved, err := ResolvePlaylists(context.Background(), provider, logger, mappings)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resolved.CoverArtURL != "https://img.example.com/p2.jpg" {
			t.Errorf("expected first playlist with artwork to win, got %s", resolved.CoverArtURL)
		}
	})

	t.Run("PartialFailureNonFatal", func(t *testing.T) {
		provider := playlistProvider(map[string]*models.Playlist{
			"p1": {PlaylistID: "p1", SnapshotID: "s1", Tracks: []models.Track{testTrack("A")}},
		})
		mappings := []models.PlaylistMapping{{PlaylistID: "p1"}, {PlaylistID: "gone"}}

		resolved, err := ResolvePlaylists(context.Background(), provider, logger, mappings)
		if err != nil {
			t.Fatalf("expected partial failure to be non-fatal: %v", err)
		}
		if len(resolved.Failures) != 1 || resolved.Failures[0].PlaylistID != "gone" {
			t.Errorf("failure not recorded: %v", resolved.Failures)
		}
		if len(resolved.Tracks) != 1 {
			t.Errorf("surviving playlist not resolved: %v", resolved.TrackIDs())
		}
		// fingerprint reflects only the resolved playlists
		if resolved.Fingerprint != models.Fingerprint([]string{"s1"}) {
			t.Errorf("unexpected fingerprint: %s", resolved.Fingerprint)
		}
	})

	t.Run("AllFailuresAbortCard", func(t *testing.T) {
		provider := playlistProvider(nil)
		mappings := []models.PlaylistMapping{{PlaylistID: "p1"}, {PlaylistID: "p2"}}

		_, err := ResolvePlaylists(context.Background(), provider, logger, mappings)
		if !errors.Is(err, shared.ErrSyncFailed) {
			t.Fatalf("expected ErrSyncFailed, got %v", err)
		}
	})
}

func TestComputeDiff(t *testing.T) {
	t.Run("AddedAndRemoved", func(t *testing.T) {
		prev := &models.CardState{TrackIDs: []string{"A", "B", "C"}}
		tracks := []models.Track{testTrack("B"), testTrack("C"), testTrack("D")}

		diff := ComputeDiff(prev, tracks)
		if len(diff.Added) != 1 || diff.Added[0] != "D" {
			t.Errorf("expected added={D}, got %v", diff.Added)
		}
		if len(diff.Removed) != 1 || diff.Removed[0] != "A" {
			t.Errorf("expected removed={A}, got %v", diff.Removed)
		}
	})

	t.Run("NilStateEverythingAdded", func(t *testing.T) {
		tracks := []models.Track{testTrack("A"), testTrack("B")}

		diff := ComputeDiff(nil, tracks)
		if len(diff.Added) != 2 {
			t.Errorf("expected all tracks added, got %v", diff.Added)
		}
		if len(diff.Removed) != 0 {
			t.Errorf("expected no removals, got %v", diff.Removed)
		}
	})

	t.Run("NoChange", func(t *testing.T) {
		prev := &models.CardState{TrackIDs: []string{"A", "B"}}
		tracks := []models.Track{testTrack("A"), testTrack("B")}

		diff := ComputeDiff(prev, tracks)
		if len(diff.Added) != 0 || len(diff.Removed) != 0 {
			t.Errorf("expected empty diff, got +%v -%v", diff.Added, diff.Removed)
		}
	})

	t.Run("AddedPreservesResolvedOrder", func(t *testing.T) {
		prev := &models.CardState{TrackIDs: []string{"B"}}
		tracks := []models.Track{testTrack("Z"), testTrack("B"), testTrack("A")}

		diff := ComputeDiff(prev, tracks)
		if len(diff.Added) != 2 || diff.Added[0] != "Z" || diff.Added[1] != "A" {
			t.Errorf("expected added in resolved order [Z A], got %v", diff.Added)
		}
	})
}
