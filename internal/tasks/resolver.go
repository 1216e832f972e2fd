package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cardsync/internal/models"
	"github.com/desertthunder/cardsync/internal/services"
	"github.com/desertthunder/cardsync/internal/shared"
)

// PlaylistFailure records one playlist that failed to resolve during a card sync.
type PlaylistFailure struct {
	PlaylistID string
	Err        error
}

// ResolvedCard is the merged view of every playlist mapped to one card.
type ResolvedCard struct {
	Mappings    []models.PlaylistMapping // successfully resolved, snapshot ids filled
	Tracks      []models.Track           // deduplicated by track id, first occurrence wins
	CoverArtURL string                   // from the first mapping exposing artwork
	Fingerprint string                   // composite of all resolved snapshot ids
	Failures    []PlaylistFailure
}

// TrackIDs returns the merged track ids in chapter order.
func (r *ResolvedCard) TrackIDs() []string {
	ids := make([]string, len(r.Tracks))
	for i, t := range r.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// SnapshotFingerprint builds the composite fingerprint from snapshot ids
// alone, without fetching any track lists. ok is false when any lookup fails
// or returns an empty id, in which case the caller falls back to a full
// resolve.
func SnapshotFingerprint(ctx context.Context, provider services.Provider, logger *log.Logger, mappings []models.PlaylistMapping) (string, bool) {
	ids := make([]string, 0, len(mappings))
	for _, mapping := range mappings {
		id, err := provider.GetSnapshotID(ctx, mapping.PlaylistID)
		if err != nil || id == "" {
			logger.Debug("snapshot check inconclusive, resolving fully", "playlist", mapping.PlaylistID, "error", err)
			return "", false
		}
		ids = append(ids, id)
	}
	return models.Fingerprint(ids), true
}

// ResolvePlaylists fetches the snapshot token and full track list for every
// mapping and merges them into a single track sequence. Duplicate track ids
// keep their first occurrence, so the earliest playlist's ordering wins.
//
// A single playlist failure is recorded and skipped; the card sync aborts
// only when every mapping fails to resolve.
func ResolvePlaylists(ctx context.Context, provider services.Provider, logger *log.Logger, mappings []models.PlaylistMapping) (*ResolvedCard, error) {
	resolved := &ResolvedCard{}
	seen := make(map[string]bool)
	var snapshotIDs []string

	for _, mapping := range mappings {
		playlist, err := provider.GetPlaylist(ctx, mapping.PlaylistID)
		if err != nil {
			logger.Warn("failed to resolve playlist", "playlist", mapping.PlaylistID, "error", err)
			resolved.Failures = append(resolved.Failures, PlaylistFailure{PlaylistID: mapping.PlaylistID, Err: err})
			continue
		}

		mapping.SnapshotID = playlist.SnapshotID
		if mapping.Name == "" {
			mapping.Name = playlist.Name
		}
		if mapping.CoverArtURL == "" {
			mapping.CoverArtURL = playlist.CoverArtURL
		}
		resolved.Mappings = append(resolved.Mappings, mapping)
		snapshotIDs = append(snapshotIDs, playlist.SnapshotID)

		if resolved.CoverArtURL == "" && mapping.CoverArtURL != "" {
			resolved.CoverArtURL = mapping.CoverArtURL
		}

		for _, track := range playlist.Tracks {
			if seen[track.ID] {
				continue
			}
			seen[track.ID] = true
			resolved.Tracks = append(resolved.Tracks, track)
		}
	}

	if len(resolved.Mappings) == 0 {
		return nil, fmt.Errorf("%w: all %d playlists failed to resolve", shared.ErrSyncFailed, len(mappings))
	}

	resolved.Fingerprint = models.Fingerprint(snapshotIDs)
	return resolved, nil
}
