package tasks

import (
	"context"
	"regexp"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cardsync/internal/models"
	"github.com/desertthunder/cardsync/internal/services"
)

var playlistURLPattern = regexp.MustCompile(`https?://open\.spotify\.com/playlist/([A-Za-z0-9]+)`)

// ExtractPlaylistMappings scans free text for playlist URLs and returns one
// mapping per distinct playlist id, ordered by first appearance.
//
// Pure function over the description; reachability is checked separately by
// [DiscoverPlaylists].
func ExtractPlaylistMappings(description string) []models.PlaylistMapping {
	matches := playlistURLPattern.FindAllStringSubmatch(description, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var mappings []models.PlaylistMapping
	for _, m := range matches {
		id := m[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		mappings = append(mappings, models.PlaylistMapping{PlaylistID: id, URL: m[0]})
	}
	return mappings
}

// DiscoverPlaylists extracts playlist references from a card description and
// validates each against the provider. Unreachable or private playlists are
// dropped with a warning; they never fail the card. A card with zero
// resolvable playlists returns an empty slice.
func DiscoverPlaylists(ctx context.Context, provider services.Provider, logger *log.Logger, description string) []models.PlaylistMapping {
	candidates := ExtractPlaylistMappings(description)

	var validated []models.PlaylistMapping
	for _, mapping := range candidates {
		meta, err := provider.GetPlaylistMetadata(ctx, mapping.PlaylistID)
		if err != nil {
			logger.Warn("dropping playlist, metadata check failed", "playlist", mapping.PlaylistID, "error", err)
			continue
		}
		if !meta.Reachable {
			logger.Warn("dropping unreachable playlist", "playlist", mapping.PlaylistID)
			continue
		}

		mapping.Name = meta.Name
		mapping.CoverArtURL = meta.CoverArtURL
		validated = append(validated, mapping)
	}
	return validated
}
