package tasks

import "github.com/desertthunder/cardsync/internal/models"

// TrackDiff is the set difference between the last-synced track ids and the
// freshly resolved track list.
type TrackDiff struct {
	Added   []string // resolved order
	Removed []string // last-synced order
}

// ComputeDiff compares the resolved track list against the previously synced
// track-id set. A nil previous state means everything is new.
//
// The diff drives acquisition only; the chapter list is always re-emitted
// whole in resolver order, never patched.
func ComputeDiff(prev *models.CardState, tracks []models.Track) TrackDiff {
	var prevSet map[string]bool
	if prev != nil {
		prevSet = prev.TrackIDSet()
	}

	var diff TrackDiff
	resolvedSet := make(map[string]bool, len(tracks))
	for _, track := range tracks {
		resolvedSet[track.ID] = true
		if !prevSet[track.ID] {
			diff.Added = append(diff.Added, track.ID)
		}
	}

	if prev != nil {
		for _, id := range prev.TrackIDs {
			if !resolvedSet[id] {
				diff.Removed = append(diff.Removed, id)
			}
		}
	}
	return diff
}
