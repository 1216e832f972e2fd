package tasks

import (
	"fmt"

	"github.com/desertthunder/cardsync/internal/models"
)

// ProgressUpdate represents a progress event during a sync run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ListCards Phase = iota
	Discover
	Resolve
	Diff
	Acquire
	Publish
	Reconcile
)

func (p Phase) String() string {
	switch p {
	case ListCards:
		return "list_cards"
	case Discover:
		return "discover"
	case Resolve:
		return "resolve"
	case Diff:
		return "diff"
	case Acquire:
		return "acquire"
	case Publish:
		return "publish"
	case Reconcile:
		return "reconcile"
	default:
		return ""
	}
}

func listCardsUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ListCards,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d cards in library", total),
	}
}

func cardStartUpdate(step, total int, card models.Card) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Discover,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, card.Title),
		Data:    card,
	}
}

func resolveUpdate(card models.Card, playlists int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Resolve,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Resolving %d playlists for %s...", playlists, card.Title),
	}
}

func diffUpdate(card models.Card, added, removed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Diff,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%s: +%d -%d", card.Title, added, removed),
	}
}

func publishTrackUpdate(step, total int, track models.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Publish,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, track.Label()),
	}
}

func cardDoneUpdate(outcome models.CardOutcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reconcile,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%s: %s", outcome.Title, outcome.Status),
		Data:    outcome,
	}
}
