package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/cardsync/internal/models"
)

func TestRenderRunReport(t *testing.T) {
	run := &models.SyncRun{
		CardsProcessed: 3,
		TracksAdded:    4,
		TracksRemoved:  1,
		Outcomes: []models.CardOutcome{
			{CardID: "c1", Title: "Road Trip", Status: models.OutcomeSynced, Added: 4, Removed: 1},
			{CardID: "c2", Title: "Bedtime", Status: models.OutcomeSkippedUnchanged},
			{CardID: "c3", Title: "Broken", Status: models.OutcomeFailed, Reason: "all 2 playlists failed to resolve"},
		},
	}

	out := RenderRunReport(run, false)
	for _, want := range []string{"Road Trip", "(+4 -1)", "Bedtime", "(unchanged)", "Broken", "playlists failed", "3 cards processed"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	dry := RenderRunReport(run, true)
	if !strings.Contains(dry, "Dry run") {
		t.Errorf("dry-run header missing:\n%s", dry)
	}
}

func TestRenderHistory(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		out := RenderHistory(nil)
		if !strings.Contains(out, "No runs recorded") {
			t.Errorf("empty history message missing:\n%s", out)
		}
	})

	t.Run("WithFailures", func(t *testing.T) {
		runs := []models.SyncRun{
			{
				StartedAt:      time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC),
				CardsProcessed: 2,
				TracksAdded:    5,
				Outcomes: []models.CardOutcome{
					{Status: models.OutcomeSynced},
					{Status: models.OutcomeFailed, Reason: "boom"},
				},
			},
		}

		out := RenderHistory(runs)
		if !strings.Contains(out, "2 cards") || !strings.Contains(out, "1 failed") {
			t.Errorf("history summary wrong:\n%s", out)
		}
	})
}

func TestRenderCards(t *testing.T) {
	cards := []models.Card{
		{ID: "c1", Title: "Linked", Description: "https://open.spotify.com/playlist/abc123"},
		{ID: "c2", Title: "Plain", Description: "nothing"},
	}

	out := RenderCards(cards)
	if !strings.Contains(out, "♪1") {
		t.Errorf("playlist marker missing:\n%s", out)
	}
	if !strings.Contains(out, "c2") || !strings.Contains(out, "Plain") {
		t.Errorf("unlinked card missing:\n%s", out)
	}
}
