package ui

import (
	"fmt"
	"strings"

	"github.com/desertthunder/cardsync/internal/models"
	"github.com/desertthunder/cardsync/internal/tasks"
)

// RenderRunReport formats one sync run's per-card outcomes.
func RenderRunReport(run *models.SyncRun, dryRun bool) string {
	var b strings.Builder

	title := "Sync complete"
	if dryRun {
		title = "Dry run (no changes made)"
	}
	b.WriteString(styles.title.Render(title))
	b.WriteString("\n")

	for _, outcome := range run.Outcomes {
		b.WriteString(renderOutcome(outcome))
		b.WriteString("\n")
	}

	b.WriteString(styles.help.Render(fmt.Sprintf(
		"%d cards processed, %d tracks added, %d removed",
		run.CardsProcessed, run.TracksAdded, run.TracksRemoved,
	)))
	b.WriteString("\n")
	return b.String()
}

func renderOutcome(outcome models.CardOutcome) string {
	switch outcome.Status {
	case models.OutcomeSynced:
		return fmt.Sprintf("  %s %s (+%d -%d)",
			styles.ok.Render("✓"), outcome.Title, outcome.Added, outcome.Removed)
	case models.OutcomeFailed:
		return fmt.Sprintf("  %s %s: %s",
			styles.err.Render("✗"), outcome.Title, outcome.Reason)
	case models.OutcomeSkippedUnchanged:
		return fmt.Sprintf("  %s %s (unchanged)",
			styles.help.Render("-"), outcome.Title)
	default:
		return fmt.Sprintf("  %s %s (no playlists)",
			styles.help.Render("-"), outcome.Title)
	}
}

// RenderHistory formats recent sync runs for the status command.
func RenderHistory(runs []models.SyncRun) string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Recent sync runs"))
	b.WriteString("\n")

	if len(runs) == 0 {
		b.WriteString(styles.help.Render("No runs recorded yet."))
		b.WriteString("\n")
		return b.String()
	}

	for _, run := range runs {
		failed := 0
		for _, outcome := range run.Outcomes {
			if outcome.Status == models.OutcomeFailed {
				failed++
			}
		}

		line := fmt.Sprintf("  %s  %d cards  +%d -%d",
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.CardsProcessed, run.TracksAdded, run.TracksRemoved)
		if failed > 0 {
			line += "  " + styles.err.Render(fmt.Sprintf("%d failed", failed))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderCards formats the card library, marking cards whose description
// embeds playlist links.
func RenderCards(cards []models.Card) string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Cards"))
	b.WriteString("\n")

	if len(cards) == 0 {
		b.WriteString(styles.help.Render("No cards in library."))
		b.WriteString("\n")
		return b.String()
	}

	for _, card := range cards {
		marker := styles.help.Render(" ")
		if n := len(tasks.ExtractPlaylistMappings(card.Description)); n > 0 {
			marker = styles.ok.Render(fmt.Sprintf("♪%d", n))
		}
		b.WriteString(fmt.Sprintf("  %s  %s  %s\n", marker, card.ID, card.Title))
	}
	return b.String()
}

// RenderProgress formats one engine progress update as a single line.
func RenderProgress(update tasks.ProgressUpdate) string {
	return fmt.Sprintf("%s %s", styles.warn.Render("»"), update.Message)
}
