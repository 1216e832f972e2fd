package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cardsync/internal/models"
	"github.com/desertthunder/cardsync/internal/services"
	"github.com/desertthunder/cardsync/internal/shared"
)

// SyncOptions controls one orchestrator invocation.
type SyncOptions struct {
	DryRun bool // perform every read and computation, mutate nothing
	Force  bool // bypass the snapshot short-circuit; caches still apply
}

// CardStates is the persisted per-card sync state.
type CardStates interface {
	Get(cardID string) (*models.CardState, error)
	Upsert(state *models.CardState) error
}

// RunLog is the append-only sync run history.
type RunLog interface {
	Append(run *models.SyncRun) error
}

// Orchestrator defines the card reconciliation operations.
type Orchestrator interface {
	// SyncAll reconciles every card in the account library, strictly
	// sequentially, and returns the run report.
	SyncAll(ctx context.Context, progress chan<- ProgressUpdate, opts SyncOptions) (*models.SyncRun, error)
}

// CardEngine implements Orchestrator.
type CardEngine struct {
	provider  services.Provider
	platform  services.Platform
	acquirer  *AcquisitionCache
	publisher *Publisher
	states    CardStates
	runs      RunLog
	logger    *log.Logger
	cleanup   bool
}

// EngineConfig carries the collaborators a CardEngine is built from.
type EngineConfig struct {
	Provider  services.Provider
	Platform  services.Platform
	Acquirer  *AcquisitionCache
	Publisher *Publisher
	States    CardStates
	Runs      RunLog
	Logger    *log.Logger

	// CleanupDownloads removes the local audio file after its publication is
	// confirmed. The reuse cache keeps the remote id either way.
	CleanupDownloads bool
}

// NewCardEngine creates a CardEngine from its collaborators.
func NewCardEngine(cfg EngineConfig) *CardEngine {
	return &CardEngine{
		provider:  cfg.Provider,
		platform:  cfg.Platform,
		acquirer:  cfg.Acquirer,
		publisher: cfg.Publisher,
		states:    cfg.States,
		runs:      cfg.Runs,
		logger:    cfg.Logger,
		cleanup:   cfg.CleanupDownloads,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *CardEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// SyncAll lists the account's cards and reconciles each one. Card failures
// are contained: a failed card is recorded in the run report and the next
// card proceeds. In dry-run mode the report is computed but nothing is
// persisted or mutated remotely.
func (e *CardEngine) SyncAll(ctx context.Context, progress chan<- ProgressUpdate, opts SyncOptions) (*models.SyncRun, error) {
	cards, err := e.platform.ListCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	e.sendProgress(progress, listCardsUpdate(len(cards)))

	run := &models.SyncRun{
		ID:        shared.GenerateID(),
		StartedAt: time.Now().UTC(),
	}

	for i, card := range cards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		e.sendProgress(progress, cardStartUpdate(i+1, len(cards), card))
		outcome := e.syncCard(ctx, progress, card, opts)
		e.sendProgress(progress, cardDoneUpdate(outcome))

		run.CardsProcessed++
		run.TracksAdded += outcome.Added
		run.TracksRemoved += outcome.Removed
		run.Outcomes = append(run.Outcomes, outcome)
	}

	if !opts.DryRun {
		if err := e.runs.Append(run); err != nil {
			return run, fmt.Errorf("failed to record sync run: %w", err)
		}
	}
	return run, nil
}

// syncCard runs the full reconciliation sequence for one card. It never
// returns an error; failures become the card's outcome.
func (e *CardEngine) syncCard(ctx context.Context, progress chan<- ProgressUpdate, card models.Card, opts SyncOptions) models.CardOutcome {
	logger := shared.WithLogger(e.logger, "card", card.ID)
	outcome := models.CardOutcome{CardID: card.ID, Title: card.Title}

	mappings := DiscoverPlaylists(ctx, e.provider, logger, card.Description)
	if len(mappings) == 0 {
		logger.Debug("no resolvable playlists, skipping")
		outcome.Status = models.OutcomeSkippedNoMapping
		return outcome
	}

	prev, err := e.states.Get(card.ID)
	if err != nil {
		return failedOutcome(outcome, err)
	}

	// The short-circuit only applies after a clean sync; a previous partial
	// failure leaves its tracks eligible for retry even under the same
	// fingerprint.
	shortCircuitable := prev != nil && prev.Outcome == models.OutcomeSynced && !opts.Force

	// Cheap path: compare snapshot ids alone before fetching any track list.
	if shortCircuitable {
		if fp, ok := SnapshotFingerprint(ctx, e.provider, logger, mappings); ok && fp == prev.Fingerprint {
			logger.Debug("snapshot fingerprint unchanged, skipping", "fingerprint", fp)
			outcome.Status = models.OutcomeSkippedUnchanged
			return outcome
		}
	}

	e.sendProgress(progress, resolveUpdate(card, len(mappings)))
	resolved, err := ResolvePlaylists(ctx, e.provider, logger, mappings)
	if err != nil {
		return failedOutcome(outcome, err)
	}

	// An inconclusive snapshot check can still land on an unchanged fingerprint once
	// the full resolve completes.
	if shortCircuitable && prev.Fingerprint == resolved.Fingerprint {
		logger.Debug("fingerprint unchanged, skipping", "fingerprint", resolved.Fingerprint)
		outcome.Status = models.OutcomeSkippedUnchanged
		return outcome
	}

	diff := ComputeDiff(prev, resolved.Tracks)
	e.sendProgress(progress, diffUpdate(card, len(diff.Added), len(diff.Removed)))

	if opts.DryRun {
		logger.Info("dry run, would sync", "added", len(diff.Added), "removed", len(diff.Removed))
		outcome.Status = models.OutcomeSynced
		outcome.Added = len(diff.Added)
		outcome.Removed = len(diff.Removed)
		return outcome
	}

	addedSet := make(map[string]bool, len(diff.Added))
	for _, id := range diff.Added {
		addedSet[id] = true
	}

	var chapters []models.Chapter
	var syncedIDs []string
	trackFailures := 0

	for i, track := range resolved.Tracks {
		e.sendProgress(progress, publishTrackUpdate(i+1, len(resolved.Tracks), track))

		mediaID, err := e.publishTrack(ctx, logger, track)
		if err != nil {
			logger.Warn("track failed, will retry next run", "track", track.ID, "error", err)
			trackFailures++
			continue
		}

		chapter := models.Chapter{
			Title:    track.Label(),
			TrackID:  track.ID,
			MediaID:  mediaID,
			Duration: track.DurationMS / 1000,
		}
		if track.ArtworkURL != "" {
			iconID, err := e.publisher.ResolveImage(ctx, track.ArtworkURL)
			if err != nil {
				logger.Warn("icon upload failed", "track", track.ID, "error", err)
			} else {
				chapter.IconMediaID = iconID
			}
		}

		chapters = append(chapters, chapter)
		syncedIDs = append(syncedIDs, track.ID)
		if addedSet[track.ID] {
			outcome.Added++
		}
	}

	if len(chapters) == 0 {
		return failedOutcome(outcome, fmt.Errorf("%w: all %d tracks failed", shared.ErrSyncFailed, trackFailures))
	}

	content := &models.CardContent{
		CardID:   card.ID,
		Title:    card.Title,
		Chapters: chapters,
	}
	if resolved.CoverArtURL != "" {
		coverRef, err := e.publisher.ResolveCover(ctx, resolved.CoverArtURL)
		if err != nil {
			logger.Warn("cover upload failed", "url", resolved.CoverArtURL, "error", err)
		} else {
			content.CoverRef = coverRef
		}
	}

	if err := e.platform.UpdateCardContent(ctx, content); err != nil {
		return failedOutcome(outcome, fmt.Errorf("%w: %v", shared.ErrSyncFailed, err))
	}

	outcome.Removed = len(diff.Removed)
	outcome.Status = models.OutcomeSynced
	if trackFailures > 0 {
		outcome.Status = models.OutcomeFailed
		outcome.Reason = fmt.Sprintf("%d of %d tracks failed", trackFailures, len(resolved.Tracks))
	}

	state := &models.CardState{
		CardID:       card.ID,
		Fingerprint:  resolved.Fingerprint,
		TrackIDs:     syncedIDs,
		LastSyncedAt: time.Now().UTC(),
		Outcome:      outcome.Status,
	}
	if err := e.states.Upsert(state); err != nil {
		return failedOutcome(outcome, err)
	}

	logger.Info("card synced", "added", outcome.Added, "removed", outcome.Removed, "chapters", len(chapters))
	return outcome
}

// publishTrack resolves a track to its platform media id: reuse cache first,
// then acquire locally and run the publication pipeline.
func (e *CardEngine) publishTrack(ctx context.Context, logger *log.Logger, track models.Track) (string, error) {
	if mediaID, err := e.publisher.Cached(track.ID); err != nil {
		return "", err
	} else if mediaID != "" {
		return mediaID, nil
	}

	path, err := e.acquirer.Acquire(ctx, track)
	if err != nil {
		return "", err
	}

	mediaID, err := e.publisher.Publish(ctx, track, path)
	if err != nil {
		return "", err
	}

	if e.cleanup {
		if err := e.acquirer.Remove(track.ID); err != nil {
			logger.Warn("failed to clean up download", "track", track.ID, "error", err)
		}
	}
	return mediaID, nil
}

func failedOutcome(outcome models.CardOutcome, err error) models.CardOutcome {
	outcome.Status = models.OutcomeFailed
	outcome.Reason = err.Error()
	return outcome
}
