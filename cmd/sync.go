package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/cardsync/internal/models"
	"github.com/desertthunder/cardsync/internal/shared"
	"github.com/desertthunder/cardsync/internal/tasks"
	"github.com/desertthunder/cardsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// Sync runs the reconciliation engine over every card in the account library.
//
// Exit codes: 0 on success, 1 when some cards failed, 2 when every card failed.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))
	account := cmd.String("account")
	opts := tasks.SyncOptions{
		DryRun: cmd.Bool("dry-run"),
		Force:  cmd.Bool("force"),
	}

	provider, err := r.provider(ctx, r.config)
	if err != nil {
		return err
	}
	platform, err := r.platform(ctx, r.config, account)
	if err != nil {
		return err
	}

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	cacheDir := shared.ExpandPath(r.config.Download.CacheDir)
	acquirer := tasks.NewAcquisitionCache(cacheDir, r.config.Download.Format, r.fetcher(r.config), r.logger)
	publisher := tasks.NewPublisher(platform, store.MediaCache, r.config.Sync.MaxRetries, tasks.RetryPolicy{
		Interval:    r.config.Sync.PollInterval(),
		MaxAttempts: r.config.Sync.TranscodePollMaxAttempts,
	}, r.logger)

	engine := tasks.NewCardEngine(tasks.EngineConfig{
		Provider:         provider,
		Platform:         platform,
		Acquirer:         acquirer,
		Publisher:        publisher,
		States:           store.CardStates,
		Runs:             store.SyncRuns,
		Logger:           r.logger,
		CleanupDownloads: r.config.Download.Cleanup,
	})

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.writePlain("%s\n", ui.RenderProgress(update))
		}
	}()

	run, err := engine.SyncAll(ctx, progress, opts)
	close(progress)
	<-done
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	r.writePlain("%s", ui.RenderRunReport(run, opts.DryRun))
	return exitCodeForRun(run)
}

// exitCodeForRun maps a run's outcomes onto the process exit code.
func exitCodeForRun(run *models.SyncRun) error {
	failed := 0
	for _, outcome := range run.Outcomes {
		if outcome.Status == models.OutcomeFailed {
			failed++
		}
	}

	switch {
	case failed == 0:
		return nil
	case failed == len(run.Outcomes):
		return cli.Exit(fmt.Sprintf("all %d cards failed", failed), 2)
	default:
		return cli.Exit(fmt.Sprintf("%d of %d cards failed", failed, len(run.Outcomes)), 1)
	}
}

// Status prints recent sync run history.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	store, db, err := r.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := store.SyncRuns.Recent(int(cmd.Int("limit")))
	if err != nil {
		return fmt.Errorf("failed to read run history: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(runs, true)
	}
	return r.writePlain("%s", ui.RenderHistory(runs))
}
