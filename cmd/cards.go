package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/cardsync/internal/shared"
	"github.com/desertthunder/cardsync/internal/ui"
	"github.com/urfave/cli/v3"
)

// CardsList prints the account's MYO cards, marking those whose description
// links playlists.
func (r *Runner) CardsList(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	platform, err := r.platform(ctx, r.config, cmd.String("account"))
	if err != nil {
		return err
	}

	cards, err := platform.ListCards(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cards: %w", err)
	}

	return r.writePlain("%s", ui.RenderCards(cards))
}

// CardsShow prints one card as JSON.
func (r *Runner) CardsShow(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	cardID := cmd.StringArg("id")
	if cardID == "" {
		return fmt.Errorf("%w: card id is required", shared.ErrCardNotFound)
	}

	platform, err := r.platform(ctx, r.config, cmd.String("account"))
	if err != nil {
		return err
	}

	card, err := platform.GetCard(ctx, cardID)
	if err != nil {
		return fmt.Errorf("failed to get card: %w", err)
	}

	return r.writeJSON(card, true)
}
