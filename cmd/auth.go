package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/cardsync/internal/services"
	"github.com/desertthunder/cardsync/internal/shared"
	"github.com/urfave/cli/v3"
)

const yotoAuthBase = "https://login.yotoplay.com"

// AuthYoto runs the device-code flow for a named Yoto account and saves the
// resulting tokens.
func (r *Runner) AuthYoto(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd.String("config"))

	account := cmd.StringArg("name")
	if account == "" {
		account = "default"
	}
	clientID := r.config.Credentials.Yoto.ClientID
	if clientID == "" {
		return fmt.Errorf("%w: yoto client_id is required, run 'cardsync config init'", shared.ErrMissingCredentials)
	}

	code, err := services.RequestDeviceCode(ctx, yotoAuthBase, clientID)
	if err != nil {
		return err
	}

	r.writePlain("Visit %s\n", code.VerificationURI)
	r.writePlain("Enter code: %s\n", code.UserCode)
	if code.VerificationURIComplete != "" {
		r.writePlain("Or open %s\n", code.VerificationURIComplete)
	}
	r.writePlain("Waiting for authorization...\n")

	pollCtx, cancel := context.WithTimeout(ctx, time.Duration(code.ExpiresIn)*time.Second)
	defer cancel()

	tokens, err := services.PollForToken(pollCtx, yotoAuthBase, clientID, code.DeviceCode, time.Duration(code.Interval)*time.Second)
	if err != nil {
		return err
	}

	if err := services.SaveTokens(tokens, account); err != nil {
		return err
	}

	r.logger.Info("tokens saved", "account", account, "path", services.TokenPath(account))
	return r.writePlain("✓ Authenticated as %q\n", account)
}

// AuthStatus lists authenticated accounts and whether their tokens are current.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	accounts, err := services.ListAccounts()
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		return r.writePlain("No authenticated accounts. Run 'cardsync auth yoto' first.\n")
	}

	for _, account := range accounts {
		tokens, err := services.LoadTokens(account)
		if err != nil {
			r.writePlain("✗ %s: %v\n", account, err)
			continue
		}

		if tokens.IsExpired() {
			r.writePlain("✗ %s: token expired (refreshed on next use)\n", account)
		} else {
			remaining := time.Until(time.Unix(tokens.ExpiresAt, 0)).Round(time.Minute)
			r.writePlain("✓ %s: valid for %s\n", account, remaining)
		}
	}
	return nil
}

// AuthClear removes a saved account's tokens.
func (r *Runner) AuthClear(ctx context.Context, cmd *cli.Command) error {
	account := cmd.StringArg("name")
	if account == "" {
		account = "default"
	}

	if err := services.ClearTokens(account); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return r.writePlain("✓ Cleared tokens for %q\n", account)
}
