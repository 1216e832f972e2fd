// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// syncCommand runs the card reconciliation engine.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync cards with their linked playlists",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Compute and report changes without mutating anything",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Re-sync cards even when their playlists are unchanged",
			},
			&cli.StringFlag{
				Name:    "account",
				Aliases: []string{"a"},
				Usage:   "Named account to sync",
				Value:   "default",
			},
		},
		Action: r.Sync,
	}
}

// statusCommand shows recent sync run history.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show recent sync runs",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 10,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "yoto",
				Usage: "Authenticate a Yoto account via the device-code flow",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthYoto,
			},
			{
				Name:   "status",
				Usage:  "List authenticated accounts and token state",
				Action: r.AuthStatus,
			},
			{
				Name:  "clear",
				Usage: "Remove a saved account's tokens",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Action: r.AuthClear,
			},
		},
	}
}

// cardsCommand handles card library operations
func cardsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cards",
		Usage: "Card library operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List MYO cards, marking those linked to playlists",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "account",
						Aliases: []string{"a"},
						Usage:   "Named account",
						Value:   "default",
					},
				},
				Action: r.CardsList,
			},
			{
				Name:  "show",
				Usage: "Show one card as JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "account",
						Aliases: []string{"a"},
						Usage:   "Named account",
						Value:   "default",
					},
				},
				Action: r.CardsShow,
			},
		},
	}
}

// configCommand handles configuration file management
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration file management",
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Write a starter config file",
				Flags:  []cli.Flag{configFlag()},
				Action: r.ConfigInit,
			},
		},
	}
}

// setupCommand handles setup operations for the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
		},
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, statusCommand, authCommand, cardsCommand, configCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}
