package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cardsync/internal/repositories"
	"github.com/desertthunder/cardsync/internal/services"
	"github.com/desertthunder/cardsync/internal/shared"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer

	// collaborator factories, replaceable in tests
	platform func(ctx context.Context, config *shared.Config, account string) (services.Platform, error)
	provider func(ctx context.Context, config *shared.Config) (services.Provider, error)
	fetcher  func(config *shared.Config) services.Fetcher
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer

	Platform func(ctx context.Context, config *shared.Config, account string) (services.Platform, error)
	Provider func(ctx context.Context, config *shared.Config) (services.Provider, error)
	Fetcher  func(config *shared.Config) services.Fetcher
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Platform == nil {
		opts.Platform = newYotoPlatform
	}
	if opts.Provider == nil {
		opts.Provider = newSpotifyProvider
	}
	if opts.Fetcher == nil {
		opts.Fetcher = newSpotdlFetcher
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		platform:   opts.Platform,
		provider:   opts.Provider,
		fetcher:    opts.Fetcher,
	}
}

// newYotoPlatform builds the authenticated Yoto client for a named account.
func newYotoPlatform(ctx context.Context, config *shared.Config, account string) (services.Platform, error) {
	tokens, err := services.EnsureValidToken(ctx, config.Credentials.Yoto.ClientID, account)
	if err != nil {
		return nil, err
	}

	return services.NewYotoService(services.YotoOpts{
		Tokens:    tokens,
		ClientID:  config.Credentials.Yoto.ClientID,
		Account:   account,
		RateLimit: config.Sync.RateLimit,
	}), nil
}

// newSpotifyProvider builds the Spotify client and fetches its first access
// token, so a credentials problem fails the command instead of surfacing as
// unreachable playlists later.
func newSpotifyProvider(ctx context.Context, config *shared.Config) (services.Provider, error) {
	creds := config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}

	svc, err := services.NewSpotifyService(creds.ClientID, creds.ClientSecret)
	if err != nil {
		return nil, err
	}
	if err := svc.Authenticate(ctx); err != nil {
		return nil, err
	}
	return svc, nil
}

func newSpotdlFetcher(config *shared.Config) services.Fetcher {
	return services.NewSpotdlFetcher()
}

// reloadConfig swaps in the config file named by the --config flag when it exists.
func (r *Runner) reloadConfig(path string) {
	if path == "" || path == r.configPath {
		return
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		r.logger.Warn("failed to load config, using defaults", "path", path, "error", err)
		return
	}
	r.config = config
	r.configPath = path
}

// openStore opens the configured sqlite database with migrations applied.
func (r *Runner) openStore() (*repositories.Store, *sql.DB, error) {
	path := shared.ExpandPath(r.config.Database.Path)

	db, err := shared.NewDatabase(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repositories.NewStore(db), db, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
