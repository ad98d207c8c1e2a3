package main

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"discosync/internal/cache"
	"discosync/internal/discogs"
	"discosync/internal/formatter"
	"discosync/internal/match"
	"discosync/internal/models"
	"discosync/internal/ratelimit"
	"discosync/internal/repositories"
	"discosync/internal/shared"
	"discosync/internal/tasks"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// API-backed services are built lazily on first use so commands that never
// touch the API (auth login, cache maintenance) work without credentials.
type Runner struct {
	config    *shared.Config
	logger    *log.Logger
	output    io.Writer
	credsPath string
	envToken  string
	threshold float64

	client      *discogs.Client
	engine      *tasks.Engine
	market      *tasks.MarketplaceEngine
	lists       *cache.Store
	marketStore *cache.Store
	resolutions *repositories.ResolutionRepository
	db          *sql.DB
}

// RunnerOpts contains configuration options for creating a Runner.
// Pre-built engines and stores override lazy construction, mainly for tests.
type RunnerOpts struct {
	Config          *shared.Config
	Logger          *log.Logger
	Output          io.Writer
	CredentialsPath string
	EnvToken        string
	Client          *discogs.Client
	Engine          *tasks.Engine
	Market          *tasks.MarketplaceEngine
	Lists           *cache.Store
	MarketStore     *cache.Store
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
	if opts.CredentialsPath == "" {
		opts.CredentialsPath = shared.CredentialsPath()
	}

	return &Runner{
		config:      opts.Config,
		logger:      opts.Logger,
		output:      opts.Output,
		credsPath:   opts.CredentialsPath,
		envToken:    opts.EnvToken,
		threshold:   opts.Config.Sync.Threshold,
		client:      opts.Client,
		engine:      opts.Engine,
		market:      opts.Market,
		lists:       opts.Lists,
		marketStore: opts.MarketStore,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		authCommand, whoamiCommand, wantlistCommand, collectionCommand, marketplaceCommand, cacheCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// cacheDir resolves the configured cache directory.
func (r *Runner) cacheDir() string {
	if r.config.Cache.Dir != "" {
		return r.config.Cache.Dir
	}
	return filepath.Join(shared.ConfigDir(), "cache")
}

// databasePath resolves the configured resolution database path.
func (r *Runner) databasePath() string {
	if r.config.Database.Path != "" {
		return r.config.Database.Path
	}
	return filepath.Join(shared.ConfigDir(), "resolve.db")
}

func hours(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}

// token resolves the API token: environment override first, then the stored
// credentials.
func (r *Runner) token() (string, error) {
	if r.envToken != "" {
		return r.envToken, nil
	}
	creds, err := shared.LoadCredentials(r.credsPath)
	if err != nil {
		return "", err
	}
	return creds.Token, nil
}

// applyThreshold picks up a per-command threshold override.
func (r *Runner) applyThreshold(cmd *cli.Command) {
	if cmd != nil && cmd.IsSet("threshold") {
		r.threshold = cmd.Float("threshold")
	}
}

// ensureStores builds the cache stores. Safe without credentials.
// Marketplace entries live in their own subdirectory so the short TTL
// never expires list entries.
func (r *Runner) ensureStores() {
	if r.lists == nil {
		r.lists = cache.NewStore(r.cacheDir(), hours(r.config.Cache.ListTTLHours), r.logger)
	}
	if r.marketStore == nil {
		r.marketStore = cache.NewStore(filepath.Join(r.cacheDir(), "marketplace"),
			hours(r.config.Cache.MarketplaceTTLHours), r.logger)
	}
}

// ensureClient builds the API client from stored credentials.
func (r *Runner) ensureClient() error {
	if r.client != nil {
		return nil
	}
	token, err := r.token()
	if err != nil {
		return err
	}
	r.client = discogs.NewClient(token, ratelimit.New(), r.logger)
	return nil
}

// ensureResolutions opens the resolution database. Failures degrade to
// running without the store.
func (r *Runner) ensureResolutions() {
	if r.resolutions != nil || r.db != nil {
		return
	}
	db, err := shared.NewDatabase(r.databasePath())
	if err != nil {
		r.logger.Warn("resolution database unavailable", "err", err)
		return
	}
	if err := repositories.Migrate(db); err != nil {
		r.logger.Warn("resolution database migration failed", "err", err)
		db.Close()
		return
	}
	r.db = db
	r.resolutions = repositories.NewResolutionRepository(db)
}

// ensureEngines builds the sync and marketplace engines on first use.
func (r *Runner) ensureEngines(cmd *cli.Command) error {
	r.applyThreshold(cmd)
	if r.engine != nil && r.market != nil {
		return nil
	}
	if err := r.ensureClient(); err != nil {
		return err
	}
	r.ensureStores()
	r.ensureResolutions()

	resolver := match.NewEngine(r.client, r.threshold, r.logger)
	if r.engine == nil {
		r.engine = tasks.NewEngine(r.client, resolver, r.lists, r.logger)
	}
	if r.market == nil {
		r.market = tasks.NewMarketplaceEngine(r.client, resolver, r.marketStore, r.resolutions, r.threshold, r.logger)
	}
	return nil
}

// Close releases the resolution database connection.
func (r *Runner) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// progressLogger consumes progress updates on a goroutine, logging each one.
// The returned stop function must be called after the operation finishes.
func (r *Runner) progressLogger() (chan tasks.ProgressUpdate, func()) {
	updates := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		for update := range updates {
			r.logger.Info(update.Message, "phase", update.Phase.String())
		}
		close(done)
	}()
	return updates, func() {
		close(updates)
		<-done
	}
}

func (r *Runner) writeJSON(data any) error {
	output, err := formatter.ToJSON(data)
	if err != nil {
		return err
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

// writeReport renders a sync report and converts its outcome to the process
// exit code: 0 full success, 1 partial, 2 total failure.
func (r *Runner) writeReport(report *models.SyncReport, dryRun, asJSON bool) error {
	if asJSON {
		if err := r.writeJSON(report); err != nil {
			return err
		}
	} else if err := r.writePlain("%s", formatter.RenderReport(report, dryRun)); err != nil {
		return err
	}

	if code := report.ExitCode(); code != 0 {
		return cli.Exit("", code)
	}
	return nil
}
