package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/colortrack/internal/colour"
	"github.com/jmylchreest/colortrack/internal/config"
	"github.com/jmylchreest/colortrack/internal/db"
	"github.com/jmylchreest/colortrack/internal/favorites"
	"github.com/jmylchreest/colortrack/internal/history"
	"github.com/jmylchreest/colortrack/internal/logging"
	"github.com/jmylchreest/colortrack/internal/session"
	"github.com/jmylchreest/colortrack/internal/store"
)

// app is the set of services a command runs against.
type app struct {
	cfg    config.Config
	logger hclog.Logger

	db        *sql.DB
	sessions  *store.SessionRepository
	favRepo   *store.FavoriteRepository
	history   *history.Service
	favorites *favorites.Service
	machine   *session.Machine
}

// loadConfig resolves the configuration with command-line overrides
// applied last.
func loadConfig(opts *globalOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}

	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
		cfg.DBPath = ""
		cfg.ImageDir = ""
		cfg, err = config.WithDerivedPaths(cfg)
		if err != nil {
			return config.Config{}, err
		}
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	return cfg, cfg.Validate()
}

func newLogger(cmd *cobra.Command, opts *globalOptions, cfg config.Config) hclog.Logger {
	var output io.Writer = cmd.ErrOrStderr()
	return logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Verbose: opts.verbose,
		Quiet:   opts.quiet,
		JSON:    cfg.LogJSON,
		Output:  output,
	})
}

// openApp loads configuration, opens the database and wires the services.
func openApp(ctx context.Context, cmd *cobra.Command, opts *globalOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cmd, opts, cfg)

	paths, err := config.ResolvePaths(cfg)
	if err != nil {
		return nil, err
	}
	logger.Debug("resolved paths", "db", paths.DBPath, "images", paths.ImageDir)

	database, err := db.Bootstrap(ctx, paths.DBPath, logger.Named("db"))
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		db:       database,
		sessions: store.NewSessionRepository(database),
		favRepo:  store.NewFavoriteRepository(database).WithLogger(logger),
	}

	a.history, err = history.NewService(history.Options{
		Sessions:     a.sessions,
		ImageDir:     paths.ImageDir,
		DeleteImages: cfg.DeleteImages,
		Logger:       logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.favorites, err = favorites.NewService(ctx, a.favRepo, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

// startMachine creates the session machine for extractor. The app closes
// it, which also waits for pending history writes.
func (a *app) startMachine(extractor colour.ExtractorConfig) (*session.Machine, error) {
	if err := extractor.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	pipeline, err := session.NewPipeline(extractor)
	if err != nil {
		return nil, err
	}
	if a.machine != nil {
		a.machine.Close()
	}
	a.machine = session.NewMachine(session.Options{
		Ranker:   pipeline,
		Recorder: a.history,
		Logger:   a.logger,
	})
	return a.machine, nil
}

// Close waits for pending history writes and releases the database.
func (a *app) Close() error {
	if a.machine != nil {
		a.machine.Close()
	}
	if a.favorites != nil {
		a.favorites.Close()
	}
	if a.favRepo != nil {
		a.favRepo.Close()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// withApp runs fn against a freshly opened app.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx, cmd, opts)
	if err != nil {
		return err
	}

	runErr := fn(ctx, a)
	closeErr := a.Close()
	return errors.Join(runErr, closeErr)
}
