package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"

	"github.com/runnerr0/focuslens/internal/clock"
	"github.com/runnerr0/focuslens/internal/config"
	"github.com/runnerr0/focuslens/internal/intervention"
	"github.com/runnerr0/focuslens/internal/logging"
	"github.com/runnerr0/focuslens/internal/metrics"
	"github.com/runnerr0/focuslens/internal/monitor"
	"github.com/runnerr0/focuslens/internal/oracle"
	"github.com/runnerr0/focuslens/internal/storage"
)

// app bundles everything a command needs. Tests build one around an
// in-memory store and call a command's executeWithApp directly.
type app struct {
	cfg     *config.Config
	store   *storage.SQLiteStore
	db      *sql.DB
	dbPath  string
	mon     *monitor.Monitor
	logger  hclog.Logger
	metrics metrics.Reporter
	closers []io.Closer
}

// loadConfig reads the config at the --config path, or the default one.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals != nil && globals.Config != "" {
		return config.Load(globals.Config)
	}
	return config.LoadOrCreate()
}

// openOptions adjusts how openApp wires the monitor.
type openOptions struct {
	version  string
	sink     intervention.Sink // nil logs interventions
	logLevel string            // overrides the configured level
}

// openApp loads config, opens the database and builds the monitor.
func openApp(ctx context.Context, globals *GlobalFlags, o openOptions) (*app, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, err
	}

	opts, err := logging.FromConfig(cfg, "focuslens")
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		opts.Level = o.logLevel
	}
	if globals != nil && globals.Verbose {
		opts.Level = "debug"
	}
	logger, logCloser, err := logging.New(opts)
	if err != nil {
		return nil, err
	}

	dbPath, err := cfg.DBPath()
	if err != nil {
		logCloser.Close()
		return nil, err
	}
	store, db, err := storage.Open(ctx, dbPath, cfg.Storage.SQLiteJournalMode)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	otelCfg, err := metrics.LoadConfig()
	if err != nil {
		logger.Warn("ignoring otel settings", "error", err)
	}
	reporter := metrics.New(ctx, otelCfg, o.version, logger.Named("metrics"))

	gen, err := oracle.New(cfg.Oracle)
	if err != nil {
		logger.Warn("text generation disabled", "error", err)
		gen = nil
	}

	a, err := newApp(ctx, cfg, store, db, dbPath, monitor.Deps{
		Store:     store,
		Sink:      o.sink,
		Generator: gen,
		Clock:     clock.System{},
		Metrics:   reporter,
		Logger:    logger,
	})
	if err != nil {
		store.Close()
		db.Close()
		logCloser.Close()
		return nil, err
	}
	a.closers = append(a.closers, logCloser)
	return a, nil
}

// newApp wires a monitor around an already open store.
func newApp(ctx context.Context, cfg *config.Config, store *storage.SQLiteStore, db *sql.DB, dbPath string, deps monitor.Deps) (*app, error) {
	if deps.Logger == nil {
		deps.Logger = hclog.NewNullLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoOp()
	}
	deps.Store = store
	mon, err := monitor.New(ctx, cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("build monitor: %w", err)
	}
	return &app{
		cfg:     cfg,
		store:   store,
		db:      db,
		dbPath:  dbPath,
		mon:     mon,
		logger:  deps.Logger,
		metrics: deps.Metrics,
	}, nil
}

// Close flushes metrics and releases the database and log file.
func (a *app) Close() error {
	if err := a.metrics.Close(context.Background()); err != nil {
		a.logger.Warn("flushing metrics failed", "error", err)
	}
	a.store.Close()
	err := a.db.Close()
	for _, c := range a.closers {
		c.Close()
	}
	return err
}
