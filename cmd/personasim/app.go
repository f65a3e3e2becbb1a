package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/personasim"
	"github.com/hupe1980/personasim/config"
	"github.com/hupe1980/personasim/internal/metrics"
	"github.com/hupe1980/personasim/logging"
	"github.com/hupe1980/personasim/persona"
	"github.com/hupe1980/personasim/results"
)

// app bundles the dependencies shared by the commands.
type app struct {
	logger   logging.Logger
	metrics  *metrics.Collector
	personas persona.Store
	agents   *config.Registry
	results  results.Store

	goalConfig     *config.GoalGeneratorConfig
	userConfig     *config.VirtualUserConfig
	rateLimit      float64
	sessionTimeout time.Duration

	closers []func() error
}

func newLogger(cmd *cobra.Command) logging.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	format, _ := cmd.Flags().GetString("log-format")

	cfg := logging.DefaultLoggerConfig()
	if l, ok := logging.ParseLevel(level); ok {
		cfg.Level = l
	}
	cfg.Format = format
	cfg.Output = cmd.ErrOrStderr()
	cfg.Component = "personasim"
	return logging.NewLogger(cfg)
}

// openPersonaStore opens the SQLite store when --db is set, otherwise loads
// --personas-dir into memory (a missing directory yields an empty store).
func openPersonaStore(ctx context.Context, cmd *cobra.Command) (persona.Store, func() error, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath != "" {
		s, err := persona.NewSQLiteStore(ctx, dbPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}

	dir, _ := cmd.Flags().GetString("personas-dir")
	s := persona.NewInMemoryStore()
	if _, err := s.ImportDir(ctx, dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, err
	}
	return s, func() error { return nil }, nil
}

func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	a := &app{
		logger:  newLogger(cmd),
		metrics: metrics.NewCollector(""),
	}

	personas, closeFn, err := openPersonaStore(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("opening persona store: %w", err)
	}
	a.personas = personas
	a.closers = append(a.closers, closeFn)

	a.agents = config.NewRegistry()
	agentDir, _ := cmd.Flags().GetString("agent-dir")
	n, err := a.agents.LoadDir(agentDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		a.close()
		return nil, err
	}
	a.logger.Debug("loaded agent configs", "dir", agentDir, "count", n)

	settings := config.Settings{}
	settings.GoalGeneratorConfig, _ = cmd.Flags().GetString("goal-config")
	settings.VirtualUserConfig, _ = cmd.Flags().GetString("user-config")
	if a.goalConfig, err = settings.GoalGenerator(); err != nil {
		a.close()
		return nil, err
	}
	if a.userConfig, err = settings.VirtualUser(); err != nil {
		a.close()
		return nil, err
	}

	if dir, _ := cmd.Flags().GetString("results-dir"); dir != "" {
		fileStore, err := results.NewFileStore(dir)
		if err != nil {
			a.close()
			return nil, err
		}
		a.results = fileStore
	} else {
		a.results = results.NewInMemoryStore()
	}

	a.rateLimit, _ = cmd.Flags().GetFloat64("rate-limit")
	a.sessionTimeout, _ = cmd.Flags().GetDuration("session-timeout")
	return a, nil
}

func (a *app) simulator(optFns ...func(o *personasim.Options)) (*personasim.Simulator, error) {
	base := func(o *personasim.Options) {
		o.Personas = a.personas
		o.Agents = a.agents
		o.GoalGenerator = a.goalConfig
		o.VirtualUser = a.userConfig
		o.RateLimit = a.rateLimit
		o.SessionTimeout = a.sessionTimeout
		o.Results = a.results
		o.Logger = a.logger
		o.Metrics = a.metrics
	}
	return personasim.New(append([]func(o *personasim.Options){base}, optFns...)...)
}

func (a *app) close() {
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}
}
