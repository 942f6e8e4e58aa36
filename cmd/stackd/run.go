package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/secfunded/stackd/internal/config"
	"github.com/secfunded/stackd/internal/logger"
	"github.com/secfunded/stackd/internal/metrics"
	"github.com/secfunded/stackd/internal/server"
	"github.com/secfunded/stackd/internal/service"
	"github.com/secfunded/stackd/internal/store"
	"github.com/secfunded/stackd/internal/store/sqlite"
	"github.com/secfunded/stackd/internal/supervisor"
)

func runStack(globalFlags *GlobalFlags, runFlags *RunFlags) error {
	fc, err := config.Load(globalFlags.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.NewSupervisorLogger(globalFlags.Debug)

	e, err := fc.BuildEnv()
	if err != nil {
		return fmt.Errorf("build environment: %w", err)
	}
	warnings := config.Preflight(e)
	for _, w := range warnings {
		log.Warn("preflight", "warning", w)
	}
	if runFlags.StrictPreflight && len(warnings) > 0 {
		return fmt.Errorf("preflight failed: %d missing environment variable(s)", len(warnings))
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	var journal store.Journal
	if fc.Store.Path != "" {
		db, err := sqlite.New(fc.Store.Path)
		if err != nil {
			log.Warn("event journal disabled", "err", err)
		} else if err := db.EnsureSchema(context.Background()); err != nil {
			log.Warn("event journal disabled", "err", err)
			_ = db.Close()
		} else {
			journal = db
			defer func() { _ = db.Close() }()
		}
	}

	beSpec := fc.Spec("backend")
	feSpec := fc.Spec("frontend")
	sup := supervisor.New(supervisor.Config{
		Backend: supervisor.Slot{
			Runner:      service.New(beSpec),
			Probe:       fc.ProbeFor("backend"),
			MaxRestarts: beSpec.MaxRestarts,
			Env:         e.Merge(beSpec.Env),
		},
		Frontend: supervisor.Slot{
			Runner:      service.New(feSpec),
			Probe:       fc.ProbeFor("frontend"),
			MaxRestarts: feSpec.MaxRestarts,
			Env:         e.Merge(feSpec.Env),
		},
		Tick:     fc.Monitor.Tick,
		StopWait: fc.Monitor.StopWait,
		Logger:   log,
		Journal:  journal,
	})

	if fc.Server.Enabled {
		admin := server.NewServer(fc.Server.Listen, sup, journal)
		log.Info("admin endpoint listening", "addr", fc.Server.Listen)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = admin.Shutdown(shutdownCtx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("supervising stack",
		"backend", beSpec.Command,
		"frontend", feSpec.Command,
		"tick", fc.Monitor.Tick)
	return sup.Run(ctx)
}
