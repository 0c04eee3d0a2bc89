package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/seantiz/fam/internal/action"
	"github.com/seantiz/fam/internal/api"
	"github.com/seantiz/fam/internal/config"
	"github.com/seantiz/fam/internal/registry"
	"github.com/seantiz/fam/internal/runner"
	"github.com/seantiz/fam/internal/store"
)

const drainTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("fam: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"max_workers", cfg.MaxWorkers,
		"purge_interval", cfg.PurgeInterval.String(),
		"purge_policy", cfg.PurgePolicy().String(),
	)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	pool := runner.New(cfg.MaxWorkers, logger)

	catalog := action.NewCatalog()
	action.RegisterBuiltins(catalog)

	tasks := registry.New[*action.Manager](pool, action.NewFactory(pool, logger), logger,
		registry.WithPolicy(cfg.PurgePolicy()),
		registry.WithArchiver(db),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tasks.RunPurger(ctx, cfg.PurgeInterval)

	srv := api.NewServer(cfg.ListenAddr, api.Deps{
		Tasks:   tasks,
		Catalog: catalog,
		Source:  db,
		History: db,
		Runner:  pool,
	}, logger)

	runErr := srv.Run()
	cancel()

	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer drainCancel()
	if err := pool.Shutdown(drainCtx); err != nil {
		logger.Warn("runner did not drain", "error", err)
	}
	if released := tasks.ReleaseAll(drainCtx); len(released) > 0 {
		logger.Info("released tasks", "count", len(released))
	}

	if runErr != nil {
		log.Fatalf("server error: %v", runErr)
	}
}
