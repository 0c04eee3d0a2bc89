// testserver starts a fam API server over in-memory sessions for manual
// end-to-end checks.
// Usage: go run ./cmd/testserver
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/seantiz/fam/internal/action"
	"github.com/seantiz/fam/internal/api"
	"github.com/seantiz/fam/internal/registry"
	"github.com/seantiz/fam/internal/runner"
	"github.com/seantiz/fam/internal/session"
	"github.com/seantiz/fam/internal/store"
)

// stubDelay is how long the "slow" action holds a worker.
const stubDelay = 500 * time.Millisecond

// slowPut stages the item after a fixed delay, rejecting items that
// start with "!".
func slowPut(ctx context.Context, s session.Session, item string) error {
	select {
	case <-time.After(stubDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if strings.HasPrefix(item, "!") {
		return fmt.Errorf("stub rejected item %q", item)
	}
	return s.Put(item, time.Now().UTC().Format(time.RFC3339Nano))
}

func main() {
	addr := ":8080"
	if v := os.Getenv("FAM_LISTEN_ADDR"); v != "" {
		addr = v
	}

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	src := session.NewMemorySource()
	pool := runner.New(runner.DefaultMaxWorkers, logger)

	catalog := action.NewCatalog()
	action.RegisterBuiltins(catalog)
	catalog.Register("slow", slowPut)

	tasks := registry.New[*action.Manager](pool, action.NewFactory(pool, logger), logger,
		registry.WithArchiver(db),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tasks.RunPurger(ctx, 5*time.Second)

	srv := api.NewServer(addr, api.Deps{
		Tasks:   tasks,
		Catalog: catalog,
		Source:  src,
		History: db,
		Runner:  pool,
	}, logger)

	logger.Info("testserver: starting", "addr", addr)
	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
