package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/syncforge/themesync/internal/config"
	"github.com/syncforge/themesync/internal/control"
	"github.com/syncforge/themesync/internal/db"
	"github.com/syncforge/themesync/internal/sync"
)

const shutdownTimeout = 5 * time.Second

// runDaemon starts the sync engine and the control plane and blocks until
// the context is cancelled.
func runDaemon(ctx context.Context, cfg *config.Config) error {
	boardDB, err := db.NewSqliteDb(db.WithPath(cfg.BoardDB))
	if err != nil {
		return err
	}
	defer boardDB.Close()

	engine, err := sync.NewEngine(cfg, boardDB)
	if err != nil {
		return err
	}

	if err := engine.Start(ctx); err != nil {
		return err
	}

	ctl := control.NewServer(cfg.ControlAddr, engine)

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := ctl.Start(ctx); err != nil {
			return fmt.Errorf("failed to start control plane: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("shutting down")

		engine.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return ctl.Stop(shutdownCtx)
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("daemon failure", "error", err)
		return err
	}

	slog.Info("daemon stopped")
	return nil
}
