package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/journal"
	"github.com/starford/ansuz/internal/mcpserver"
	"github.com/starford/ansuz/internal/preview"
	"github.com/starford/ansuz/internal/storage"
)

// Preview starts the local preview HTTP server and blocks until shutdown.
func Preview(ctx context.Context, cfg *Config) error {
	logger := newLogger(cfg)

	store, err := storage.NewFS(cfg.Sync.DocsDir)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Preview.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: preview.NewRouter(store),
	}

	logger.Info("Preview server starting", slog.String("address", addr), slog.String("docs_dir", store.Root()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Preview server error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Preview server stopped successfully")
	return nil
}

// History prints the most recent sync runs from the journal.
func History(_ context.Context, cfg *Config, limit int) error {
	if !cfg.Journal.Enabled() {
		return fmt.Errorf("journal is not configured (set journal.path)")
	}

	db, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.RecentRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no sync runs recorded yet")
		return nil
	}

	fmt.Printf("%-6s %-20s %8s %8s %8s %8s\n", "RUN", "STARTED", "CREATED", "UPDATED", "SKIPPED", "FAILED")
	for _, r := range runs {
		fmt.Printf("%-6d %-20s %8d %8d %8d %8d\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime),
			r.Created, r.Updated, r.Skipped, r.Failed)
	}

	// Detail the latest run.
	latest := runs[0]
	records, err := db.RunResults(latest.ID)
	if err != nil {
		return err
	}
	if len(records) > 0 {
		fmt.Printf("\nDocuments in run %d:\n", latest.ID)
		for _, rec := range records {
			line := fmt.Sprintf("  [%s] %s", rec.Outcome, rec.Path)
			if rec.PageID != "" {
				line += fmt.Sprintf(" (page %s, v%d)", rec.PageID, rec.Version)
			}
			if rec.Error != "" {
				line += ": " + rec.Error
			}
			fmt.Println(line)
		}
	}
	return nil
}

// MCP runs the MCP server on stdio until the client disconnects.
func MCP(_ context.Context, cfg *Config) error {
	logger := newLogger(cfg)

	sync, store, closeJournal, err := buildSyncer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeJournal()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(store, sync).ServeStdio()
}
