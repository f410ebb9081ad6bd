// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/starford/ansuz/internal/confluence"
	"github.com/starford/ansuz/internal/journal"
	"github.com/starford/ansuz/internal/storage"
	"github.com/starford/ansuz/internal/syncer"
)

// newLogger initializes the structured JSON logger. Logs go to stderr so the
// run summary owns stdout.
func newLogger(cfg *Config) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// buildSyncer wires the storage provider, the remote client, and the optional
// journal into a Syncer. The returned closer releases the journal handle.
func buildSyncer(cfg *Config, logger *slog.Logger) (*syncer.Syncer, storage.Provider, func(), error) {
	store, err := storage.NewFS(cfg.Sync.DocsDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init storage: %w", err)
	}

	client := confluence.New(cfg.Confluence.BaseURL, cfg.Confluence.Username, cfg.Confluence.APIToken)

	sync := syncer.New(store, client, syncer.Defaults{
		SpaceKey: cfg.Sync.SpaceKey,
		ParentID: cfg.Sync.ParentID,
	}, logger)

	closer := func() {}
	if cfg.Journal.Enabled() {
		db, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("init journal: %w", err)
		}
		sync.AttachJournal(db)
		closer = func() { _ = db.Close() }
	}

	return sync, store, closer, nil
}

// Run performs one sync run (and keeps watching when requested) with the
// given options. It returns a non-nil error when any document failed or was
// skipped, so the process exits non-zero.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{stdout: os.Stdout}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config
	logger := newLogger(cfg)

	logger.Info("Configuration loaded",
		slog.String("base_url", cfg.Confluence.BaseURL),
		slog.String("username", cfg.Confluence.Username),
		slog.String("docs_dir", cfg.Sync.DocsDir),
		slog.String("space_key", cfg.Sync.SpaceKey),
		slog.String("log_level", cfg.App.LogLevel.String()))

	sync, _, closeJournal, err := buildSyncer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeJournal()

	summary, err := sync.Run(ctx)
	if err != nil {
		return err
	}
	printSummary(app.stdout, summary)

	if app.watch {
		if err := runWatch(ctx, sync, logger); err != nil {
			return err
		}
		return nil
	}

	if !summary.OK() {
		return fmt.Errorf("%d of %d document(s) did not succeed", summary.Skipped+summary.Failed, summary.Total())
	}
	return nil
}

// runWatch blocks until a shutdown signal or watcher error.
func runWatch(ctx context.Context, sync *syncer.Syncer, logger *slog.Logger) error {
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(watchCtx)

	g.Go(func() error {
		return sync.Watch(gCtx)
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
			cancel()
		case <-gCtx.Done():
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Watch error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Watcher stopped successfully")
	return nil
}

// printSummary writes the per-run tally to w.
func printSummary(w io.Writer, s *syncer.Summary) {
	line := "============================================================"
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "Summary")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "Created: %d\n", s.Created)
	fmt.Fprintf(w, "Updated: %d\n", s.Updated)
	fmt.Fprintf(w, "Skipped: %d\n", s.Skipped)
	fmt.Fprintf(w, "Failed:  %d\n", s.Failed)
	fmt.Fprintf(w, "Total:   %d\n", s.Total())
}
