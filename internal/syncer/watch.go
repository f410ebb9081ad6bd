package syncer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces the burst of events most editors emit per save.
const debounceDelay = 300 * time.Millisecond

// Watch runs an fsnotify watcher on the docs root and re-publishes Markdown
// files as they change, until ctx is cancelled. Publishes are gated on a
// content checksum so editor touch events do not trigger duplicate writes.
// Deletions are ignored: the publisher never removes remote pages.
func (s *Syncer) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	root := s.store.Root()
	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	// Seed checksums so the initial state does not re-publish.
	seen := make(map[string]string)
	if metas, listErr := s.store.List(""); listErr == nil {
		for _, m := range metas {
			seen[m.Path] = m.Checksum
		}
	}

	s.logger.Info("watcher: started", slog.String("root", root))

	pending := make(map[string]struct{})
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	scheduleFlush := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounceDelay)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounceDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			s.logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			for rel := range pending {
				delete(pending, rel)
				s.publishChanged(ctx, rel, seen)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			// New directories join the watch list.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						s.logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				pending[rel] = struct{}{}
				scheduleFlush()
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(seen, rel)
				attrs := []any{slog.String("path", rel)}
				if s.journal != nil {
					if id, idErr := s.journal.LastPageID(rel); idErr == nil && id != "" {
						attrs = append(attrs, slog.String("page_id", id))
					}
				}
				s.logger.Info("watcher: file removed locally, remote page untouched", attrs...)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// publishChanged re-publishes one document if its content actually changed.
// The checksum is recorded only after a non-failed outcome, so saving the same
// content again after a transient remote failure still retries.
func (s *Syncer) publishChanged(ctx context.Context, rel string, seen map[string]string) {
	data, err := s.store.Read(rel)
	if err != nil {
		s.logger.Warn("watcher: read failed",
			slog.String("path", rel),
			slog.String("error", err.Error()))
		return
	}
	cs, changed := contentChanged(seen[rel], data)
	if !changed {
		s.logger.Debug("watcher: unchanged, skipping", slog.String("path", rel))
		return
	}

	res := s.SyncFile(ctx, rel)
	s.logResult(res)
	if res.Outcome != OutcomeFailed {
		seen[rel] = cs
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
