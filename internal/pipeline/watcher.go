package pipeline

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/veleth/ansuz/internal/storage"
)

// debounceWindow batches bursts of editor writes into one sync pass.
const debounceWindow = 2 * time.Second

// Watch starts an fsnotify watcher on the vault root and schedules a
// changed-files-only sync whenever a .md file inside a configured folder
// is created or written. It blocks until ctx is cancelled.
//
// New directories created at runtime are added to the watch list.
func (p *Pipeline) Watch(ctx context.Context, vaultRoot string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, vaultRoot); err != nil {
		return err
	}

	p.logger.Info("watcher: started", slog.String("root", vaultRoot))

	var syncTimer *time.Timer
	var syncCh <-chan time.Time

	scheduleSync := func() {
		if syncTimer == nil {
			syncTimer = time.NewTimer(debounceWindow)
			syncCh = syncTimer.C
		} else {
			syncTimer.Reset(debounceWindow)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if syncTimer != nil {
				syncTimer.Stop()
			}
			p.logger.Info("watcher: stopped")
			return nil

		case <-syncCh:
			p.runChanged(ctx)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						p.logger.Warn("watcher: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			if !strings.HasSuffix(absPath, ".md") {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}

			rel, relErr := filepath.Rel(vaultRoot, absPath)
			if relErr != nil {
				continue
			}
			if !p.inScope(filepath.ToSlash(rel)) {
				continue
			}
			p.logger.Debug("watcher: change detected", slog.String("path", rel))
			scheduleSync()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// runChanged performs a debounced sync limited to files the ledger has
// not seen at their current checksum.
func (p *Pipeline) runChanged(ctx context.Context) {
	report, err := p.run(ctx, true)
	if err != nil {
		p.logger.Warn("watcher: sync failed", slog.String("error", err.Error()))
		return
	}
	p.logger.Info("watcher: sync complete",
		slog.Int("created", report.Created),
		slog.Int("updated", report.Updated),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed))
}

// inScope reports whether a vault-relative path falls under any
// configured folder prefix.
func (p *Pipeline) inScope(rel string) bool {
	for _, folder := range p.opts.Folders {
		if storage.MatchesPrefix(rel, folder) {
			return true
		}
	}
	return false
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
