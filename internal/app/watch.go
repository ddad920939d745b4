package app

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 200 * time.Millisecond

// watchConfig calls regenerate after the file at path changes, until ctx is
// done. The parent directory is watched so editors that replace the file by
// rename are still seen.
func watchConfig(ctx context.Context, path string, logger *slog.Logger, regenerate func()) {
	if logger == nil {
		logger = slog.Default()
	}
	if regenerate == nil {
		return
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("watch_disabled", slog.Any("err", err))
		return
	}
	defer w.Close()

	base := filepath.Base(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		logger.Warn("watch_disabled", slog.Any("err", err))
		return
	}
	logger.Info("watching_config", slog.String("path", path))

	// coalesce bursts of editor events into one regeneration
	timer := time.NewTimer(watchDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			timer.Reset(watchDebounce)
			pending = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("watch_error", slog.Any("err", err))
		case <-pending:
			pending = nil
			logger.Info("config_changed", slog.String("path", path))
			regenerate()
		}
	}
}
