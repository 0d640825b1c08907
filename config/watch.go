package config

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/Zereker/framesocket"
)

// Watch reloads the file at path whenever it changes and passes every
// successfully parsed result to onChange. A file that fails to parse is
// logged to logger and skipped; a nil logger uses slog.Default.
// Watch blocks until ctx is canceled.
//
// The parent directory is watched rather than the file, so editors that
// replace the file by rename are followed.
func Watch(ctx context.Context, path string, logger framesocket.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = slog.Default()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(err, "watch configuration")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create configuration watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		return errors.Wrapf(err, "watch %s", filepath.Dir(absPath))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			cfg, err := Load(absPath)
			if err != nil {
				logger.Warn("configuration reload failed", "path", absPath, "error", err)
				continue
			}
			logger.Debug("configuration reloaded", "path", absPath)
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("configuration watcher error", "error", err)
		}
	}
}
