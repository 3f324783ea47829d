package daemon

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"curator/internal/logging"
)

const reloadDebounce = 250 * time.Millisecond

// watcher calls reload after the config file settles. The parent directory
// is watched so editors that replace the file by rename are noticed.
type watcher struct {
	fs     *fsnotify.Watcher
	path   string
	logger *slog.Logger
	reload func()
}

func newWatcher(path string, logger *slog.Logger, reload func()) (*watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}
	return &watcher{fs: fw, path: abs, logger: logger, reload: reload}, nil
}

func (w *watcher) run(ctx context.Context) {
	defer w.fs.Close()

	timer := time.NewTimer(reloadDebounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != w.path {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(reloadDebounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", logging.Error(err))
		case <-timer.C:
			w.reload()
		}
	}
}
