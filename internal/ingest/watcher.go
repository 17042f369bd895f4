package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

type WatchConfig struct {
	Dir         string              // directory to watch (not recursive)
	AllowedExts map[string]struct{} // nil -> constants.AllowedExtensions
	Coalesce    time.Duration       // merge bursts of events for the same file
	Logger      *slog.Logger
}

// WatchFunc subscribes to a directory and streams candidate image paths.
type WatchFunc func(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error)

// StartWatcher subscribes to cfg.Dir and emits the paths of allowed images that are
// created, written or moved in. Sends block until the consumer reads them or ctx ends;
// the returned channel is buffered so events queue while the consumer is busy.
func StartWatcher(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Dir == "" {
		logger.Error("watcher start failed: no directory provided")
		return nil, nil, errors.New("no directory provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}
	if err := w.Add(cfg.Dir); err != nil {
		logger.Error("failed to watch directory", "dir", cfg.Dir, "error", err)
		_ = w.Close()
		return nil, nil, err
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func(w *fsnotify.Watcher) {
			if err := w.Close(); err != nil {
				logger.Warn("failed to close watcher", "error", err)
			}
		}(w)

		var (
			pending = map[string]struct{}{}
			order   []string
			timer   *time.Timer
			flush   <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		// emitPending sends in first-seen order; false means ctx ended.
		emitPending := func() bool {
			for _, p := range order {
				select {
				case evCh <- p:
				case <-ctx.Done():
					return false
				}
				delete(pending, p)
			}
			order = order[:0]
			return true
		}

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if !relevant(e, cfg.AllowedExts) {
					continue
				}
				if _, seen := pending[e.Name]; !seen {
					pending[e.Name] = struct{}{}
					order = append(order, e.Name)
				}
				if cfg.Coalesce <= 0 {
					if !emitPending() {
						return
					}
					continue
				}
				if timer == nil {
					timer = time.NewTimer(cfg.Coalesce)
				} else {
					timer.Reset(cfg.Coalesce)
				}
				flush = timer.C
			case <-flush:
				flush = nil
				if !emitPending() {
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// relevant reports whether e may bring a new image into the directory. A rename
// event names the old path, so it only counts when that path still exists.
func relevant(e fsnotify.Event, exts map[string]struct{}) bool {
	if !AllowedPath(e.Name, exts) {
		return false
	}
	if e.Has(fsnotify.Create) || e.Has(fsnotify.Write) {
		return true
	}
	if e.Has(fsnotify.Rename) {
		_, err := os.Stat(e.Name)
		return err == nil
	}
	return false
}
