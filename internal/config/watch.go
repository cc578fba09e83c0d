package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/forceviz/forceviz/internal/core/observability/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 250 * time.Millisecond

// Watcher reloads a config file whenever it changes on disk and hands every
// valid result to a callback. Invalid edits are logged and skipped.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(Config)
	logger   log.Log
	watcher  *fsnotify.Watcher
}

type WatchOption func(*Watcher)

// WithDebounce sets how long the file must stay quiet before it is reloaded.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

func WithWatchLogger(l log.Log) WatchOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWatcher watches the directory holding path, so editors that replace the
// file by rename are still seen.
func NewWatcher(path string, onChange func(Config), opts ...WatchOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", abs, err)
	}

	w := &Watcher{
		path:     abs,
		debounce: defaultDebounce,
		onChange: onChange,
		logger:   log.NewNop(),
		watcher:  fw,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(log.String("component", "config_watcher"), log.String("path", abs))
	return w, nil
}

// Run delivers reloads until ctx is done, then releases the watch.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.watcher.Close() }()

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			reload = time.After(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Config watch error", log.Error(err))

		case <-reload:
			reload = nil
			cfg, err := LoadFile(w.path)
			if err != nil {
				w.logger.Warn("Config reload rejected", log.Error(err))
				continue
			}
			w.logger.Info("Config reloaded")
			w.onChange(cfg)
		}
	}
}
