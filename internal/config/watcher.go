package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher keeps the latest valid Config and reloads it when the config file
// changes on disk. An invalid edit is logged and the previous config kept.
type Watcher struct {
	mu       sync.RWMutex
	current  *Config
	opts     Options
	logger   *slog.Logger
	onUpdate func(*Config)
}

// NewWatcher loads the initial config. Run must be called to follow changes.
func NewWatcher(opts Options, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := Load(opts)
	if err != nil {
		return nil, err
	}
	return &Watcher{current: cfg, opts: opts, logger: logger}, nil
}

// Current returns a copy of the latest config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c := *w.current
	return &c
}

// OnUpdate registers f to be called after every successful reload.
func (w *Watcher) OnUpdate(f func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onUpdate = f
}

// Reload re-reads the config file and environment.
func (w *Watcher) Reload() error {
	cfg, err := Load(w.opts)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.current = cfg
	f := w.onUpdate
	w.mu.Unlock()

	if f != nil {
		f(cfg)
	}
	w.logger.Info("configuration reloaded", "path", w.opts.ConfigPath)
	return nil
}

// Run follows the config file until ctx is done. Without a config file it
// just waits for ctx.
func (w *Watcher) Run(ctx context.Context) error {
	if w.opts.ConfigPath == "" {
		<-ctx.Done()
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer fw.Close()

	// Editors replace files by rename, so watch the directory.
	dir := filepath.Dir(w.opts.ConfigPath)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch config dir %s: %w", dir, err)
	}
	name := filepath.Clean(w.opts.ConfigPath)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := w.Reload(); err != nil {
					w.logger.Error("error reloading config", "error", err)
				}
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Error("config watcher error", "error", err)
			}
		}
	}
}
