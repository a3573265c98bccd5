// Package hotreload watches the bank profile directory and reloads profiles
// when definition files change.
package hotreload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"stmtrules/internal/domain"
)

// ConfigSource supplies the live hot-reload settings.
type ConfigSource interface {
	HotReloadConfig() domain.HotReloadConfig
}

// Reloader reloads profiles and returns how many are loaded.
type Reloader interface {
	Reload() int
}

const defaultPollInterval = 2 * time.Second

// Watcher debounces filesystem events on the watch directory into reloads.
type Watcher struct {
	source   ConfigSource
	reloader Reloader
	logger   *slog.Logger
	poll     time.Duration
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithPollInterval sets how often the live settings are checked for the
// enabled switch or a new watch directory.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.poll = d
		}
	}
}

// New creates a Watcher.
func New(source ConfigSource, reloader Reloader, logger *slog.Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		source:   source,
		reloader: reloader,
		logger:   logger.With("component", "hotreload.Watcher"),
		poll:     defaultPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. A watch directory that cannot be opened
// at start is an error; later changes to the enabled switch or the directory
// are picked up on the poll interval and failures there are only logged.
// Debounce and size limits are re-read on every event.
func (w *Watcher) Run(ctx context.Context) error {
	active := w.source.HotReloadConfig()
	var fw *fsnotify.Watcher
	if active.Enabled {
		var err error
		if fw, err = w.watch(active.WatchDirectory); err != nil {
			return err
		}
	} else {
		w.logger.Info("hot reload disabled")
	}
	defer func() {
		if fw != nil {
			_ = fw.Close()
		}
	}()

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		var events <-chan fsnotify.Event
		var errs <-chan error
		if fw != nil {
			events, errs = fw.Events, fw.Errors
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			live := w.source.HotReloadConfig()
			if live.Enabled == active.Enabled && (!live.Enabled || live.WatchDirectory == active.WatchDirectory) {
				continue
			}
			if fw != nil {
				_ = fw.Close()
				fw = nil
				w.logger.Info("stopped watching profile directory", "dir", active.WatchDirectory)
			}
			active = live
			if !live.Enabled {
				w.logger.Info("hot reload disabled")
				continue
			}
			next, err := w.watch(live.WatchDirectory)
			if err != nil {
				w.logger.Error("restarting watcher", "error", err)
				continue
			}
			fw = next
		case ev, ok := <-events:
			if !ok {
				fw = nil
				continue
			}
			live := w.source.HotReloadConfig()
			if !w.relevant(ev, live) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(live.Debounce())
			} else {
				timer.Stop()
				timer.Reset(live.Debounce())
			}
			fire = timer.C
		case err, ok := <-errs:
			if !ok {
				fw = nil
				continue
			}
			w.logger.Error("watcher error", "error", err)
		case <-fire:
			fire = nil
			if !w.source.HotReloadConfig().Enabled {
				continue
			}
			n := w.reloader.Reload()
			w.logger.Info("profiles reloaded", "count", n)
		}
	}
}

func (w *Watcher) watch(dir string) (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	w.logger.Info("watching profile directory", "dir", dir)
	return fw, nil
}

func (w *Watcher) relevant(ev fsnotify.Event, cfg domain.HotReloadConfig) bool {
	switch strings.ToLower(filepath.Ext(ev.Name)) {
	case ".json", ".yaml", ".yml":
	default:
		return false
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if cfg.MaxFileSize > 0 && (ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) {
		info, err := os.Stat(ev.Name)
		if err == nil && info.Size() > cfg.MaxFileSize {
			w.logger.Warn("ignoring oversized profile file", "file", ev.Name, "size", info.Size(), "max", cfg.MaxFileSize)
			return false
		}
	}
	return true
}
