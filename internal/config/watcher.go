package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher holds the current configuration and reloads it when the file
// changes on disk.
type Watcher struct {
	logger *slog.Logger
	path   string

	mu   sync.RWMutex
	cfg  *Config
	subs []func(*Config)

	watcher   *fsnotify.Watcher
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewWatcher loads path and starts watching it. The parent directory is
// watched so that editors replacing the file are noticed too.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	w := &Watcher{
		logger:  logger,
		path:    filepath.Clean(path),
		cfg:     cfg,
		watcher: fw,
	}
	w.wg.Add(1)
	go w.run()

	logger.Debug("watching config file", slog.String("path", w.path))
	return w, nil
}

// Get returns the current configuration.
func (w *Watcher) Get() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// OnReload registers a callback for successful reloads. Callbacks run on
// the watcher goroutine.
func (w *Watcher) OnReload(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subs = append(w.subs, fn)
}

// Close stops watching and waits for the watcher goroutine to exit.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", slog.Any("error", err))
		}
	}
}

// reload keeps the previous configuration when the new file is invalid.
func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous values", slog.Any("error", err))
		return
	}

	w.mu.Lock()
	w.cfg = cfg
	subs := append(([]func(*Config))(nil), w.subs...)
	w.mu.Unlock()

	w.logger.Info("config reloaded", slog.String("path", w.path))
	for _, fn := range subs {
		fn(cfg)
	}
}
