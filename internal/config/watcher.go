package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a settings file when it changes on disk and hands every
// valid revision to the registered handlers, in registration order.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *zap.Logger
	debounce time.Duration

	mu       sync.RWMutex
	current  *Settings
	onChange []func(*Settings)

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewWatcher(path string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	settings, err := LoadSettings(path)
	if err != nil {
		return nil, fmt.Errorf("load initial settings: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	// Watching the directory also catches editors that save by rename.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch settings directory: %w", err)
	}

	return &Watcher{
		path:     path,
		watcher:  fsw,
		logger:   logger,
		debounce: DefaultDebounce,
		current:  settings,
		stopCh:   make(chan struct{}),
	}, nil
}

func (w *Watcher) OnChange(handler func(*Settings)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, handler)
}

func (w *Watcher) Current() *Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) Start() {
	go w.loop()
	w.logger.Info("settings watcher started", zap.String("path", w.path))
}

func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.watcher.Close()
		w.logger.Info("settings watcher stopped")
	})
}

func (w *Watcher) loop() {
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("settings watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	settings, err := LoadSettings(w.path)
	if err != nil {
		w.logger.Error("reload settings, keeping current", zap.String("path", w.path), zap.Error(err))
		return
	}

	w.mu.Lock()
	w.current = settings
	handlers := slices.Clone(w.onChange)
	w.mu.Unlock()

	w.logger.Info("settings reloaded",
		zap.String("path", w.path),
		zap.Int("algorithms", len(settings.Simulator)),
	)
	for _, h := range handlers {
		h(settings)
	}
}
