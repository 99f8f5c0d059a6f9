package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"axiombot/pkg/logger"
)

// ChangeHandler is a callback function called when configuration changes.
type ChangeHandler func(*Config) error

// Watcher monitors the configuration file and applies the hot-reloadable
// sections to the live Config.
type Watcher struct {
	log      *logger.Logger
	loader   *Loader
	config   *Config
	handlers []ChangeHandler
	mu       sync.RWMutex
	watching bool
}

// NewWatcher creates a new configuration watcher.
func NewWatcher(log *logger.Logger, loader *Loader, config *Config) *Watcher {
	return &Watcher{
		log:    log,
		loader: loader,
		config: config,
	}
}

// AddHandler registers a handler to be called after a reload was applied.
func (w *Watcher) AddHandler(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins watching the configuration file for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.watching = true
	w.mu.Unlock()

	w.loader.viper.OnConfigChange(func(e fsnotify.Event) {
		w.reload(e.Name)
	})
	w.loader.viper.WatchConfig()

	return nil
}

// Stop stops notifying handlers. Viper's underlying watch goroutine lives
// until process exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watching = false
}

func (w *Watcher) reload(file string) {
	w.mu.RLock()
	active := w.watching
	w.mu.RUnlock()
	if !active {
		return
	}

	next, err := w.loader.decode()
	if err != nil {
		w.log.Error("Failed to reload config", zap.String("file", file), zap.Error(err))
		return
	}
	if err := Validate(next); err != nil {
		w.log.Error("Ignoring invalid config change", zap.String("file", file), zap.Error(err))
		return
	}

	w.config.Apply(next)
	w.log.Info("Configuration reloaded",
		zap.String("file", file),
		zap.String("prefix", next.Bot.Prefix),
		zap.String("work_mode", string(next.Bot.WorkMode)),
		zap.Int("sudo", len(next.Bot.Sudo)))

	w.mu.RLock()
	handlers := make([]ChangeHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(w.config); err != nil {
			w.log.Warn("Config change handler failed", zap.Error(err))
		}
	}
}
