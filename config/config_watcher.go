package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Verify at compile time that ConfigWatcher implements Watcher
var _ Watcher = (*ConfigWatcher)(nil)

// ConfigWatcher reloads the configuration file when it changes on disk and
// publishes every valid revision to its subscribers. Invalid revisions are
// logged and ignored; the last valid configuration stays current.
type ConfigWatcher struct {
	current    atomic.Pointer[Config]
	configPath string
	watcher    *fsnotify.Watcher
	logger     *zap.Logger

	mu          sync.Mutex
	subscribers []chan *Config
	closed      bool
	done        chan struct{}
}

// NewConfigWatcher loads configPath and starts watching it.
func NewConfigWatcher(configPath string, logger *zap.Logger) (*ConfigWatcher, error) {
	initial, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory: editors and config-map mounts replace the file
	// instead of writing it in place.
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	cw := &ConfigWatcher{
		configPath: filepath.Clean(configPath),
		watcher:    watcher,
		logger:     logger,
		done:       make(chan struct{}),
	}
	cw.current.Store(initial)

	go cw.watchConfig()
	return cw, nil
}

// Subscribe returns a channel receiving each reloaded configuration.
// Slow subscribers only see the latest revision.
func (cw *ConfigWatcher) Subscribe() <-chan *Config {
	ch := make(chan *Config, 1)

	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.closed {
		close(ch)
		return ch
	}
	cw.subscribers = append(cw.subscribers, ch)
	return ch
}

// GetCurrentConfig returns the last valid configuration.
func (cw *ConfigWatcher) GetCurrentConfig() *Config {
	return cw.current.Load()
}

func (cw *ConfigWatcher) watchConfig() {
	defer close(cw.done)
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.configPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				cw.reload()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Config watcher error", zap.Error(err))
		}
	}
}

func (cw *ConfigWatcher) reload() {
	cw.logger.Info("Detected config file change, reloading", zap.String("path", cw.configPath))

	next, err := LoadFile(cw.configPath)
	if err != nil {
		cw.logger.Error("Failed to load new config, keeping current", zap.Error(err))
		return
	}
	cw.current.Store(next)

	cw.mu.Lock()
	defer cw.mu.Unlock()
	for _, sub := range cw.subscribers {
		// Drop a stale pending revision so the subscriber sees the newest one.
		select {
		case <-sub:
		default:
		}
		select {
		case sub <- next:
		default:
		}
	}

	cw.logger.Info("Configuration reloaded successfully")
}

// Close stops watching and closes all subscriber channels.
func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	if cw.closed {
		cw.mu.Unlock()
		return nil
	}
	cw.closed = true
	cw.mu.Unlock()

	err := cw.watcher.Close()
	<-cw.done

	cw.mu.Lock()
	for _, sub := range cw.subscribers {
		close(sub)
	}
	cw.subscribers = nil
	cw.mu.Unlock()
	return err
}
