package mcp

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigWatcher watches a server-config file on disk and, on each change,
// reconnects every auto_start server listed in the reloaded file, using the
// registry's replace-on-connect semantics so an edited command/url/headers
// set takes effect without a restart. Servers are not compared against their
// previous definition: unchanged ones are reconnected too.
type ConfigWatcher struct {
	path     string
	registry *Registry
	reload   func(path string) (*Config, error)

	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce time.Duration
}

// NewConfigWatcher builds a watcher for the MCP server-config file at path.
// reload parses that file back into a *Config (the caller's yaml.v3 loader).
func NewConfigWatcher(path string, registry *Registry, reload func(path string) (*Config, error)) *ConfigWatcher {
	return &ConfigWatcher{
		path:     path,
		registry: registry,
		reload:   reload,
		debounce: 250 * time.Millisecond,
	}
}

// Start begins watching. It is a no-op if path is empty.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	if w.path == "" {
		return nil
	}
	if _, err := os.Stat(w.path); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.path); err != nil {
		fw.Close()
		return err
	}
	w.watcher = fw

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.loop(watchCtx)
	return nil
}

// Close stops the watcher.
func (w *ConfigWatcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	if w.watcher != nil {
		w.watcher.Close()
	}
	w.wg.Wait()
	return nil
}

func (w *ConfigWatcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			w.reconnectChanged(context.Background())
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				scheduleReload()
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *ConfigWatcher) reconnectChanged(ctx context.Context) {
	cfg, err := w.reload(w.path)
	if err != nil {
		w.registry.logger.Warn("mcp config reload failed", "error", err)
		return
	}

	for _, serverCfg := range cfg.Servers {
		if !serverCfg.AutoStart {
			continue
		}
		if err := w.registry.Connect(ctx, serverCfg); err != nil {
			w.registry.logger.Warn("mcp config reload: reconnect failed", "server", serverCfg.ID, "error", err)
		}
	}
	w.registry.config = cfg
}
