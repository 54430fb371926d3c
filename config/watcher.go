package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher reloads the config file when it changes on disk and notifies
// registered callbacks with the new value.
type Watcher struct {
	path     string
	mu       sync.RWMutex
	current  *Config
	onChange []func(*Config)
	watcher  *fsnotify.Watcher
	done     chan struct{}
	exited   chan struct{}

	closeOnce sync.Once
	closeErr  error
	errMu     sync.Mutex
	errClosed bool
	errChan   chan error
}

// NewWatcher starts watching the directory that contains path.
func NewWatcher(path string, initial *Config) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	w := &Watcher{
		path:    path,
		current: initial,
		watcher: fw,
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
		errChan: make(chan error, 1),
	}
	go w.loop()
	return w, nil
}

// Config returns the most recently loaded configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers cb for reloads.
func (w *Watcher) OnChange(cb func(*Config)) {
	w.mu.Lock()
	w.onChange = append(w.onChange, cb)
	w.mu.Unlock()
}

// Errors delivers reload and watch errors. Errors are dropped when unread.
// The channel is closed by Close.
func (w *Watcher) Errors() <-chan error { return w.errChan }

// Close stops watching and closes the Errors channel. It is idempotent.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.closeErr = w.watcher.Close()
		<-w.exited
		w.errMu.Lock()
		w.errClosed = true
		close(w.errChan)
		w.errMu.Unlock()
	})
	return w.closeErr
}

func (w *Watcher) loop() {
	defer close(w.exited)
	var debounce *time.Timer
	name := filepath.Base(w.path)
	for {
		select {
		case <-w.done:
			if debounce != nil {
				debounce.Stop()
			}
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}
	cfg, err := Load(w.path)
	if err != nil {
		w.report(fmt.Errorf("reload config: %w", err))
		return
	}
	w.mu.Lock()
	w.current = cfg
	cbs := append([]func(*Config){}, w.onChange...)
	w.mu.Unlock()
	for _, cb := range cbs {
		cb(cfg)
	}
}

func (w *Watcher) report(err error) {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.errClosed {
		return
	}
	select {
	case w.errChan <- err:
	default:
	}
}
