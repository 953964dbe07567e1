package settings

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher keeps an AppSettings snapshot synced with the file on disk and
// notifies subscribers when it changes.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher

	mu       sync.RWMutex
	current  AppSettings
	subs     []chan AppSettings
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// Watch loads the settings at path and starts watching its directory for
// changes. The directory must exist; the file itself may not, in which case
// defaults apply until it appears.
func Watch(path string) (*Watcher, error) {
	current, err := Load(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		path:    path,
		watcher: fsWatcher,
		current: current,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Get returns the current settings snapshot.
func (w *Watcher) Get() AppSettings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Subscribe returns a channel that receives each new snapshot. Slow
// subscribers miss intermediate snapshots instead of blocking the watcher.
func (w *Watcher) Subscribe() <-chan AppSettings {
	ch := make(chan AppSettings, 1)
	w.mu.Lock()
	w.subs = append(w.subs, ch)
	w.mu.Unlock()
	return ch
}

// Stop terminates the watcher.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
	<-w.doneCh
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	var debounce *time.Timer
	var debounceCh <-chan time.Time
	fileName := filepath.Base(w.path)

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != fileName {
				continue
			}
			// Editors write in bursts; coalesce them.
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(100 * time.Millisecond)
			debounceCh = debounce.C
		case <-debounceCh:
			debounceCh = nil
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("settings watcher error", "err", err)
		}
	}
}

func (w *Watcher) reload() {
	loaded, err := Load(w.path)
	if err != nil {
		log.Warn("keeping previous settings", "err", err)
		return
	}
	w.mu.Lock()
	w.current = loaded
	subs := make([]chan AppSettings, len(w.subs))
	copy(subs, w.subs)
	w.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- loaded:
		default:
			// Drop the stale snapshot and leave the fresh one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- loaded:
			default:
			}
		}
	}
}
