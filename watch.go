// FILE: lixenwraith/confschema/watch.go
package confschema

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultMaxWatchers = 100 // Prevent resource exhaustion

// Notifications sent on watch channels in place of a leaf path.
const (
	EventReloadError   = "reload_error"
	EventReloadTimeout = "reload_timeout"
)

// WatchOptions configures file watching behavior
type WatchOptions struct {
	// Debounce coalesces bursts of events for one file
	Debounce time.Duration

	// MaxWatchers limits concurrent watch channels
	MaxWatchers int

	// ReloadTimeout bounds a single re-parse
	ReloadTimeout time.Duration
}

// DefaultWatchOptions returns sensible defaults for file watching
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Debounce:      DefaultDebounce,
		MaxWatchers:   DefaultMaxWatchers,
		ReloadTimeout: DefaultReloadTimeout,
	}
}

// watcher manages file watching state
type watcher struct {
	mu               sync.RWMutex
	ctx              context.Context
	cancel           context.CancelFunc
	done             chan struct{}
	opts             WatchOptions
	fs               *fsnotify.Watcher
	files            map[string]string // cleaned absolute path -> path as merged
	watching         atomic.Bool
	reloadInProgress sync.Map // file -> struct{}
	watchers         map[int64]chan string
	watcherID        atomic.Int64
	debounce         map[string]*time.Timer
}

// Watch starts watching every file merged so far and returns a channel receiving the
// path of each leaf whose value changed on reload. Reload failures arrive as
// "reload_error:<message>". Calling Watch again adds a subscriber to the running watcher.
func (c *Config) Watch(opts WatchOptions) (<-chan string, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.MaxWatchers <= 0 {
		opts.MaxWatchers = DefaultMaxWatchers
	}
	if opts.ReloadTimeout <= 0 {
		opts.ReloadTimeout = DefaultReloadTimeout
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.watcher != nil && c.watcher.watching.Load() {
		return c.watcher.subscribe(), nil
	}
	if len(c.files) == 0 {
		return nil, fmt.Errorf("%w: no merged files to watch", ErrIncorrectUsage)
	}

	w, err := newWatcher(opts, c.files)
	if err != nil {
		return nil, err
	}
	c.watcher = w
	w.watching.Store(true)
	go w.watchLoop(c)

	c.logger.Info("configuration watcher started", "files", len(w.files))
	return w.subscribe(), nil
}

func newWatcher(opts WatchOptions, files []string) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &watcher{
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		opts:     opts,
		fs:       fsw,
		files:    make(map[string]string, len(files)),
		watchers: make(map[int64]chan string),
		debounce: make(map[string]*time.Timer),
	}

	dirs := make(map[string]bool)
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			abs = filepath.Clean(file)
		}
		w.files[abs] = file

		// Watch the directory, not the file, to catch editor renames
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			cancel()
			_ = fsw.Close()
			return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		dirs[dir] = true
	}
	return w, nil
}

// StopWatch stops the watcher and closes every subscriber channel.
func (c *Config) StopWatch() {
	c.mutex.Lock()
	w := c.watcher
	c.watcher = nil
	c.mutex.Unlock()

	if w != nil {
		w.stop()
		c.logger.Info("configuration watcher stopped")
	}
}

// IsWatching returns true if a watcher is running
func (c *Config) IsWatching() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.watcher != nil && c.watcher.watching.Load()
}

// WatcherCount returns the number of active watch channels
func (c *Config) WatcherCount() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if c.watcher == nil {
		return 0
	}

	c.watcher.mu.RLock()
	defer c.watcher.mu.RUnlock()
	return len(c.watcher.watchers)
}

// watchLoop dispatches fsnotify events until the watcher is stopped
func (w *watcher) watchLoop(c *Config) {
	defer close(w.done)
	defer w.watching.Store(false)

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				abs = filepath.Clean(event.Name)
			}
			file, tracked := w.files[abs]
			if !tracked {
				continue
			}
			c.logger.Debug("configuration file changed", "file", file, "op", event.Op.String())
			w.schedule(c, file)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			c.logger.Error("configuration watcher error", "error", err)
		}
	}
}

// schedule debounces reloads of one file
func (w *watcher) schedule(c *Config, file string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.debounce[file]; ok {
		timer.Stop()
	}
	w.debounce[file] = time.AfterFunc(w.opts.Debounce, func() {
		w.performReload(c, file)
	})
}

// performReload re-parses file, merges it and reports every leaf whose value changed
func (w *watcher) performReload(c *Config, file string) {
	if w.ctx.Err() != nil {
		return
	}
	if _, busy := w.reloadInProgress.LoadOrStore(file, struct{}{}); busy {
		return
	}
	defer w.reloadInProgress.Delete(file)

	ctx, cancel := context.WithTimeout(w.ctx, w.opts.ReloadTimeout)
	defer cancel()

	type parsed struct {
		tree any
		err  error
	}
	done := make(chan parsed, 1)
	go func() {
		tree, err := c.registry.parseFile(file, c.maxFileSize)
		done <- parsed{tree, err}
	}()

	var result parsed
	select {
	case result = <-done:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.Warn("configuration reload timed out", "file", file, "timeout", w.opts.ReloadTimeout)
			w.notifyWatchers(EventReloadTimeout)
		}
		return
	}

	if result.err != nil {
		c.logger.Error("configuration reload failed", "file", file, "error", result.err)
		w.notifyWatchers(fmt.Sprintf("%s:%v", EventReloadError, result.err))
		return
	}
	if result.tree == nil {
		return
	}

	c.mutex.Lock()
	before := c.leafSnapshot()
	c.applyValues(map[string]any{rootKey: result.tree}, c.instance, c.wrapper)
	after := c.leafSnapshot()
	c.mutex.Unlock()

	var changed []string
	for path, value := range after {
		if old, existed := before[path]; !existed || !reflect.DeepEqual(old, value) {
			changed = append(changed, path)
		}
	}
	for path := range before {
		if _, exists := after[path]; !exists {
			changed = append(changed, path)
		}
	}
	slices.Sort(changed)

	c.logger.Info("configuration reloaded", "file", file, "changed", len(changed))
	for _, path := range changed {
		w.notifyWatchers(path)
	}
}

// leafSnapshot flattens the value tree into unrooted paths. Caller holds the lock.
func (c *Config) leafSnapshot() map[string]any {
	tree, ok := c.instance[rootKey].(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return flattenMap(deepCopy(tree).(map[string]any), "")
}

// subscribe creates a new watcher channel
func (w *watcher) subscribe() <-chan string {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Over the limit, hand out a closed channel
	if len(w.watchers) >= w.opts.MaxWatchers {
		ch := make(chan string)
		close(ch)
		return ch
	}

	ch := make(chan string, 10)
	id := w.watcherID.Add(1)
	w.watchers[id] = ch

	go func() {
		<-w.ctx.Done()
		w.mu.Lock()
		delete(w.watchers, id)
		close(ch)
		w.mu.Unlock()
	}()

	return ch
}

// notifyWatchers sends change notification to all subscribers without blocking
func (w *watcher) notifyWatchers(path string) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, ch := range w.watchers {
		select {
		case ch <- path:
		default:
		}
	}
}

// stop terminates the watcher and waits briefly for the loop to exit
func (w *watcher) stop() {
	w.cancel()

	w.mu.Lock()
	for _, timer := range w.debounce {
		timer.Stop()
	}
	w.mu.Unlock()

	_ = w.fs.Close()

	for range shutdownPollCycles {
		select {
		case <-w.done:
			return
		default:
			time.Sleep(SpinWaitInterval)
		}
	}
}
