// Package watcher reports changes to the entries of a set of directories.
//
// It uses fsnotify where the filesystem supports it and falls back to
// periodic polling on remote or FUSE filesystems, or when forced. Changes
// are debounced per directory so a burst of writes is reported once.
package watcher

import (
	"context"
	"encoding/binary"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultPollInterval is the default polling interval for fallback mode.
const DefaultPollInterval = 2 * time.Second

// Common errors.
var (
	ErrRemoved        = errors.New("watched directory was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
	ErrNotStarted     = errors.New("watcher not started")
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceDuration sets the debounce duration.
func WithDebounceDuration(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounceDuration = d
	}
}

// WithPollInterval sets the polling interval for fallback mode.
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.pollInterval = d
	}
}

// WithOnChange sets the callback invoked with the directory whose entries
// changed. It runs on a timer goroutine.
func WithOnChange(fn func(dir string)) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// WithOnError sets the callback invoked on errors. ErrRemoved is reported
// with the directory that disappeared through WithOnRemoved instead.
func WithOnError(fn func(error)) WatcherOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithOnRemoved sets the callback invoked when a watched directory itself
// disappears. The directory is dropped from the watch set first.
func WithOnRemoved(fn func(dir string)) WatcherOption {
	return func(w *Watcher) {
		w.onRemoved = fn
	}
}

// WithForcePoll forces polling mode even if fsnotify is available.
func WithForcePoll(force bool) WatcherOption {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// dirState is what the watcher knows about one watched directory.
type dirState struct {
	debouncer *Debouncer
	signature uint64
	exists    bool
}

// Watcher monitors the entries of a set of directories.
type Watcher struct {
	root             string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func(dir string)
	onError          func(error)
	onRemoved        func(dir string)
	forcePoll        bool
	forcePollEnv     bool
	fsType           FilesystemType

	fsWatcher   *fsnotify.Watcher
	useFallback bool
	dirs        map[string]*dirState

	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	mu       sync.RWMutex
	changeCh chan struct{}
}

// NewWatcher creates a watcher whose initial watch set is root. Further
// directories are added with Add.
func NewWatcher(root string, opts ...WatcherOption) (*Watcher, error) {
	absPath, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:             absPath,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func(string) {},
		onError:          func(error) {},
		onRemoved:        func(string) {},
		dirs:             make(map[string]*dirState),
		changeCh:         make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start begins watching the root directory.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}

	if info, err := os.Stat(w.root); err != nil && os.IsPermission(err) {
		return ErrPermission
	} else if err == nil && !info.IsDir() {
		return &os.PathError{Op: "watch", Path: w.root, Err: errors.New("not a directory")}
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())

	// Reset per-start state.
	w.useFallback = false
	w.forcePollEnv = envBool("NV_FORCE_POLLING") || envBool("NV_FORCE_POLL")
	w.fsType = DetectFilesystemType(w.root)
	w.dirs = make(map[string]*dirState)

	forcePoll := w.forcePoll || w.forcePollEnv
	if forcePoll || isRemoteFilesystem(w.fsType) {
		w.useFallback = true
	}

	if !w.useFallback {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			w.useFallback = true
		} else {
			w.fsWatcher = fsw
			go w.watchFsnotify(fsw)
		}
	}

	if err := w.addLocked(w.root); err != nil && w.fsWatcher != nil {
		// fsnotify refused the root (inotify limits, odd filesystems).
		w.fsWatcher.Close()
		w.fsWatcher = nil
		w.useFallback = true
		_ = w.addLocked(w.root)
	}

	if w.useFallback {
		go w.watchPolling()
	}

	w.started = true
	return nil
}

// Stop stops watching. Pending debounced notifications are dropped.
// Note: the changeCh channel is intentionally not closed; a goroutine blocked
// on Changed is released by process exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		return
	}

	if w.cancel != nil {
		w.cancel()
	}

	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}

	for _, st := range w.dirs {
		st.debouncer.Cancel()
	}
	w.started = false
}

// Add starts watching dir. Adding a directory twice is a no-op.
func (w *Watcher) Add(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return ErrNotStarted
	}
	return w.addLocked(abs)
}

func (w *Watcher) addLocked(dir string) error {
	if _, ok := w.dirs[dir]; ok {
		return nil
	}
	sig, exists, err := signature(dir)
	if err != nil && os.IsPermission(err) {
		return ErrPermission
	}
	if w.fsWatcher != nil {
		if err := w.fsWatcher.Add(dir); err != nil {
			return err
		}
	}
	w.dirs[dir] = &dirState{
		debouncer: NewDebouncer(w.debounceDuration),
		signature: sig,
		exists:    exists,
	}
	return nil
}

// Remove stops watching dir.
func (w *Watcher) Remove(dir string) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removeLocked(abs)
}

func (w *Watcher) removeLocked(dir string) {
	st, ok := w.dirs[dir]
	if !ok {
		return
	}
	st.debouncer.Cancel()
	delete(w.dirs, dir)
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Remove(dir)
	}
}

// Dirs returns the watched directories, sorted.
func (w *Watcher) Dirs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// IsWatching reports whether dir is in the watch set.
func (w *Watcher) IsWatching(dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.dirs[abs]
	return ok
}

// IsPolling returns true if the watcher is using polling mode.
func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.useFallback
}

// IsStarted returns true if the watcher is running.
func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed returns a channel that receives when any watched directory
// changes. This is an alternative to the OnChange callback.
func (w *Watcher) Changed() <-chan struct{} {
	return w.changeCh
}

// Root returns the absolute root directory.
func (w *Watcher) Root() string {
	return w.root
}

// FilesystemType returns the best-effort filesystem classification for the root.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

// PollInterval returns the polling interval used when polling mode is active.
func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return false
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// watchFsnotify monitors using fsnotify events. fsw is captured so Stop can
// clear the field without racing this goroutine.
func (w *Watcher) watchFsnotify(fsw *fsnotify.Watcher) {
	events := fsw.Events
	errs := fsw.Errors

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name := filepath.Clean(event.Name)

	dir := filepath.Dir(name)

	w.mu.Lock()
	_, self := w.dirs[name]
	removed := self && event.Op&(fsnotify.Remove|fsnotify.Rename) != 0
	if removed {
		w.removeLocked(name)
	}
	st, ok := w.dirs[dir]
	w.mu.Unlock()

	if removed {
		w.onRemoved(name)
	}
	if !ok || event.Op == fsnotify.Chmod {
		return
	}
	st.debouncer.Trigger(func() { w.notifyChange(dir) })
}

// watchPolling monitors using periodic directory scans.
func (w *Watcher) watchPolling() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.pollOnce()
		}
	}
}

func (w *Watcher) pollOnce() {
	w.mu.RLock()
	dirs := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		dirs = append(dirs, d)
	}
	w.mu.RUnlock()

	for _, dir := range dirs {
		sig, exists, err := signature(dir)
		if err != nil && exists {
			if os.IsPermission(err) {
				w.onError(ErrPermission)
			} else {
				w.onError(err)
			}
			continue
		}

		w.mu.Lock()
		st, ok := w.dirs[dir]
		if !ok {
			w.mu.Unlock()
			continue
		}
		if st.exists && !exists {
			w.removeLocked(dir)
			w.mu.Unlock()
			w.onRemoved(dir)
			continue
		}
		changed := sig != st.signature
		st.signature, st.exists = sig, exists
		w.mu.Unlock()

		if changed {
			st.debouncer.Trigger(func() { w.notifyChange(dir) })
		}
	}
}

// notifyChange invokes the onChange callback and signals the change channel.
func (w *Watcher) notifyChange(dir string) {
	w.mu.RLock()
	started := w.started
	_, watched := w.dirs[dir]
	w.mu.RUnlock()

	// Best effort: a notification racing Stop or Remove may still slip
	// through, and callers re-read the directory anyway.
	if !started || !watched {
		return
	}

	w.onChange(dir)

	select {
	case w.changeCh <- struct{}{}:
	default:
	}
}

// signature hashes the names, sizes, modes and mtimes of dir's entries.
// exists is false when dir is gone.
func signature(dir string) (sig uint64, exists bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, true, err
	}
	h := fnv.New64a()
	for _, e := range entries {
		h.Write([]byte(e.Name()))
		h.Write([]byte{0})
		info, err := e.Info()
		if err != nil {
			continue
		}
		var buf [24]byte
		binary.LittleEndian.PutUint64(buf[0:], uint64(info.Size()))
		binary.LittleEndian.PutUint64(buf[8:], uint64(info.ModTime().UnixNano()))
		binary.LittleEndian.PutUint64(buf[16:], uint64(info.Mode()))
		h.Write(buf[:])
	}
	return h.Sum64(), true, nil
}
