package sync

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rjeczalik/notify"

	"github.com/syncforge/themesync/internal/queue"
	"github.com/syncforge/themesync/internal/utils"
)

const (
	DefaultIgnoreTimeout    = time.Second
	defaultCleanupInterval  = 15 * time.Second
	eventBufferSize         = 64
	defaultDebounceInterval = 500 * time.Millisecond
)

// backupSuffixes are editor save artifacts that never represent a logical
// change.
var backupSuffixes = []string{"~", ".bak", ".swp", ".swx", ".tmp", ".orig"}

// Watcher observes the sync root, debounces duplicate filesystem
// notifications per path, validates candidate changes and pushes accepted
// ones onto the work queue. Editors fire several events per logical save
// (truncate, write bursts, atomic rename), so every notification re-arms a
// per-path timer and only the timer expiry is processed.
type Watcher struct {
	root      string
	workQueue *queue.Queue[*WorkItem]
	rawEvents chan notify.EventInfo

	ignore          map[string]time.Time
	ignoreMu        sync.Mutex
	cleanupInterval time.Duration

	pendingPaths     map[string]*time.Timer
	debounceMu       sync.Mutex
	debounceInterval time.Duration

	running bool
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// NewWatcher creates a watcher that feeds the given work queue.
func NewWatcher(root string, workQueue *queue.Queue[*WorkItem]) *Watcher {
	return &Watcher{
		root:             root,
		workQueue:        workQueue,
		ignore:           make(map[string]time.Time),
		cleanupInterval:  defaultCleanupInterval,
		pendingPaths:     make(map[string]*time.Timer),
		debounceInterval: defaultDebounceInterval,
	}
}

// SetDebounceInterval overrides the debounce window. Call before Start.
func (w *Watcher) SetDebounceInterval(d time.Duration) {
	w.debounceInterval = d
}

// Start begins watching the sync root recursively. Write, create-by-rename
// and move-to events all count as candidate changes.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return ErrWatcherRunning
	}

	slog.Info("watcher start", "root", w.root)

	w.done = make(chan struct{})
	w.rawEvents = make(chan notify.EventInfo, eventBufferSize)

	recursivePath := filepath.Join(w.root, "...")
	if err := notify.Watch(recursivePath, w.rawEvents, notify.Write|notify.Create|notify.Rename); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.dispatchEvents(ctx)

	w.wg.Add(1)
	go w.cleanupExpiredEntries(ctx)

	w.running = true
	return nil
}

// Stop stops accepting filesystem notifications and waits for in-flight
// debounce processing to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}

	slog.Info("watcher stopping")

	close(w.done)
	notify.Stop(w.rawEvents)

	// Cancel pending debounce timers; anything not yet flushed is dropped.
	w.debounceMu.Lock()
	for path, timer := range w.pendingPaths {
		timer.Stop()
		delete(w.pendingPaths, path)
	}
	w.debounceMu.Unlock()

	w.wg.Wait()
	w.running = false

	slog.Info("watcher stopped")
}

// Running reports whether the watcher is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// IgnoreOnce suppresses the next notification for a path. Exporters register
// their own writes here so a bulk export does not feed back into the import
// queue.
func (w *Watcher) IgnoreOnce(path string) {
	w.ignoreMu.Lock()
	defer w.ignoreMu.Unlock()
	w.ignore[path] = time.Now().Add(DefaultIgnoreTimeout)
}

// isPathTemporarilyIgnored checks and consumes an ignore-once entry.
func (w *Watcher) isPathTemporarilyIgnored(path string) bool {
	w.ignoreMu.Lock()
	defer w.ignoreMu.Unlock()

	expiry, exists := w.ignore[path]
	if !exists {
		return false
	}

	delete(w.ignore, path)
	return !time.Now().After(expiry)
}

func (w *Watcher) dispatchEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.rawEvents:
			if !ok {
				return
			}
			w.debounce(event.Path())
		}
	}
}

// debounce re-arms the per-path timer; only the expiry processes the file.
func (w *Watcher) debounce(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.pendingPaths[path]; exists {
		timer.Stop()
	}

	w.pendingPaths[path] = time.AfterFunc(w.debounceInterval, func() {
		w.flush(path)
	})
}

// flush validates a settled path and enqueues a work item for it. Rejections
// are deliberate no-ops: directories, dotfiles, backup artifacts, unroutable
// paths and files that vanished between notification and read.
func (w *Watcher) flush(path string) {
	w.debounceMu.Lock()
	if _, exists := w.pendingPaths[path]; !exists {
		w.debounceMu.Unlock()
		return
	}
	delete(w.pendingPaths, path)
	w.debounceMu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}

	if w.isPathTemporarilyIgnored(path) {
		slog.Debug("watcher ignore-once", "path", path)
		return
	}

	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return
	}
	for _, suffix := range backupSuffixes {
		if strings.HasSuffix(base, suffix) {
			return
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		// Deleted or renamed away before we got to it.
		slog.Debug("watcher file vanished", "path", path)
		return
	}
	if info.IsDir() {
		return
	}

	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		slog.Debug("watcher path outside root", "path", path)
		return
	}
	rel = utils.NormPath(rel)

	desc := ParsePath(rel)
	if desc.Kind == KindUnknown {
		slog.Debug("watcher unroutable path", "path", rel)
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("watcher file vanished", "path", path)
		return
	}
	if len(content) == 0 {
		// Editors write an empty file first during some save sequences.
		slog.Warn("watcher ignoring empty file", "path", rel)
		return
	}

	item := &WorkItem{
		ID:         uuid.New(),
		Desc:       desc,
		RelPath:    rel,
		Content:    content,
		EnqueuedAt: time.Now(),
	}
	w.workQueue.Enqueue(item)
	slog.Debug("watcher queued", "path", rel, "kind", desc.Kind, "bytes", len(content), "id", item.ID)
}

// cleanupExpiredEntries periodically removes expired ignore-once entries.
func (w *Watcher) cleanupExpiredEntries(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			w.ignoreMu.Lock()
			now := time.Now()
			for path, expiry := range w.ignore {
				if now.After(expiry) {
					delete(w.ignore, path)
				}
			}
			w.ignoreMu.Unlock()
		}
	}
}
