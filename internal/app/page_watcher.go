package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"pagebuilder/internal/storage"
)

const (
	watchPollInterval = 2 * time.Second
	watchDebounce     = 500 * time.Millisecond
)

// pageWatcher detects pages rewritten by another process (a second MCP
// server or the CLI sharing the same store) and reloads them into their open
// sessions. A sqlite store is watched with fsnotify; network backends are
// polled.
type pageWatcher struct {
	ctx context.Context
	app *App
	log *zap.Logger

	fs     *fsnotify.Watcher
	dbFile string

	mu       sync.Mutex
	lastSeen map[string]time.Time // page id -> UpdatedAt at the previous check
	stopCh   chan struct{}
	done     chan struct{}
}

func newPageWatcher(ctx context.Context, app *App) (*pageWatcher, error) {
	w := &pageWatcher{
		ctx:      ctx,
		app:      app,
		log:      app.log.Named("watcher"),
		lastSeen: map[string]time.Time{},
	}
	if db, ok := app.backend.(*storage.DB); ok && db.Path() != "" {
		fs, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		abs, err := filepath.Abs(db.Path())
		if err != nil {
			fs.Close()
			return nil, err
		}
		// Watch the directory so the -wal and -journal siblings are seen too.
		if err := fs.Add(filepath.Dir(abs)); err != nil {
			fs.Close()
			return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
		}
		w.fs = fs
		w.dbFile = abs
	}
	return w, nil
}

// Start begins watching. Should be called once.
func (w *pageWatcher) Start() {
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	if w.fs != nil {
		go w.watchLoop()
	} else {
		go w.pollLoop()
	}
}

// Stop terminates the loop and waits for it to exit.
func (w *pageWatcher) Stop() {
	if w.stopCh == nil {
		return
	}
	close(w.stopCh)
	<-w.done
	w.stopCh = nil
	if w.fs != nil {
		w.fs.Close()
	}
}

func (w *pageWatcher) pollLoop() {
	defer close(w.done)
	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check()
		case <-w.stopCh:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *pageWatcher) watchLoop() {
	defer close(w.done)
	// Stopped timer; reset on each relevant event so a burst of writes
	// results in a single check.
	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if w.relevant(event) {
				debounce.Reset(watchDebounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.Error(err))
		case <-debounce.C:
			w.check()
		case <-w.stopCh:
			return
		case <-w.ctx.Done():
			return
		}
	}
}

func (w *pageWatcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	name, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return strings.HasPrefix(name, w.dbFile)
}

// check reloads every open page whose stored UpdatedAt moved since the last
// check.
func (w *pageWatcher) check() {
	open := w.app.editors.OpenPages()
	if len(open) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(w.ctx, 10*time.Second)
	defer cancel()

	docs, err := w.app.store.ListDocuments(ctx)
	if err != nil {
		w.log.Warn("list pages", zap.Error(err))
		return
	}
	current := make(map[string]time.Time, len(docs))
	for _, d := range docs {
		current[d.ID] = d.UpdatedAt
	}

	w.mu.Lock()
	var changed []string
	for _, id := range open {
		updated, ok := current[id]
		if !ok {
			continue
		}
		if prev, seen := w.lastSeen[id]; !seen || !prev.Equal(updated) {
			changed = append(changed, id)
		}
	}
	w.lastSeen = current
	w.mu.Unlock()

	for _, id := range changed {
		synced, err := w.app.editors.SyncExternal(ctx, id)
		if err != nil {
			w.log.Warn("sync external change", zap.String("page_id", id), zap.Error(err))
			continue
		}
		if synced {
			w.log.Info("reloaded external change", zap.String("page_id", id))
		}
	}
}
