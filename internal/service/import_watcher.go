package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/domain"
	"github.com/JohnKotowski/pricingsaas-canva-app-sub000/internal/log"
)

// ─────────────────────────────────────────────────────────────
// ImportWatcher: imports template files dropped into a directory
// ─────────────────────────────────────────────────────────────

// DefaultImportDebounce is how long a file must stay quiet before import.
const DefaultImportDebounce = 500 * time.Millisecond

// Importer is the part of TemplateService the watcher needs.
type Importer interface {
	ImportFile(ctx context.Context, path string) (*domain.Template, error)
}

// ImportWatcher watches one directory and imports every *.json file that
// is created or written there, once writes have settled.
type ImportWatcher struct {
	dir      string
	importer Importer
	debounce time.Duration
	logger   *slog.Logger

	// OnImport, when set, is called after each attempt.
	OnImport func(path string, t *domain.Template, err error)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
	timers  map[string]*time.Timer
}

func NewImportWatcher(dir string, importer Importer) *ImportWatcher {
	return &ImportWatcher{
		dir:      dir,
		importer: importer,
		debounce: DefaultImportDebounce,
		logger:   log.WithComponent("import-watcher"),
		timers:   make(map[string]*time.Timer),
	}
}

// SetDebounce changes the quiet period; call before Start.
func (w *ImportWatcher) SetDebounce(d time.Duration) { w.debounce = d }

// Start begins watching. It creates the directory when missing.
func (w *ImportWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return fmt.Errorf("import watcher already started")
	}
	abs, err := filepath.Abs(w.dir)
	if err != nil {
		return fmt.Errorf("bad watch dir %q: %w", w.dir, err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(abs); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %q: %w", abs, err)
	}
	w.dir = abs
	w.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.loop(watchCtx, watcher, w.done)

	w.logger.Info("watching for templates", "dir", abs)
	return nil
}

func (w *ImportWatcher) loop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "err", err)
		}
	}
}

// schedule (re)starts the quiet-period timer for path.
func (w *ImportWatcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		t, err := w.importer.ImportFile(ctx, path)
		if err != nil {
			w.logger.Warn("template import failed", "path", path, "err", err)
		} else {
			w.logger.Info("template imported", "path", path, "id", t.ID)
		}
		if w.OnImport != nil {
			w.OnImport(path, t, err)
		}
	})
}

// Stop ends watching and drops pending imports.
func (w *ImportWatcher) Stop() {
	w.mu.Lock()
	cancel, watcher, done := w.cancel, w.watcher, w.done
	w.cancel, w.watcher, w.done = nil, nil, nil
	for p, t := range w.timers {
		t.Stop()
		delete(w.timers, p)
	}
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if watcher != nil {
		watcher.Close()
	}
	if done != nil {
		<-done
	}
}
