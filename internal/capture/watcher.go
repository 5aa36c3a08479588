// Package capture watches an inbox directory for menu photos and imports each
// one as a new menu.
package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	apperrors "github.com/kimhsiao/menuscan/backend/internal/errors"
	"github.com/kimhsiao/menuscan/backend/internal/extract"
	"github.com/kimhsiao/menuscan/backend/internal/logging"
	"github.com/kimhsiao/menuscan/backend/internal/services"
)

// Subdirectories that receive handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// DefaultPattern matches the image types the capture UI produces.
const DefaultPattern = "*.{jpg,jpeg,png,webp}"

const defaultDebounce = 500 * time.Millisecond

// Scanner extracts and imports one menu image.
type Scanner interface {
	ScanMenu(ctx context.Context, ex extract.Extractor, name string, img extract.Image) (*services.MenuWithItems, error)
}

// Config configures a Watcher.
type Config struct {
	Dir      string
	Pattern  string
	Debounce time.Duration
}

// Watcher imports images dropped into Dir. Files are moved to processed/ or
// failed/ once handled, so each file is imported at most once.
type Watcher struct {
	dir       string
	pattern   string
	debounce  time.Duration
	scanner   Scanner
	extractor extract.Extractor
	log       *logging.Logger

	watcher *fsnotify.Watcher
	ready   chan string
	done    chan struct{}
	wg      sync.WaitGroup

	mu      sync.Mutex
	running bool
	timers  map[string]*time.Timer
}

// NewWatcher creates a Watcher. It must be started with Start.
func NewWatcher(cfg Config, scanner Scanner, ex extract.Extractor) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, apperrors.New(apperrors.ErrConfig, "capture inbox directory is required")
	}
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(cfg.Pattern) {
		return nil, apperrors.Newf(apperrors.ErrConfig, "invalid capture pattern %q", cfg.Pattern)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}

	return &Watcher{
		dir:       cfg.Dir,
		pattern:   cfg.Pattern,
		debounce:  cfg.Debounce,
		scanner:   scanner,
		extractor: ex,
		log:       logging.Get().With(map[string]interface{}{"component": "capture"}),
		ready:     make(chan string, 16),
		done:      make(chan struct{}),
		timers:    make(map[string]*time.Timer),
	}, nil
}

// Matches reports whether the base name of path matches the pattern.
// Matching ignores case.
func (w *Watcher) Matches(path string) bool {
	ok, err := doublestar.Match(strings.ToLower(w.pattern), strings.ToLower(filepath.Base(path)))
	return err == nil && ok
}

// Start creates the inbox directories, imports files already present and
// begins watching for new ones.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	for _, dir := range []string{w.dir, filepath.Join(w.dir, ProcessedDir), filepath.Join(w.dir, FailedDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apperrors.Wrap(apperrors.ErrCaptureFailed, "create inbox directory", err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCaptureFailed, "create fsnotify watcher", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return apperrors.Wrap(apperrors.ErrCaptureFailed, "watch inbox "+w.dir, err)
	}
	w.watcher = watcher
	w.running = true

	existing, err := w.pending()
	if err != nil {
		w.log.Warn("failed to list inbox", map[string]interface{}{"dir": w.dir, "error": err.Error()})
	}

	w.wg.Add(1)
	go w.loop(ctx, existing)

	w.log.Info("capture watcher started", map[string]interface{}{"dir": w.dir, "pattern": w.pattern})
	return nil
}

// Stop stops watching and waits for an in-flight import to finish.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// pending lists matching files already in the inbox.
func (w *Watcher) pending() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && w.Matches(entry.Name()) {
			paths = append(paths, filepath.Join(w.dir, entry.Name()))
		}
	}
	return paths, nil
}

func (w *Watcher) loop(ctx context.Context, existing []string) {
	defer w.wg.Done()

	for _, path := range existing {
		select {
		case <-w.done:
			return
		default:
		}
		w.process(ctx, path)
	}

	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				if w.Matches(event.Name) {
					w.schedule(event.Name)
				}
			}

		case path := <-w.ready:
			w.process(ctx, path)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", map[string]interface{}{"error": err.Error()})
		}
	}
}

// schedule processes path once no event for it arrived for the debounce period.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
}

func (w *Watcher) process(ctx context.Context, path string) {
	if _, err := os.Stat(path); err != nil {
		// Already moved or deleted.
		return
	}

	if err := w.importFile(ctx, path); err != nil {
		w.log.WarnWithCode("capture import failed", string(apperrors.CodeOf(err)), err,
			map[string]interface{}{"path": path})
		w.move(path, FailedDir)
		return
	}
	w.move(path, ProcessedDir)
}

func (w *Watcher) importFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCaptureFailed, "read capture", err)
	}

	res, err := w.scanner.ScanMenu(ctx, w.extractor, Stem(path), extract.Image{Data: data})
	if err != nil {
		return err
	}

	w.log.Info("capture imported", map[string]interface{}{
		"path":    path,
		"menu_id": res.MenuID,
		"items":   len(res.Items),
	})
	return nil
}

// move renames path into sub, adding a timestamp when the name is taken.
func (w *Watcher) move(path, sub string) {
	target := filepath.Join(w.dir, sub, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(path)
		target = filepath.Join(w.dir, sub, fmt.Sprintf("%s-%d%s", Stem(path), time.Now().UnixNano(), ext))
	}
	if err := os.Rename(path, target); err != nil {
		w.log.Error("failed to move capture", err, map[string]interface{}{"path": path, "target": target})
	}
}

// Stem returns the file name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
