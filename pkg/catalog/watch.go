package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a [Watcher] waits for events to settle before
// reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads a catalog file whenever it changes on disk.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange func(*Snapshot)
	path     string
	debounce time.Duration
}

// WatcherOpt configures a [Watcher].
type WatcherOpt func(*Watcher)

// WithDebounce sets the quiet period after the last event before the
// catalog is reloaded.
func WithDebounce(d time.Duration) WatcherOpt {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a [Watcher] for the catalog at path. onChange is
// called with every successfully reloaded snapshot; files that fail to
// load are logged and skipped, so the previous snapshot stays in use.
// A burst of events is coalesced into a single reload.
func NewWatcher(path string, onChange func(*Snapshot), opts ...WatcherOpt) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("get absolute path: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory: atomic writes replace the file, which would
	// drop a watch held on the file itself.
	err = w.Add(filepath.Dir(abs))
	if err != nil {
		_ = w.Close()

		return nil, fmt.Errorf("add path to watcher: %w", err)
	}

	cw := &Watcher{
		watcher:  w,
		onChange: onChange,
		path:     abs,
		debounce: DefaultDebounce,
	}

	for _, opt := range opts {
		opt(cw)
	}

	return cw, nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(evt.Name) != w.path {
				continue
			}

			if !evt.Has(fsnotify.Create | fsnotify.Write | fsnotify.Rename) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil

			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

			slog.Error("watch catalog", slog.Any("err", err))
		}
	}
}

func (w *Watcher) reload() {
	s, err := Load(w.path)
	if err != nil {
		slog.Warn("reload catalog", slog.String("path", w.path), slog.Any("err", err))

		return
	}

	slog.Info("catalog reloaded",
		slog.String("path", w.path),
		slog.Int("rules", s.Len()),
	)

	w.onChange(s)
}

// Close stops watching.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	if err != nil {
		return fmt.Errorf("close watcher: %w", err)
	}

	return nil
}
