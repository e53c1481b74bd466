// Package watcher triggers re-indexing when HTML files under the roots
// change.
package watcher

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/dshills/docgraph/internal/logger"
	"github.com/dshills/docgraph/internal/walker"
)

// DefaultDebounce is the quiet period before a burst of events fires
const DefaultDebounce = 2 * time.Second

// Config configures a Watcher
type Config struct {
	Roots    []string
	Debounce time.Duration
	OnChange func() // Called once per debounced burst
	Logger   *zerolog.Logger
}

// Watcher watches every directory under the roots and collapses HTML
// file events into single OnChange calls.
type Watcher struct {
	watcher  *fsnotify.Watcher
	roots    []string
	debounce time.Duration
	onChange func()
	logger   zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a watcher. Nothing is watched until Start.
func New(cfg Config) (*Watcher, error) {
	if cfg.OnChange == nil {
		return nil, errors.New("watcher: OnChange is required")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		roots:    cfg.Roots,
		debounce: cfg.Debounce,
		onChange: cfg.OnChange,
		logger:   logger.Component("watcher"),
		done:     make(chan struct{}),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if cfg.Logger != nil {
		w.logger = *cfg.Logger
	}
	return w, nil
}

// Start adds every directory under the roots and begins processing events.
// Missing roots are skipped with a warning.
func (w *Watcher) Start() error {
	watched := 0
	for _, root := range w.roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			w.logger.Warn().Str("root", root).Msg("root not found, not watching")
			continue
		}
		if err := w.addRecursive(root); err != nil {
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}
		watched++
	}

	w.wg.Add(1)
	go w.eventLoop()

	w.logger.Info().Int("roots", watched).Dur("debounce", w.debounce).Msg("watcher started")
	return nil
}

// Stop stops the watcher and cancels a pending trigger
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()

		err = w.watcher.Close()
		w.wg.Wait()
		w.logger.Info().Msg("watcher stopped")
	})
	return err
}

// Watching returns the directories currently watched
func (w *Watcher) Watching() []string {
	return w.watcher.WatchList()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.hidden(event.Name) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn().Err(err).Str("path", event.Name).Msg("failed to watch new directory")
			}
			// Files may have landed before the watch was added
			w.schedule()
			return
		}
	}

	if !walker.IsHTML(event.Name) {
		return
	}
	if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.logger.Debug().
			Str("file", filepath.Base(event.Name)).
			Str("op", event.Op.String()).
			Msg("file change detected")
		w.schedule()
	}
}

// schedule restarts the debounce timer
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.done:
			return
		default:
		}
		w.logger.Debug().Msg("changes settled, triggering re-index")
		w.onChange()
	})
}

// addRecursive watches dir and every non-hidden directory beneath it
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			w.logger.Warn().Err(err).Str("path", p).Msg("skipping unreadable directory")
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(p); err != nil {
			w.logger.Warn().Err(err).Str("path", p).Msg("failed to watch path")
		}
		return nil
	})
}

// hidden reports whether p sits in a dot-directory or is a dotfile below
// its root. Components of the root itself are not considered.
func (w *Watcher) hidden(p string) bool {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if len(part) > 1 && part[0] == '.' {
				return true
			}
		}
		return false
	}
	return false
}
