package walker

import (
	"context"
	"errors"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/docgraph/internal/logger"
	"github.com/dshills/docgraph/pkg/types"
)

// Entry is one discovered source file
type Entry struct {
	Path     string        // Absolute path
	Root     string        // Absolute root the file was found under
	Category types.DocType // From Classify
}

// Walker discovers HTML files beneath a set of roots
type Walker struct {
	logger zerolog.Logger
}

// New creates a Walker. A nil logger falls back to the global one.
func New(log *zerolog.Logger) *Walker {
	w := &Walker{logger: logger.Component("walker")}
	if log != nil {
		w.logger = *log
	}
	return w
}

// Walk lists files from all roots using the package default walker.
func Walk(ctx context.Context, roots []string) iter.Seq2[Entry, error] {
	return New(nil).Walk(ctx, roots)
}

// Walk yields every .html file under roots in discovery order. Roots that
// do not exist are skipped with a warning. When ctx is cancelled the
// sequence yields ctx.Err() once and stops.
func (w *Walker) Walk(ctx context.Context, roots []string) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for _, root := range roots {
			abs, err := filepath.Abs(root)
			if err != nil {
				if !yield(Entry{}, err) {
					return
				}
				continue
			}

			info, err := os.Stat(abs)
			if err != nil || !info.IsDir() {
				w.logger.Warn().Str("root", abs).Msg("root directory missing, skipping")
				continue
			}

			stopped := false
			walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if err != nil {
					// Unreadable subtree: report it and keep walking siblings
					if !yield(Entry{Path: path, Root: abs}, err) {
						stopped = true
						return filepath.SkipAll
					}
					if d != nil && d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				if d.IsDir() {
					if path != abs && strings.HasPrefix(d.Name(), ".") {
						return filepath.SkipDir
					}
					return nil
				}
				if !IsHTML(path) {
					return nil
				}
				if !yield(Entry{Path: path, Root: abs, Category: Classify(path)}, nil) {
					stopped = true
					return filepath.SkipAll
				}
				return nil
			})
			if stopped {
				return
			}
			if walkErr != nil {
				if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
					yield(Entry{}, walkErr)
					return
				}
				if !yield(Entry{Root: abs}, walkErr) {
					return
				}
			}
		}
	}
}

// IsHTML reports whether path has an .html extension, any case.
func IsHTML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".html")
}

// Classify maps a path to its document category by directory segment:
// "tasks" or "*-tasks" marks a task, then "memories" a session log;
// anything else is documentation.
func Classify(path string) types.DocType {
	segs := strings.Split(filepath.ToSlash(filepath.Dir(path)), "/")
	for _, seg := range segs {
		s := strings.ToLower(seg)
		if s == "tasks" || strings.HasSuffix(s, "-tasks") {
			return types.DocTask
		}
	}
	for _, seg := range segs {
		if strings.EqualFold(seg, "memories") {
			return types.DocMemory
		}
	}
	return types.DocDocumentation
}
