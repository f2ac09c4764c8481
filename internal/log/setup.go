// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/tombarlow/storeharvester/internal/rotatelog"
)

// handlerKind distinguishes the two handler types Setup ever attaches to
// the root logger.
type handlerKind int

const (
	handlerConsole handlerKind = iota
	handlerRotatingFile
)

// handlerKey identifies one attached handler by kind and, for file
// handlers, the path it writes to. Two Setup calls requesting the same
// (kind, path) pair are coalesced into the existing handler rather than
// adding a duplicate, which is what makes repeated Setup calls idempotent.
type handlerKey struct {
	kind handlerKind
	path string
}

var (
	setupMu  sync.Mutex
	attached = make(map[handlerKey]bool)
	root     *slog.Logger
	rotators = make(map[string]*rotatelog.Writer)
)

// SetupOptions configures one call to Setup. A zero-valued FilePath means
// no rotating file handler is requested.
type SetupOptions struct {
	Level     string
	Format    Format
	Console   io.Writer // defaults to os.Stderr when nil and Console handler requested
	AddSource bool

	// FilePath, when non-empty, attaches a rotating file handler writing
	// to this path (logs/scraper.log per the default layout).
	FilePath       string
	FileMaxBytes   int64
	FileMaxBackups int
	FileCompress   bool
}

// Setup idempotently builds the process-wide root logger: at most one
// console handler and one rotating file handler per distinct path,
// regardless of how many times Setup is called or from how many
// goroutines. Concurrent callers are serialized by setupMu so two tasks
// racing to initialize logging at startup never attach duplicate handlers.
// This is the implementation backing the "setup_logging is idempotent"
// invariant.
func Setup(opts SetupOptions) *slog.Logger {
	setupMu.Lock()
	defer setupMu.Unlock()

	level := parseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}

	var handlers []slog.Handler

	consoleKey := handlerKey{kind: handlerConsole}
	if !attached[consoleKey] {
		console := opts.Console
		if console == nil {
			console = os.Stderr
		}
		handlers = append(handlers, newHandler(opts.Format, console, handlerOpts))
		attached[consoleKey] = true
	}

	if opts.FilePath != "" {
		fileKey := handlerKey{kind: handlerRotatingFile, path: opts.FilePath}
		if !attached[fileKey] {
			w, err := rotatelog.New(rotatelog.Config{
				Path:       opts.FilePath,
				MaxBytes:   opts.FileMaxBytes,
				MaxBackups: opts.FileMaxBackups,
				Compress:   opts.FileCompress,
			})
			if err == nil {
				rotators[opts.FilePath] = w
				handlers = append(handlers, newHandler(opts.Format, w, handlerOpts))
				attached[fileKey] = true
			}
		}
	}

	if root == nil {
		if len(handlers) == 0 {
			// Nothing new to attach and no prior root: fall back to a
			// single console handler so callers always get a usable logger.
			root = slog.New(newHandler(opts.Format, os.Stderr, handlerOpts))
		} else {
			root = slog.New(fanOutHandler{handlers: handlers})
		}
	} else if len(handlers) > 0 {
		existing, ok := root.Handler().(fanOutHandler)
		if !ok {
			existing = fanOutHandler{handlers: []slog.Handler{root.Handler()}}
		}
		existing.handlers = append(existing.handlers, handlers...)
		root = slog.New(existing)
	}

	return root
}

// Reset clears every registered handler, for use between test cases that
// each want their own idempotent-Setup sequence.
func Reset() {
	setupMu.Lock()
	defer setupMu.Unlock()
	for _, w := range rotators {
		w.Close()
	}
	attached = make(map[handlerKey]bool)
	rotators = make(map[string]*rotatelog.Writer)
	root = nil
}

func newHandler(format Format, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if format == FormatText {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

// fanOutHandler dispatches every Handle call to each wrapped handler in
// turn, implementing the "one console handler and one rotating file
// handler on the root logger" requirement without slog needing native
// multi-handler support.
type fanOutHandler struct {
	handlers []slog.Handler
}

func (f fanOutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanOutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanOutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return fanOutHandler{handlers: next}
}

func (f fanOutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return fanOutHandler{handlers: next}
}

var _ slog.Handler = fanOutHandler{}
