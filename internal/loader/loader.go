// Package loader drives the depth-first inclusion walk of a composition
// run: it canonicalizes module paths, deduplicates them against the run's
// Session, dispatches module bodies to the script engine matching their
// file extension, and invokes the entry points each body registers.
package loader

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/vk/confgrid/internal/ctxlog"
	"github.com/vk/confgrid/internal/registry"
	"github.com/vk/confgrid/internal/schema"
)

// Engine executes one module file's top-level body. Implementations exist
// per script format and are selected by file extension.
type Engine interface {
	// Extensions lists the filename extensions the engine handles,
	// including the leading dot.
	Extensions() []string
	// Execute runs the module body described by mod. The body marks entry
	// points through mod.Collector and may trigger nested inclusion through
	// mod.Include; it must not invoke entry points itself.
	Execute(ctx context.Context, mod *ModuleContext) error
}

// ModuleContext is what the loader grants an engine for the duration of one
// module body execution.
type ModuleContext struct {
	// Path is the module's canonical absolute path.
	Path string
	// Dir is the module's directory; relative includes resolve against it.
	Dir string
	// Source is the raw file contents.
	Source []byte
	// Object is the configuration object under composition.
	Object *schema.Object
	// Collector is the open marking window for this module's entry points.
	Collector *registry.Collector
	// Include loads further modules in the same session, resolving relative
	// paths against Dir. A module already visited is a silent no-op. It is
	// callable both from the body and from inside an invoked entry point.
	Include func(ctx context.Context, paths []string) error
}

// Option configures a Loader.
type Option func(*Loader)

// WithContentDedup makes the loader additionally skip any module whose file
// contents are byte-identical to one already loaded in the session, even at
// a different path.
func WithContentDedup() Option {
	return func(l *Loader) {
		l.contentDedup = true
	}
}

// Loader resolves, deduplicates, and executes modules. A single Loader is
// reusable across runs; all per-run state, the entry point records
// included, lives in the Session.
type Loader struct {
	engines      map[string]Engine
	contentDedup bool
}

// New creates a Loader dispatching to the given engines. It panics if two
// engines claim the same extension.
func New(engines []Engine, opts ...Option) *Loader {
	l := &Loader{
		engines: make(map[string]Engine),
	}
	for _, eng := range engines {
		for _, ext := range eng.Extensions() {
			if _, exists := l.engines[ext]; exists {
				panic(fmt.Sprintf("engine for extension '%s' already registered", ext))
			}
			l.engines[ext] = eng
		}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Extensions returns all file extensions with a registered engine, sorted.
func (l *Loader) Extensions() []string {
	exts := make([]string, 0, len(l.engines))
	for ext := range l.engines {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Load processes one module: resolve, dedup-check, execute the body, then
// invoke its entry points in declaration order against obj. Loading a
// module that is already in the session's visited set is a no-op, not an
// error. The first failure anywhere in the walk propagates; nothing is
// retried and the session is left as-is for the caller to discard.
func (l *Loader) Load(ctx context.Context, path, baseDir string, sess *Session, obj *schema.Object) error {
	logger := ctxlog.FromContext(ctx)

	canonical, err := Resolve(path, baseDir)
	if err != nil {
		return &ModuleError{Path: path, Err: err}
	}
	if sess.Visited(canonical) {
		logger.Debug("Module already loaded in this session, skipping.", "path", canonical)
		return nil
	}

	ext := filepath.Ext(canonical)
	eng, ok := l.engines[ext]
	if !ok {
		return &ModuleError{Path: canonical, Err: fmt.Errorf("no engine registered for extension %q", ext)}
	}

	src, err := os.ReadFile(canonical)
	if err != nil {
		return &ModuleError{Path: canonical, Err: err}
	}
	sum := blake3.Sum256(src)
	digest := hex.EncodeToString(sum[:])

	if l.contentDedup {
		if first, seen := sess.seenDigest(digest); seen {
			logger.Debug("Identical module contents already loaded, skipping.", "path", canonical, "first_loaded_as", first)
			return nil
		}
	}

	// Visited before execution: a self-include terminates as a no-op.
	rec := sess.begin(canonical, digest)

	mod := &ModuleContext{
		Path:      canonical,
		Dir:       filepath.Dir(canonical),
		Source:    src,
		Object:    obj,
		Collector: sess.registry.Begin(canonical),
		Include: func(ctx context.Context, paths []string) error {
			for _, p := range paths {
				if err := l.Load(ctx, p, filepath.Dir(canonical), sess, obj); err != nil {
					return err
				}
			}
			return nil
		},
	}

	logger.Debug("Executing module body.", "path", canonical)
	if err := eng.Execute(ctx, mod); err != nil {
		return &ModuleError{Path: canonical, Err: err}
	}

	entries := mod.Collector.Done()
	rec.EntryPoints = len(entries)
	logger.Debug("Module body executed.", "path", canonical, "entry_points", len(entries))

	for _, ep := range entries {
		logger.Debug("Invoking entry point.", "module", canonical, "entry_point", ep.Name)
		if err := ep.Fn(ctx, obj); err != nil {
			return &EntryPointError{Path: canonical, Name: ep.Name, Err: err}
		}
	}

	rec.Status = StatusLoaded
	return nil
}
