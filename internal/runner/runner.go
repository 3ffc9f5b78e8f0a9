// Package runner is the top-level orchestrator of a composition run: it
// owns one load session and drives the loader across the initial list of
// module paths.
package runner

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/vk/confgrid/internal/ctxlog"
	"github.com/vk/confgrid/internal/loader"
	"github.com/vk/confgrid/internal/schema"
)

// Runner executes composition runs against a shared Loader. It carries no
// per-run state; every Run call creates and discards its own session.
type Runner struct {
	loader *loader.Loader
}

// New creates a Runner on top of the given loader.
func New(l *loader.Loader) *Runner {
	return &Runner{loader: l}
}

// Run composes obj by loading each root module path in order within one
// fresh session. Relative root paths resolve against baseDir. The first
// failure aborts the run; mutations already applied to obj by completed
// entry points are kept, there is no rollback. On success the session is
// returned for inspection of what was loaded.
func (r *Runner) Run(ctx context.Context, obj *schema.Object, paths []string, baseDir string) (*loader.Session, error) {
	logger := ctxlog.FromContext(ctx)

	base, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("absolutize base directory %s: %w", baseDir, err)
	}

	sess := loader.NewSession()
	logger.Debug("Composition run starting.", "object", obj.Name(), "root_modules", len(paths), "base_dir", base)

	for _, p := range paths {
		if err := r.loader.Load(ctx, p, base, sess, obj); err != nil {
			return nil, err
		}
	}

	logger.Debug("Composition run finished.", "modules_loaded", len(sess.Modules()))
	return sess, nil
}
