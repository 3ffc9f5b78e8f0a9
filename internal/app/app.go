// Package app wires the composition engine together: logger, script
// engines, loader, and runner, behind a single Run call the CLI and the
// test harness share.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vk/confgrid/internal/ctxlog"
	"github.com/vk/confgrid/internal/fsutil"
	"github.com/vk/confgrid/internal/hclmod"
	"github.com/vk/confgrid/internal/loader"
	"github.com/vk/confgrid/internal/luamod"
	"github.com/vk/confgrid/internal/runner"
	"github.com/vk/confgrid/internal/schema"
	"github.com/vk/confgrid/internal/schemafile"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config

	loader *loader.Loader
	runner *runner.Runner
}

// NewApp is the constructor for the main application. Rendered output goes
// to outW, logs to logW, so piping the composed configuration stays clean.
func NewApp(outW, logW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg, logW)
	logger.Debug("Logger configured successfully.")

	var opts []loader.Option
	if cfg.DedupeContent {
		opts = append(opts, loader.WithContentDedup())
	}
	ld := loader.New([]loader.Engine{hclmod.New(), luamod.New()}, opts...)
	logger.Debug("Script engines registered.", "extensions", ld.Extensions())

	return &App{
		outW:   outW,
		logger: logger,
		config: cfg,
		loader: ld,
		runner: runner.New(ld),
	}
}

// Run executes one composition: build the sealed object from the schema
// declaration, load the root modules in order, then render the resulting
// field values. The first failure anywhere in the inclusion walk aborts
// the run and surfaces with full attribution.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	obj, err := schemafile.Load(ctx, a.config.SchemaPath)
	if err != nil {
		return fmt.Errorf("failed to load schema declaration: %w", err)
	}
	a.logger.Debug("Configuration object constructed.", "object", obj.Name(), "fields", obj.Fields())

	paths, err := a.expandModulePaths()
	if err != nil {
		return err
	}

	sess, err := a.runner.Run(ctx, obj, paths, a.config.BaseDir)
	if err != nil {
		return err
	}
	a.logger.Info("Composition finished.", "object", obj.Name(), "modules_loaded", len(sess.Modules()))

	return a.render(obj)
}

// expandModulePaths resolves the configured root paths: files pass through,
// directories expand to the module files beneath them in sorted order.
// Directory expansion yields absolute paths so they survive the loader's
// own base directory joining untouched.
func (a *App) expandModulePaths() ([]string, error) {
	base, err := filepath.Abs(a.config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("absolutize base directory %s: %w", a.config.BaseDir, err)
	}

	var out []string
	for _, p := range a.config.ModulePaths {
		full := p
		if !filepath.IsAbs(full) {
			full = filepath.Join(base, p)
		}
		info, statErr := os.Stat(full)
		if statErr != nil {
			return nil, fmt.Errorf("stat module path %s: %w", p, statErr)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		found, err := fsutil.FindModuleFiles(full, a.loader.Extensions())
		if err != nil {
			return nil, fmt.Errorf("scan module directory %s: %w", p, err)
		}
		if len(found) == 0 {
			a.logger.Warn("No module files found in directory.", "path", p)
		}
		out = append(out, found...)
	}
	return out, nil
}

// render writes the composed field values to outW in the configured format.
func (a *App) render(obj *schema.Object) error {
	if a.config.Output == "json" {
		data, err := json.MarshalIndent(obj.Snapshot(), "", "  ")
		if err != nil {
			return fmt.Errorf("encode configuration: %w", err)
		}
		_, err = fmt.Fprintln(a.outW, string(data))
		return err
	}

	snapshot := obj.Snapshot()
	for _, name := range obj.Fields() {
		val, err := json.Marshal(snapshot[name])
		if err != nil {
			return fmt.Errorf("encode field %q: %w", name, err)
		}
		if _, err := fmt.Fprintf(a.outW, "%s = %s\n", name, val); err != nil {
			return err
		}
	}
	return nil
}
