// Package testutil provides shared helpers for composition tests: a
// thread-safe log buffer, tempdir module fixtures, and harnesses that run
// either the core runner or the whole app against them.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/confgrid/internal/app"
	"github.com/vk/confgrid/internal/cli"
	"github.com/vk/confgrid/internal/ctxlog"
	"github.com/vk/confgrid/internal/hclmod"
	"github.com/vk/confgrid/internal/loader"
	"github.com/vk/confgrid/internal/luamod"
	"github.com/vk/confgrid/internal/runner"
	"github.com/vk/confgrid/internal/schema"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// WriteFiles writes the given relative-path-to-content map into a fresh
// temporary directory and returns its path. Nested paths create their
// directories.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// HarnessResult holds the outcomes of a composition harness run.
type HarnessResult struct {
	LogOutput string
	Err       error
	Object    *schema.Object
	Session   *loader.Session
	Dir       string
}

// RunComposition wires the real script engines, a loader, and a runner;
// writes files into a tempdir; and composes an object with the given
// sealed fields by loading roots (relative to the tempdir) in order.
func RunComposition(t *testing.T, fields map[string]any, files map[string]string, roots []string, opts ...loader.Option) *HarnessResult {
	t.Helper()

	dir := WriteFiles(t, files)
	obj := schema.New("test", fields)

	ld := loader.New([]loader.Engine{hclmod.New(), luamod.New()}, opts...)

	logBuf := &SafeBuffer{}
	logger := slog.New(slog.NewTextHandler(logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	sess, err := runner.New(ld).Run(ctx, obj, roots, dir)

	return &HarnessResult{
		LogOutput: logBuf.String(),
		Err:       err,
		Object:    obj,
		Session:   sess,
		Dir:       dir,
	}
}

// AppResult holds the outcomes of a full-app harness run.
type AppResult struct {
	Stdout    string
	LogOutput string
	Err       error
}

// RunApp writes the given files into a tempdir, parses args (produced from
// that directory) through the real CLI layer, and runs the whole app.
func RunApp(t *testing.T, files map[string]string, argsFor func(dir string) []string) *AppResult {
	t.Helper()

	dir := WriteFiles(t, files)

	var stdout bytes.Buffer
	logBuf := &SafeBuffer{}

	cfg, shouldExit, err := cli.Parse(argsFor(dir), &stdout)
	if err != nil {
		return &AppResult{Stdout: stdout.String(), Err: err}
	}
	if shouldExit {
		return &AppResult{Stdout: stdout.String()}
	}

	a := app.NewApp(&stdout, logBuf, cfg)
	runErr := a.Run(context.Background())

	return &AppResult{
		Stdout:    stdout.String(),
		LogOutput: logBuf.String(),
		Err:       runErr,
	}
}
