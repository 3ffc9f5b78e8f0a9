package loader

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Resolve normalizes a possibly-relative module path against baseDir into
// the canonical absolute form used for deduplication: absolute, cleaned of
// relative segments, with symlinks evaluated. The module file must exist,
// since symlink evaluation touches the filesystem.
func Resolve(path, baseDir string) (string, error) {
	if path == "" {
		return "", errors.New("empty module path")
	}
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("absolutize %s: %w", p, err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", abs, err)
	}
	return canonical, nil
}
