package agentloop

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Directories skipped entirely when listing. These are dependency and
// build-output trees that drown out the code the model actually wants.
var skippedDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	"target":       true,
	"dist":         true,
	"build":        true,
	".venv":        true,
	"venv":         true,
}

const maxListEntries = 100

// Workspace exposes read-only filesystem access, every path funneled
// through the PathGuard.
type Workspace struct {
	guard  *PathGuard
	logger *zap.Logger
}

func NewWorkspace(guard *PathGuard, logger *zap.Logger) *Workspace {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{guard: guard, logger: logger}
}

// Root returns the jail root.
func (w *Workspace) Root() string {
	return w.guard.Root()
}

// ReadFile returns the contents of path. The caller bounds the output.
func (w *Workspace) ReadFile(path string) (string, error) {
	resolved, err := w.guard.Resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &NotFoundError{Path: path}
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", &MalformedError{Detail: fmt.Sprintf("%s is a directory, not a file", path)}
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	w.logger.Debug("read file", zap.String("path", path), zap.Int("bytes", len(data)))
	return string(data), nil
}

// ListDirectory lists entries under path, optionally filtered by a glob
// pattern on the entry name. Hidden entries and dependency directories are
// skipped, and the listing is capped at maxListEntries with a note when
// entries were dropped.
func (w *Workspace) ListDirectory(path, pattern string) (string, error) {
	resolved, err := w.guard.Resolve(path)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &NotFoundError{Path: path}
		}
		return "", fmt.Errorf("list %s: %w", path, err)
	}

	var names []string
	skipped := 0
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() && skippedDirs[name] {
			continue
		}
		if pattern != "" {
			ok, err := filepath.Match(pattern, name)
			if err != nil {
				return "", &MalformedError{Detail: fmt.Sprintf("invalid pattern %q", pattern), Cause: err}
			}
			if !ok {
				continue
			}
		}
		if w.guard.IsSensitive(filepath.Join(resolved, name)) {
			continue
		}
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > maxListEntries {
		skipped = len(names) - maxListEntries
		names = names[:maxListEntries]
	}

	if len(names) == 0 {
		return "(empty)", nil
	}
	out := strings.Join(names, "\n")
	if skipped > 0 {
		out += fmt.Sprintf("\n[%d more entries not shown]", skipped)
	}
	return out, nil
}

// FileInfo returns size, type, and modification time for path.
func (w *Workspace) FileInfo(path string) (string, error) {
	resolved, err := w.guard.Resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &NotFoundError{Path: path}
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}
	return fmt.Sprintf("path: %s\ntype: %s\nsize: %d bytes\nmodified: %s",
		path, kind, info.Size(), info.ModTime().Format("2006-01-02 15:04:05")), nil
}
