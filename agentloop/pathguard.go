package agentloop

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultSensitivePatterns block credential-like files even inside the
// project root. Matched case-insensitively against the base name and the
// root-relative path of the resolved target.
var defaultSensitivePatterns = []string{
	".env",
	".env.*",
	"*.pem",
	"*.key",
	"id_rsa",
	"id_ed25519",
	".git/config",
	".git/credentials",
	".netrc",
	".npmrc",
}

// PathGuard validates filesystem paths against a project-root boundary and a
// sensitive-file denylist. The root is absolute and symlink-resolved at
// construction and immutable for the lifetime of a run.
type PathGuard struct {
	root      string
	sensitive []string
}

// NewPathGuard creates a PathGuard jailed to root. Extra denylist patterns
// are added to the built-in sensitive set.
func NewPathGuard(root string, extraPatterns ...string) (*PathGuard, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("pathguard: invalid root %q: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("pathguard: cannot resolve root %q: %w", root, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("pathguard: cannot stat root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pathguard: root %q is not a directory", root)
	}

	patterns := make([]string, 0, len(defaultSensitivePatterns)+len(extraPatterns))
	for _, p := range defaultSensitivePatterns {
		patterns = append(patterns, strings.ToLower(p))
	}
	for _, p := range extraPatterns {
		patterns = append(patterns, strings.ToLower(p))
	}

	return &PathGuard{root: resolved, sensitive: patterns}, nil
}

// Root returns the absolute, symlink-resolved project root.
func (g *PathGuard) Root() string { return g.root }

// Resolve resolves path (absolute or root-relative), rejects anything that
// falls outside the project root once symlinks and ".." segments are
// resolved, and rejects sensitive files. The returned path is absolute.
// Denials are *DeniedError values; existence is not checked here.
func (g *PathGuard) Resolve(path string) (string, error) {
	if path == "" {
		return "", &DeniedError{Subject: path, Reason: "empty path"}
	}

	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(g.root, p)
	}
	p = filepath.Clean(p)

	resolved := resolveSymlinks(p)

	if !g.contains(resolved) {
		return "", &DeniedError{
			Subject: path,
			Reason:  fmt.Sprintf("outside project root %s", g.root),
		}
	}
	if g.IsSensitive(resolved) {
		return "", &DeniedError{Subject: path, Reason: "sensitive file"}
	}
	return resolved, nil
}

// IsSensitive reports whether the resolved path matches the denylist.
// Matching is case-insensitive so case-based filesystem tricks cannot
// bypass the patterns.
func (g *PathGuard) IsSensitive(resolved string) bool {
	base := strings.ToLower(filepath.Base(resolved))
	rel := base
	if r, err := filepath.Rel(g.root, resolved); err == nil {
		rel = strings.ToLower(filepath.ToSlash(r))
	}

	for _, pattern := range g.sensitive {
		if strings.Contains(pattern, "/") {
			if ok, _ := filepath.Match(pattern, rel); ok || strings.HasSuffix(rel, pattern) {
				return true
			}
			continue
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// contains reports whether p is the root or inside it.
func (g *PathGuard) contains(p string) bool {
	if p == g.root {
		return true
	}
	return strings.HasPrefix(p, g.root+string(filepath.Separator))
}

// resolveSymlinks resolves p through symlinks. A dangling symlink resolves
// to its intended target path so policy applies to the target before
// existence is checked; for plainly nonexistent paths the deepest existing
// ancestor is resolved and the remaining segments reattached.
func resolveSymlinks(p string) string {
	return resolveSymlinksDepth(p, 0)
}

func resolveSymlinksDepth(p string, depth int) string {
	if depth > 16 { // symlink loop guard
		return p
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}

	// The final element may be a dangling symlink; follow it to the
	// intended target.
	if target, err := os.Readlink(p); err == nil {
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(p), target)
		}
		return resolveSymlinksDepth(filepath.Clean(target), depth+1)
	}

	dir := p
	var tail []string
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		tail = append([]string{filepath.Base(dir)}, tail...)
		dir = parent
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(append([]string{resolved}, tail...)...)
		}
	}
	return p
}
