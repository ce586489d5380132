package agentloop

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultGitTimeout = 30 * time.Second
	maxLogCount       = 50
)

// Subcommands the runner will execute. Everything else is refused before
// reaching the shell, so there is no path to mutating the repository.
var allowedGitSubcommands = map[string]bool{
	"diff":     true,
	"status":   true,
	"log":      true,
	"ls-files": true,
}

// GitRunner executes a fixed set of read-only git subcommands inside the
// workspace root. File arguments go through the guard before git sees
// them, so the sensitive-file denylist applies to tracked files too.
type GitRunner struct {
	guard   *PathGuard
	timeout time.Duration
	logger  *zap.Logger
}

func NewGitRunner(guard *PathGuard, logger *zap.Logger) *GitRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GitRunner{guard: guard, timeout: defaultGitTimeout, logger: logger}
}

func (g *GitRunner) run(ctx context.Context, args ...string) (string, error) {
	if len(args) == 0 || !allowedGitSubcommands[args[0]] {
		sub := "(none)"
		if len(args) > 0 {
			sub = args[0]
		}
		return "", &DeniedError{Subject: "git " + sub, Reason: "subcommand is not on the read-only allowlist"}
	}

	runCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "git", args...)
	cmd.Dir = g.guard.Root()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	g.logger.Debug("git command",
		zap.Strings("args", args),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))

	if runCtx.Err() == context.DeadlineExceeded {
		return "", &TimeoutError{Tool: "git " + args[0], Limit: g.timeout}
	}
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", args[0], msg)
	}
	return stdout.String(), nil
}

// resolveFile runs a file argument through the guard and rewrites it as a
// root-relative path for git.
func (g *GitRunner) resolveFile(file string) (string, error) {
	resolved, err := g.guard.Resolve(file)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(g.guard.Root(), resolved)
	if err != nil {
		return "", &DeniedError{Subject: file, Reason: "not inside the project root"}
	}
	return filepath.ToSlash(rel), nil
}

// Diff returns the working tree diff, optionally staged-only or limited to
// a single file. The file argument is resolved through the guard, so diffs
// of sensitive or out-of-root files come back as *DeniedError.
func (g *GitRunner) Diff(ctx context.Context, staged bool, file string) (string, error) {
	args := []string{"diff"}
	if staged {
		args = append(args, "--cached")
	}
	if file != "" {
		rel, err := g.resolveFile(file)
		if err != nil {
			return "", err
		}
		args = append(args, "--", rel)
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "(no changes)", nil
	}
	return out, nil
}

// Status returns short-format status.
func (g *GitRunner) Status(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "status", "--short", "--branch")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "(clean)", nil
	}
	return out, nil
}

// Log returns the most recent commits, capped at maxLogCount.
func (g *GitRunner) Log(ctx context.Context, count int) (string, error) {
	if count <= 0 {
		count = 10
	}
	if count > maxLogCount {
		count = maxLogCount
	}
	return g.run(ctx, "log", "--oneline", "--no-color", "-n", strconv.Itoa(count))
}

// ChangedFiles lists files touched by uncommitted changes. With staged it
// reports the index; otherwise the working tree, optionally including
// untracked files.
func (g *GitRunner) ChangedFiles(ctx context.Context, staged, includeUntracked bool) (string, error) {
	args := []string{"diff", "--name-status"}
	if staged {
		args = append(args, "--cached")
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return "", err
	}
	if !staged && includeUntracked {
		untracked, uerr := g.run(ctx, "ls-files", "--others", "--exclude-standard")
		if uerr == nil {
			for _, line := range strings.Split(strings.TrimSpace(untracked), "\n") {
				if line != "" {
					out += "?\t" + line + "\n"
				}
			}
		}
	}
	if strings.TrimSpace(out) == "" {
		return "(no changed files)", nil
	}
	return out, nil
}
