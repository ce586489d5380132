package agentloop

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func newTestGuard(t *testing.T) (*PathGuard, string) {
	t.Helper()
	root := t.TempDir()
	guard, err := NewPathGuard(root)
	if err != nil {
		t.Fatalf("NewPathGuard: %v", err)
	}
	return guard, guard.Root()
}

func TestPathGuardResolveRelative(t *testing.T) {
	guard, root := newTestGuard(t)
	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644); err != nil {
		t.Fatal(err)
	}

	resolved, err := guard.Resolve("main.go")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved != filepath.Join(root, "main.go") {
		t.Errorf("unexpected resolved path: %s", resolved)
	}
}

func TestPathGuardDeniesEscape(t *testing.T) {
	guard, _ := newTestGuard(t)

	for _, path := range []string{
		"../outside.txt",
		"a/../../outside.txt",
		"/etc/passwd",
	} {
		_, err := guard.Resolve(path)
		if err == nil {
			t.Errorf("%s: expected denial", path)
			continue
		}
		if !IsDenied(err) {
			t.Errorf("%s: expected DeniedError, got %T", path, err)
		}
	}
}

func TestPathGuardDeniesEmptyPath(t *testing.T) {
	guard, _ := newTestGuard(t)
	if _, err := guard.Resolve(""); !IsDenied(err) {
		t.Errorf("expected DeniedError for empty path, got %v", err)
	}
}

func TestPathGuardDeniesSensitiveFiles(t *testing.T) {
	guard, root := newTestGuard(t)

	sensitive := []string{
		".env",
		".env.local",
		"server.pem",
		"deploy.key",
		"id_rsa",
		"id_ed25519",
	}
	for _, name := range sensitive {
		path := filepath.Join(root, name)
		if err := os.WriteFile(path, []byte("secret"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := guard.Resolve(name); !IsDenied(err) {
			t.Errorf("%s: expected denial, got %v", name, err)
		}
	}
}

func TestPathGuardDeniesGitConfig(t *testing.T) {
	guard, root := newTestGuard(t)
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".git", "config"), []byte("[core]"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := guard.Resolve(".git/config"); !IsDenied(err) {
		t.Errorf("expected denial of .git/config, got %v", err)
	}
}

func TestPathGuardAllowsNormalDotfiles(t *testing.T) {
	guard, root := newTestGuard(t)
	if err := os.WriteFile(filepath.Join(root, ".gitignore"), []byte("vendor/"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := guard.Resolve(".gitignore"); err != nil {
		t.Errorf(".gitignore should resolve, got %v", err)
	}
}

func TestPathGuardDeniesSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	guard, root := newTestGuard(t)

	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(secret, filepath.Join(root, "innocent.txt")); err != nil {
		t.Fatal(err)
	}

	if _, err := guard.Resolve("innocent.txt"); !IsDenied(err) {
		t.Errorf("expected denial of symlink escaping the root, got %v", err)
	}
}

func TestPathGuardDeniesSymlinkToSensitive(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	guard, root := newTestGuard(t)

	if err := os.WriteFile(filepath.Join(root, ".env"), []byte("KEY=1"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, ".env"), filepath.Join(root, "config.txt")); err != nil {
		t.Fatal(err)
	}

	if _, err := guard.Resolve("config.txt"); !IsDenied(err) {
		t.Errorf("expected denial of symlink to sensitive file, got %v", err)
	}
}

func TestPathGuardExtraPatterns(t *testing.T) {
	root := t.TempDir()
	guard, err := NewPathGuard(root, "secrets.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(guard.Root(), "secrets.yaml"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := guard.Resolve("secrets.yaml"); !IsDenied(err) {
		t.Errorf("expected denial via extra pattern, got %v", err)
	}
}

func TestIsSensitiveIsCaseInsensitive(t *testing.T) {
	guard, root := newTestGuard(t)
	if !guard.IsSensitive(filepath.Join(root, "SERVER.PEM")) {
		t.Error("expected SERVER.PEM to be sensitive")
	}
}
