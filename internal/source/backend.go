package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/medstack-ops/envctl/internal/system"
)

// Backend updates checkouts of one version control system.
type Backend interface {
	// Name returns the backend name (e.g., "git", "jj").
	Name() string

	// IsRepo checks if path is a checkout managed by this backend.
	IsRepo(path string) bool

	// Revision returns the checked-out revision.
	Revision(ctx context.Context, path string) (string, error)

	// Update brings the checkout up to date without discarding local changes.
	Update(ctx context.Context, path string) error
}

// GitBackend updates git work trees with fast-forward pulls.
type GitBackend struct {
	fs   system.FileSystem
	exec system.CommandExecutor
}

func (b *GitBackend) Name() string {
	return "git"
}

func (b *GitBackend) IsRepo(path string) bool {
	// .git can be a directory (normal repo) or a file (worktree)
	return b.fs.Exists(filepath.Join(path, ".git"))
}

func (b *GitBackend) Revision(ctx context.Context, path string) (string, error) {
	out, err := b.exec.Execute(ctx, "git", "-C", path, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (b *GitBackend) Update(ctx context.Context, path string) error {
	out, err := b.exec.Execute(ctx, "git", "-C", path, "pull", "--ff-only")
	if err != nil {
		return fmt.Errorf("git pull failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// JJBackend updates jj repositories. Fetching moves remote bookmarks
// only; the working-copy commit is left where it is.
type JJBackend struct {
	fs   system.FileSystem
	exec system.CommandExecutor
}

func (b *JJBackend) Name() string {
	return "jj"
}

func (b *JJBackend) IsRepo(path string) bool {
	return b.fs.IsDir(filepath.Join(path, ".jj"))
}

func (b *JJBackend) Revision(ctx context.Context, path string) (string, error) {
	out, err := b.exec.Execute(ctx, "jj", "-R", path, "log", "-r", "@", "--no-graph", "-T", "commit_id")
	if err != nil {
		return "", fmt.Errorf("failed to get working-copy commit: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (b *JJBackend) Update(ctx context.Context, path string) error {
	out, err := b.exec.Execute(ctx, "jj", "-R", path, "git", "fetch")
	if err != nil {
		return fmt.Errorf("jj git fetch failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

// DetectBackend returns the backend managing path, or nil for a plain
// directory. jj is checked first since colocated jj repos also contain .git.
func DetectBackend(path string, fsys system.FileSystem, exec system.CommandExecutor) Backend {
	jj := &JJBackend{fs: fsys, exec: exec}
	if jj.IsRepo(path) {
		return jj
	}
	git := &GitBackend{fs: fsys, exec: exec}
	if git.IsRepo(path) {
		return git
	}
	return nil
}
