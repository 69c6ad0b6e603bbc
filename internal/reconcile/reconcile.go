package reconcile

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/medstack-ops/envctl/internal/errors"
	"github.com/medstack-ops/envctl/internal/logging"
	"github.com/medstack-ops/envctl/internal/retry"
	"github.com/medstack-ops/envctl/internal/runtime"
	"github.com/medstack-ops/envctl/internal/system"
)

// Default removal policy.
const (
	DefaultAttempts = 3
	DefaultDelay    = 2 * time.Second
	DefaultSettle   = 500 * time.Millisecond
)

// ReleaseFunc frees whatever holds files under path.
type ReleaseFunc func(ctx context.Context, path string) error

// Remover deletes directory trees.
type Remover struct {
	fs      system.FileSystem
	policy  retry.Policy
	release ReleaseFunc
	settle  time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option configures a Remover.
type Option func(*Remover)

// WithPolicy sets the retry policy.
func WithPolicy(p retry.Policy) Option {
	return func(r *Remover) {
		r.policy = p
	}
}

// WithRelease sets the hook run before each removal attempt.
func WithRelease(fn ReleaseFunc) Option {
	return func(r *Remover) {
		r.release = fn
	}
}

// WithSettle sets the pause between removing and re-checking the path.
func WithSettle(d time.Duration) Option {
	return func(r *Remover) {
		r.settle = d
	}
}

// NewRemover creates a Remover on fsys.
func NewRemover(fsys system.FileSystem, opts ...Option) *Remover {
	r := &Remover{
		fs:     fsys,
		policy: retry.Fixed(DefaultAttempts, DefaultDelay),
		settle: DefaultSettle,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RemoveSafely removes path with the default file system.
func RemoveSafely(ctx context.Context, path string, policy retry.Policy, release ReleaseFunc) error {
	return NewRemover(system.DefaultFS(), WithPolicy(policy), WithRelease(release)).RemoveSafely(ctx, path)
}

// RemoveSafely removes path and everything below it. A path that does not
// exist is already removed. After the policy's attempts are spent the
// error is a directory-removal error.
func (r *Remover) RemoveSafely(ctx context.Context, path string) error {
	if path == "" || filepath.Clean(path) == string(filepath.Separator) {
		return errors.ValidationError(fmt.Sprintf("refusing to remove %q", path))
	}

	policy := r.policy
	policy.OnRetry = func(attempt int, err error) {
		logging.Warn("directory removal failed, retrying", "path", path, "attempt", attempt, "error", err)
	}

	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		return r.attempt(ctx, path)
	})
	if err == nil {
		return nil
	}
	return errors.DirectoryRemovalError(path, max(policy.Attempts, 1), err)
}

func (r *Remover) attempt(ctx context.Context, path string) error {
	if !r.fs.Exists(path) {
		return nil
	}

	if err := r.makeWritable(path); err != nil {
		logging.Debug("could not clear read-only bits", "path", path, "error", err)
	}

	if r.release != nil {
		if err := r.release(ctx, path); err != nil {
			logging.Warn("release hook failed", "path", path, "error", err)
		}
	}

	removeErr := r.fs.RemoveAll(path)

	if r.settle > 0 {
		if err := r.sleep(ctx, r.settle); err != nil {
			return err
		}
	}
	if !r.fs.Exists(path) {
		return nil
	}
	if removeErr != nil {
		return removeErr
	}
	return fmt.Errorf("%s still present after removal", path)
}

// makeWritable adds owner write permission to path and everything below
// it. Symlinks are left alone. The first error is returned after the walk
// completes.
func (r *Remover) makeWritable(path string) error {
	info, err := r.fs.Stat(path)
	if err != nil {
		return err
	}

	var first error
	keep := func(err error) {
		if first == nil {
			first = err
		}
	}

	mode := info.Mode().Perm()
	want := mode | 0o200
	if info.IsDir() {
		want |= 0o700
	}
	if want != mode {
		if err := r.fs.Chmod(path, want); err != nil {
			keep(err)
		}
	}
	if !info.IsDir() {
		return first
	}

	entries, err := r.fs.ReadDir(path)
	if err != nil {
		keep(err)
		return first
	}
	for _, e := range entries {
		if e.Type()&fs.ModeSymlink != 0 {
			continue
		}
		if err := r.makeWritable(filepath.Join(path, e.Name())); err != nil {
			keep(err)
		}
	}
	return first
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ReleaseMounts returns a ReleaseFunc that stops running containers with
// the given labels that bind-mount anything under path. Containers whose
// mounts the back end cannot report are stopped too.
func ReleaseMounts(rt runtime.Runtime, labels map[string]string) ReleaseFunc {
	return func(ctx context.Context, path string) error {
		found, err := rt.ListContainers(ctx, runtime.Filter{Labels: labels})
		if err != nil {
			return err
		}
		var errs []error
		for _, c := range found {
			if c.Mounts != nil && !mountsUnder(c.Mounts, path) {
				continue
			}
			logging.Debug("stopping container holding directory", "container", c.Name, "path", path)
			if err := rt.StopContainer(ctx, c.ID); err != nil && !errors.Is(err, runtime.ErrNotFound) {
				errs = append(errs, fmt.Errorf("stop %s: %w", c.Name, err))
			}
		}
		return errors.Join(errs...)
	}
}

func mountsUnder(mounts []string, path string) bool {
	root := filepath.Clean(path)
	for _, m := range mounts {
		m = filepath.Clean(m)
		if m == root || strings.HasPrefix(m, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
