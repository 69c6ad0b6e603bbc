package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medstack-ops/envctl/internal/errors"
	"github.com/medstack-ops/envctl/internal/retry"
	"github.com/medstack-ops/envctl/internal/runtime"
	"github.com/medstack-ops/envctl/internal/system"
)

// stuckFS ignores the first stuck RemoveAll calls, like a tree whose
// files are still held open.
type stuckFS struct {
	*system.MockFS
	stuck   int
	removes int
}

func (s *stuckFS) RemoveAll(path string) error {
	s.removes++
	if s.removes <= s.stuck {
		return nil
	}
	return s.MockFS.RemoveAll(path)
}

func newStuckFS(stuck int) *stuckFS {
	m := system.NewMockFS()
	m.AddFile("/envs/clinic-dev/openemr/.env", []byte("A=1\n"), 0o444)
	m.AddFile("/envs/clinic-dev/jitsi/.jitsi-meet-cfg/web/config.js", []byte("x"), 0o400)
	return &stuckFS{MockFS: m, stuck: stuck}
}

func fastRemover(fsys system.FileSystem, attempts int, opts ...Option) *Remover {
	opts = append([]Option{WithPolicy(retry.Fixed(attempts, 0)), WithSettle(0)}, opts...)
	return NewRemover(fsys, opts...)
}

func TestRemoveSafely_AbsentPath(t *testing.T) {
	fsys := newStuckFS(0)
	r := fastRemover(fsys, 3)

	require.NoError(t, r.RemoveSafely(context.Background(), "/envs/other-dev"))
	assert.Equal(t, 0, fsys.removes)
}

func TestRemoveSafely_RetriesUntilGone(t *testing.T) {
	fsys := newStuckFS(2)
	var released []string
	r := fastRemover(fsys, 3, WithRelease(func(ctx context.Context, path string) error {
		released = append(released, path)
		return nil
	}))

	require.NoError(t, r.RemoveSafely(context.Background(), "/envs/clinic-dev"))
	assert.False(t, fsys.Exists("/envs/clinic-dev"))
	assert.Equal(t, 3, fsys.removes)
	assert.Len(t, released, 3)
}

func TestRemoveSafely_ClearsReadOnlyBits(t *testing.T) {
	fsys := newStuckFS(1)
	r := fastRemover(fsys, 1)

	err := r.RemoveSafely(context.Background(), "/envs/clinic-dev")
	require.Error(t, err)

	info, statErr := fsys.Stat("/envs/clinic-dev/openemr/.env")
	require.NoError(t, statErr)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	info, statErr = fsys.Stat("/envs/clinic-dev/jitsi/.jitsi-meet-cfg/web/config.js")
	require.NoError(t, statErr)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestRemoveSafely_GivesUp(t *testing.T) {
	fsys := newStuckFS(10)
	r := fastRemover(fsys, 3)

	err := r.RemoveSafely(context.Background(), "/envs/clinic-dev")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindDirectoryRemoval))
	assert.Equal(t, errors.ExitDirectoryRemoval, errors.GetExitCode(err))
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, fsys.removes)
}

func TestRemoveSafely_RemoveError(t *testing.T) {
	fsys := newStuckFS(0)
	fsys.RemoveAllErr = os.ErrPermission
	r := fastRemover(fsys, 2)

	err := r.RemoveSafely(context.Background(), "/envs/clinic-dev")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestRemoveSafely_ReleaseErrorDoesNotStopRemoval(t *testing.T) {
	fsys := newStuckFS(0)
	r := fastRemover(fsys, 1, WithRelease(func(ctx context.Context, path string) error {
		return assert.AnError
	}))

	require.NoError(t, r.RemoveSafely(context.Background(), "/envs/clinic-dev"))
}

func TestRemoveSafely_RefusesRoot(t *testing.T) {
	r := fastRemover(newStuckFS(0), 1)

	for _, p := range []string{"", "/", "//"} {
		err := r.RemoveSafely(context.Background(), p)
		if err == nil {
			t.Errorf("RemoveSafely(%q) = nil, want error", p)
		}
	}
}

func TestRemoveSafely_Cancelled(t *testing.T) {
	fsys := newStuckFS(10)
	r := NewRemover(fsys, WithPolicy(retry.Fixed(3, 0)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.RemoveSafely(ctx, "/envs/clinic-dev")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindDirectoryRemoval))
}

func TestRemoveSafely_ReadOnlyTreeOnDisk(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "clinic-dev")
	nested := filepath.Join(target, "openemr", "sites")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "sqlconf.php"), []byte("<?php"), 0o444))
	require.NoError(t, os.Chmod(nested, 0o555))
	require.NoError(t, os.Symlink("/etc/hostname", filepath.Join(target, "link")))

	r := NewRemover(system.DefaultFS(), WithPolicy(retry.Fixed(2, 0)), WithSettle(0))
	require.NoError(t, r.RemoveSafely(context.Background(), target))

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestReleaseMounts(t *testing.T) {
	labels := map[string]string{"io.envctl.project": "clinic", "io.envctl.environment": "dev"}
	rt := runtime.NewMockRuntime()

	holder := rt.AddContainer("c1", "clinic-dev-jitsi-web-1", runtime.StateRunning, labels)
	holder.Mounts = []string{"/envs/clinic-dev/jitsi/.jitsi-meet-cfg/web"}
	other := rt.AddContainer("c2", "clinic-dev-emr-db-1", runtime.StateRunning, labels)
	other.Mounts = []string{"/var/lib/docker/volumes/db"}
	rt.AddContainer("c3", "clinic-dev-app-1", runtime.StateRunning, labels)
	rt.AddContainer("c4", "clinic-prod-web-1", runtime.StateRunning, map[string]string{"io.envctl.project": "clinic", "io.envctl.environment": "prod"})
	sibling := rt.AddContainer("c5", "clinic-dev2-web", runtime.StateRunning, labels)
	sibling.Mounts = []string{"/envs/clinic-dev2"}

	release := ReleaseMounts(rt, labels)
	require.NoError(t, release(context.Background(), "/envs/clinic-dev"))

	var stopped []string
	for _, call := range rt.GetCallsFor("StopContainer") {
		stopped = append(stopped, call.Args[0].(string))
	}
	assert.Equal(t, []string{"c1", "c3"}, stopped)
}

func TestReleaseMounts_ListError(t *testing.T) {
	rt := runtime.NewMockRuntime()
	rt.SetError("ListContainers", assert.AnError)

	err := ReleaseMounts(rt, nil)(context.Background(), "/envs/clinic-dev")
	assert.ErrorIs(t, err, assert.AnError)
}
