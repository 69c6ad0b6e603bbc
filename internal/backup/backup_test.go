package backup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medstack-ops/envctl/internal/component"
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/network"
	"github.com/medstack-ops/envctl/internal/runtime"
	"github.com/medstack-ops/envctl/internal/system"
)

const (
	envDir     = "/envs/clinic-dev"
	backupRoot = "/backups/clinic-dev"
)

type fixture struct {
	cfg *config.EnvironmentConfig
	fs  *system.MockFS
	rt  *runtime.MockRuntime
	mgr *Manager
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.Resolve("clinic", "dev", "localhost")
	require.NoError(t, err)

	f := &fixture{
		cfg: cfg,
		fs:  system.NewMockFS(),
		rt:  runtime.NewMockRuntime(),
		now: time.Date(2026, 10, 18, 14, 30, 5, 0, time.UTC),
	}
	f.fs.AddFile(envDir+"/openemr/.env", []byte("OE_DOMAIN=dev-clinic.localhost\n"), 0644)
	f.fs.AddFile(envDir+"/openemr/docker-compose.yml", []byte("services: {}\n"), 0644)
	f.fs.AddFile(envDir+"/jitsi-docker/.env", []byte("HTTP_PORT=11000\n"), 0644)

	f.mgr = NewManager(backupRoot, f.fs, f.rt, network.NewManager(f.rt), WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) runJitsiWeb(t *testing.T) *runtime.Container {
	t.Helper()
	labels := f.cfg.ComponentLabels(config.ComponentJitsi)
	labels[config.LabelService] = "web"
	return f.rt.AddContainer("web1", "clinic-dev-jitsi-web-1", runtime.StateRunning, labels)
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	f.runJitsiWeb(t)
	f.rt.Files["web1:/config"] = []byte("tar-stream")

	snap, err := f.mgr.Create(context.Background(), f.cfg, envDir, component.Catalog(), "down")
	require.NoError(t, err)

	assert.Equal(t, backupRoot+"/2026-10-18_143005", snap.Dir)
	assert.Equal(t, "2026-10-18_143005", snap.Name())
	assert.Len(t, snap.ID, 36)
	assert.Equal(t, []string{"openemr", "jitsi"}, snap.Components)
	assert.Equal(t, BlobFile, snap.JitsiConfigBlob)

	data, ok := f.fs.GetFile(snap.Dir + "/openemr/.env")
	require.True(t, ok)
	assert.Equal(t, "OE_DOMAIN=dev-clinic.localhost\n", string(data))

	blob, ok := f.fs.GetFile(snap.Dir + "/" + BlobFile)
	require.True(t, ok)
	assert.Equal(t, "tar-stream", string(blob))

	manifest, ok := f.fs.GetFile(snap.Dir + "/" + ManifestFile)
	require.True(t, ok)
	assert.Contains(t, string(manifest), `project = "clinic"`)
	assert.Contains(t, string(manifest), `reason = "down"`)
	assert.NotContains(t, string(manifest), "Dir")
}

func TestCreate_BlobSkippedWhenContainerStopped(t *testing.T) {
	f := newFixture(t)

	snap, err := f.mgr.Create(context.Background(), f.cfg, envDir, component.Catalog(), "reconcile")
	require.NoError(t, err)
	assert.Empty(t, snap.JitsiConfigBlob)
	assert.Empty(t, f.rt.GetCallsFor("CopyFrom"))
}

func TestCreate_BlobFailureKeepsSnapshot(t *testing.T) {
	f := newFixture(t)
	f.runJitsiWeb(t)
	f.rt.SetError("CopyFrom", assert.AnError)

	snap, err := f.mgr.Create(context.Background(), f.cfg, envDir, component.Catalog(), "down")
	require.NoError(t, err)
	assert.Empty(t, snap.JitsiConfigBlob)
	assert.Equal(t, []string{"openemr", "jitsi"}, snap.Components)
}

func TestCreate_SameSecondGetsDistinctDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.mgr.Create(ctx, f.cfg, envDir, component.Catalog(), "")
	require.NoError(t, err)
	second, err := f.mgr.Create(ctx, f.cfg, envDir, component.Catalog(), "")
	require.NoError(t, err)

	assert.NotEqual(t, first.Dir, second.Dir)
	assert.Equal(t, first.Name()+"-"+second.ShortID(), second.Name())
}

func TestListFindPrune(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		snap, err := f.mgr.Create(ctx, f.cfg, envDir, component.Catalog(), "")
		require.NoError(t, err)
		ids = append(ids, snap.ID)
		f.now = f.now.Add(time.Hour)
	}
	f.fs.AddDir(backupRoot + "/not-a-snapshot")

	snaps, err := f.mgr.List()
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, ids[2], snaps[0].ID, "newest first")
	assert.Equal(t, ids[0], snaps[2].ID)

	latest, err := f.mgr.Find("latest")
	require.NoError(t, err)
	assert.Equal(t, ids[2], latest.ID)

	byPrefix, err := f.mgr.Find(ids[1][:8])
	require.NoError(t, err)
	assert.Equal(t, ids[1], byPrefix.ID)

	byName, err := f.mgr.Find("2026-10-18_143005")
	require.NoError(t, err)
	assert.Equal(t, ids[0], byName.ID)

	_, err = f.mgr.Find("nope")
	assert.Error(t, err)

	removed, err := f.mgr.Prune(1)
	require.NoError(t, err)
	require.Len(t, removed, 2)
	snaps, err = f.mgr.List()
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, ids[2], snaps[0].ID)

	deleted, err := f.mgr.Delete("latest")
	require.NoError(t, err)
	assert.Equal(t, ids[2], deleted.ID)
	snaps, err = f.mgr.List()
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

func TestList_EmptyRoot(t *testing.T) {
	mgr := NewManager("/backups/none", system.NewMockFS(), nil, nil)

	snaps, err := mgr.List()
	require.NoError(t, err)
	assert.Empty(t, snaps)

	_, err = mgr.Find("latest")
	assert.Error(t, err)
}

func TestPrune_NegativeKeep(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Prune(-1)
	assert.Error(t, err)
}

func TestRestore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.runJitsiWeb(t)
	f.rt.Files["web1:/config"] = []byte("tar-stream")

	snap, err := f.mgr.Create(ctx, f.cfg, envDir, component.Catalog(), "down")
	require.NoError(t, err)

	require.NoError(t, f.fs.RemoveAll(envDir))
	f.fs.AddFile(envDir+"/openemr/stale.txt", []byte("stale"), 0644)

	res, err := f.mgr.Restore(ctx, f.cfg, snap.ID, envDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"openemr", "jitsi"}, res.Components)
	assert.True(t, res.BlobRestored)

	data, ok := f.fs.GetFile(envDir + "/openemr/.env")
	require.True(t, ok)
	assert.Equal(t, "OE_DOMAIN=dev-clinic.localhost\n", string(data))
	_, ok = f.fs.GetFile(envDir + "/openemr/stale.txt")
	assert.False(t, ok, "restore replaces the directory")

	assert.Equal(t, []byte("tar-stream"), f.rt.Files["web1:/"])
}

func TestRestore_BlobWaitsForContainer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	web := f.runJitsiWeb(t)
	f.rt.Files["web1:/config"] = []byte("tar-stream")

	snap, err := f.mgr.Create(ctx, f.cfg, envDir, component.Catalog(), "down")
	require.NoError(t, err)
	web.State = runtime.StateExited

	res, err := f.mgr.Restore(ctx, f.cfg, "latest", envDir)
	require.NoError(t, err)
	assert.False(t, res.BlobRestored)
	assert.Equal(t, snap.ID, res.Snapshot.ID)
	assert.Empty(t, f.rt.GetCallsFor("CopyTo"))
}

func TestRestore_WrongEnvironment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.mgr.Create(ctx, f.cfg, envDir, component.Catalog(), "")
	require.NoError(t, err)

	prod, err := config.Resolve("clinic", "production", "localhost")
	require.NoError(t, err)
	_, err = f.mgr.Restore(ctx, prod, "latest", envDir)
	assert.Error(t, err)
}
