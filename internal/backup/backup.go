package backup

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/google/uuid"

	"github.com/medstack-ops/envctl/internal/component"
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/logging"
	"github.com/medstack-ops/envctl/internal/materialize"
	"github.com/medstack-ops/envctl/internal/runtime"
	"github.com/medstack-ops/envctl/internal/system"
)

const (
	// ManifestFile describes a snapshot.
	ManifestFile = "manifest.toml"

	// BlobFile holds the container config tar stream.
	BlobFile = "jitsi-web-config.tar"

	// TimestampLayout names snapshot directories.
	TimestampLayout = "2006-01-02_150405"
)

// Snapshot is the manifest of one backup.
type Snapshot struct {
	ID         string    `toml:"id"`
	Timestamp  time.Time `toml:"timestamp"`
	Project    string    `toml:"project"`
	Kind       string    `toml:"kind"`
	Reason     string    `toml:"reason,omitempty"`
	Components []string  `toml:"components"`

	// JitsiConfigBlob is the blob file name, empty when none was captured.
	JitsiConfigBlob string `toml:"jitsi_config_blob,omitempty"`

	// Dir is the snapshot directory. Not stored.
	Dir string `toml:"-"`
}

// Name returns the snapshot directory name.
func (s *Snapshot) Name() string {
	return filepath.Base(s.Dir)
}

// ShortID returns the first eight characters of the ID.
func (s *Snapshot) ShortID() string {
	if len(s.ID) > 8 {
		return s.ID[:8]
	}
	return s.ID
}

// ContainerFinder locates the running container of a component service.
type ContainerFinder interface {
	FindContainer(ctx context.Context, cfg *config.EnvironmentConfig, comp config.Component, service, pattern string) (runtime.Container, bool, error)
}

// Manager creates and restores the snapshots of one backup root.
type Manager struct {
	root   string
	fs     system.FileSystem
	rt     runtime.Runtime
	finder ContainerFinder
	copier *materialize.Materializer
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a Manager for the snapshots under root. rt and finder
// may be nil, in which case container config is neither captured nor restored.
func NewManager(root string, fsys system.FileSystem, rt runtime.Runtime, finder ContainerFinder, opts ...Option) *Manager {
	m := &Manager{
		root:   root,
		fs:     fsys,
		rt:     rt,
		finder: finder,
		copier: materialize.New(fsys),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the backup root.
func (m *Manager) Root() string {
	return m.root
}

// Create snapshots the component directories found under envDir. Missing
// component directories are left out. A failed blob capture is logged and
// the snapshot is kept without it.
func (m *Manager) Create(ctx context.Context, cfg *config.EnvironmentConfig, envDir string, specs []component.Spec, reason string) (*Snapshot, error) {
	ts := m.now().UTC().Truncate(time.Second)
	snap := &Snapshot{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Project:   cfg.Project,
		Kind:      string(cfg.Kind),
		Reason:    reason,
	}

	dir, err := m.snapshotDir(ts, snap.ID)
	if err != nil {
		return nil, err
	}
	snap.Dir = dir
	if err := m.fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	for _, spec := range specs {
		src, err := securejoin.SecureJoin(envDir, cfg.FolderNames[spec.Name])
		if err != nil {
			return nil, err
		}
		if !m.fs.IsDir(src) {
			continue
		}
		if _, err := m.copier.SyncDirectory(src, filepath.Join(dir, string(spec.Name)), nil); err != nil {
			return nil, fmt.Errorf("failed to back up %s: %w", spec.Name, err)
		}
		snap.Components = append(snap.Components, string(spec.Name))

		if spec.Blob != nil {
			if err := m.captureBlob(ctx, cfg, spec, dir); err != nil {
				logging.Warn("container config not captured", "component", spec.Name, "error", err)
			} else if m.fs.Exists(filepath.Join(dir, BlobFile)) {
				snap.JitsiConfigBlob = BlobFile
			}
		}
	}

	if err := m.writeManifest(snap); err != nil {
		return nil, err
	}
	logging.Debug("created snapshot", "id", snap.ID, "dir", dir, "components", snap.Components)
	return snap, nil
}

func (m *Manager) snapshotDir(ts time.Time, id string) (string, error) {
	name := ts.Format(TimestampLayout)
	dir, err := securejoin.SecureJoin(m.root, name)
	if err != nil {
		return "", err
	}
	if m.fs.Exists(dir) {
		return securejoin.SecureJoin(m.root, name+"-"+id[:8])
	}
	return dir, nil
}

// captureBlob copies the blob directory out of the running container.
// Nothing is written when the container is not running.
func (m *Manager) captureBlob(ctx context.Context, cfg *config.EnvironmentConfig, spec component.Spec, dir string) error {
	ctr, ok, err := m.blobContainer(ctx, cfg, spec)
	if err != nil || !ok {
		return err
	}
	var buf bytes.Buffer
	if err := m.rt.CopyFrom(ctx, ctr.ID, spec.Blob.Path, &buf); err != nil {
		return err
	}
	return m.fs.WriteFile(filepath.Join(dir, BlobFile), buf.Bytes(), 0600)
}

func (m *Manager) blobContainer(ctx context.Context, cfg *config.EnvironmentConfig, spec component.Spec) (runtime.Container, bool, error) {
	if m.rt == nil || m.finder == nil {
		return runtime.Container{}, false, nil
	}
	pattern := ""
	if entry, ok := component.TopologyFor(spec.Name, spec.Blob.Service); ok {
		pattern = entry.NamePattern(cfg)
	}
	ctr, ok, err := m.finder.FindContainer(ctx, cfg, spec.Name, spec.Blob.Service, pattern)
	if err != nil {
		return runtime.Container{}, false, err
	}
	if !ok {
		logging.Debug("blob container not running", "component", spec.Name, "service", spec.Blob.Service)
	}
	return ctr, ok, nil
}

func (m *Manager) writeManifest(snap *Snapshot) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return m.fs.WriteFile(filepath.Join(snap.Dir, ManifestFile), buf.Bytes(), 0644)
}

func (m *Manager) readManifest(dir string) (*Snapshot, error) {
	data, err := m.fs.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if _, err := toml.Decode(string(data), &snap); err != nil {
		return nil, fmt.Errorf("invalid manifest in %s: %w", dir, err)
	}
	snap.Dir = dir
	return &snap, nil
}

// List returns the snapshots under the root, newest first. Directories
// without a readable manifest are ignored.
func (m *Manager) List() ([]*Snapshot, error) {
	if !m.fs.IsDir(m.root) {
		return nil, nil
	}
	entries, err := m.fs.ReadDir(m.root)
	if err != nil {
		return nil, err
	}

	var snaps []*Snapshot
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		snap, err := m.readManifest(filepath.Join(m.root, e.Name()))
		if err != nil {
			logging.Debug("skipping snapshot directory", "dir", e.Name(), "error", err)
			continue
		}
		snaps = append(snaps, snap)
	}
	slices.SortFunc(snaps, func(a, b *Snapshot) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(b.Name(), a.Name())
	})
	return snaps, nil
}

// Find returns the snapshot whose ID, ID prefix or directory name matches
// ref. "latest" selects the newest snapshot.
func (m *Manager) Find(ref string) (*Snapshot, error) {
	snaps, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("no snapshots in %s", m.root)
	}
	if ref == "latest" {
		return snaps[0], nil
	}

	var matches []*Snapshot
	for _, s := range snaps {
		switch {
		case s.ID == ref || s.Name() == ref:
			return s, nil
		case len(ref) >= 4 && strings.HasPrefix(s.ID, ref):
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("snapshot %q not found", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("snapshot prefix %q is ambiguous (%d matches)", ref, len(matches))
	}
}

// RestoreResult reports what Restore put back.
type RestoreResult struct {
	Snapshot   *Snapshot
	Components []string
	// BlobRestored is set when container config was copied back in.
	BlobRestored bool
}

// Restore replaces the component directories under envDir with the
// snapshot's copies. Container config is copied back when its container
// is running; otherwise it is skipped with a warning.
func (m *Manager) Restore(ctx context.Context, cfg *config.EnvironmentConfig, ref, envDir string) (*RestoreResult, error) {
	snap, err := m.Find(ref)
	if err != nil {
		return nil, err
	}
	if snap.Project != cfg.Project || snap.Kind != string(cfg.Kind) {
		return nil, fmt.Errorf("snapshot %s belongs to %s-%s, not %s", snap.ShortID(), snap.Project, snap.Kind, cfg.Slug())
	}

	result := &RestoreResult{Snapshot: snap}
	for _, name := range snap.Components {
		spec, ok := component.Lookup(config.Component(name))
		if !ok {
			logging.Warn("snapshot holds an unknown component, skipping", "component", name)
			continue
		}
		target, err := securejoin.SecureJoin(envDir, cfg.FolderNames[spec.Name])
		if err != nil {
			return result, err
		}
		if err := m.fs.RemoveAll(target); err != nil {
			return result, fmt.Errorf("failed to clear %s: %w", target, err)
		}
		if _, err := m.copier.SyncDirectory(filepath.Join(snap.Dir, name), target, nil); err != nil {
			return result, fmt.Errorf("failed to restore %s: %w", name, err)
		}
		result.Components = append(result.Components, name)

		if spec.Blob != nil && snap.JitsiConfigBlob != "" {
			restored, err := m.restoreBlob(ctx, cfg, spec, filepath.Join(snap.Dir, snap.JitsiConfigBlob))
			if err != nil {
				logging.Warn("container config not restored", "component", name, "error", err)
			}
			result.BlobRestored = restored
		}
	}
	return result, nil
}

func (m *Manager) restoreBlob(ctx context.Context, cfg *config.EnvironmentConfig, spec component.Spec, file string) (bool, error) {
	ctr, ok, err := m.blobContainer(ctx, cfg, spec)
	if err != nil {
		return false, err
	}
	if !ok {
		logging.Warn("container not running, config blob left in snapshot", "component", spec.Name, "file", file)
		return false, nil
	}
	data, err := m.fs.ReadFile(file)
	if err != nil {
		return false, err
	}
	// The stream's top-level entry is the blob directory itself.
	if err := m.rt.CopyTo(ctx, ctr.ID, path.Dir(spec.Blob.Path), bytes.NewReader(data)); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a snapshot.
func (m *Manager) Delete(ref string) (*Snapshot, error) {
	snap, err := m.Find(ref)
	if err != nil {
		return nil, err
	}
	if err := m.fs.RemoveAll(snap.Dir); err != nil {
		return nil, fmt.Errorf("failed to delete snapshot %s: %w", snap.ShortID(), err)
	}
	return snap, nil
}

// Prune deletes all but the newest keep snapshots and returns the deleted ones.
func (m *Manager) Prune(keep int) ([]*Snapshot, error) {
	if keep < 0 {
		return nil, fmt.Errorf("keep must not be negative")
	}
	snaps, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(snaps) <= keep {
		return nil, nil
	}

	var removed []*Snapshot
	for _, s := range snaps[keep:] {
		if err := m.fs.RemoveAll(s.Dir); err != nil {
			return removed, fmt.Errorf("failed to delete snapshot %s: %w", s.ShortID(), err)
		}
		removed = append(removed, s)
	}
	return removed, nil
}
