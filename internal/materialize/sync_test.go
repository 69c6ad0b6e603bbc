package materialize

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/medstack-ops/envctl/internal/system"
)

func newSyncFS(t *testing.T, now time.Time) *system.MockFS {
	t.Helper()
	fs := system.NewMockFS()
	fs.Now = func() time.Time { return now }
	fs.AddFile("/src/docker-compose.yml", []byte("services: {}\n"), 0644)
	fs.AddFile("/src/app/config.php", []byte("<?php\n"), 0644)
	fs.AddFile("/src/.git/HEAD", []byte("ref: refs/heads/main\n"), 0644)
	fs.AddFile("/src/node_modules/x/index.js", []byte("module.exports = 1\n"), 0644)
	return fs
}

func TestSyncDirectory_Idempotent(t *testing.T) {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	fs := newSyncFS(t, t0)
	m := New(fs)
	exclude := []string{".git", "node_modules"}

	changed, err := m.SyncDirectory("/src", "/env/openemr", exclude)
	if err != nil {
		t.Fatalf("first SyncDirectory() error = %v", err)
	}
	if !changed {
		t.Error("first SyncDirectory() changed = false, want true")
	}

	for _, p := range []string{"/env/openemr/docker-compose.yml", "/env/openemr/app/config.php"} {
		if !fs.Exists(p) {
			t.Errorf("expected %s to be copied", p)
		}
	}
	for _, p := range []string{"/env/openemr/.git/HEAD", "/env/openemr/node_modules/x/index.js"} {
		if fs.Exists(p) {
			t.Errorf("excluded file %s was copied", p)
		}
	}

	changed, err = m.SyncDirectory("/src", "/env/openemr", exclude)
	if err != nil {
		t.Fatalf("second SyncDirectory() error = %v", err)
	}
	if changed {
		t.Error("second SyncDirectory() changed = true, want false")
	}
}

func TestSyncDirectory_CopyRules(t *testing.T) {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name        string
		mutate      func(fs *system.MockFS)
		wantChanged bool
		wantContent string
	}{
		{
			name:        "unchanged",
			mutate:      func(fs *system.MockFS) {},
			wantChanged: false,
			wantContent: "services: {}\n",
		},
		{
			name: "newer source",
			mutate: func(fs *system.MockFS) {
				fs.Now = func() time.Time { return t0.Add(time.Minute) }
				fs.AddFile("/src/docker-compose.yml", []byte("services: {a}\n"), 0644)
			},
			wantChanged: true,
			wantContent: "services: {a}\n",
		},
		{
			name: "size differs with older source",
			mutate: func(fs *system.MockFS) {
				fs.Now = func() time.Time { return t0.Add(-time.Hour) }
				fs.AddFile("/src/docker-compose.yml", []byte("services: {}\n# x\n"), 0644)
			},
			wantChanged: true,
			wantContent: "services: {}\n# x\n",
		},
		{
			name: "same size and older source",
			mutate: func(fs *system.MockFS) {
				fs.Now = func() time.Time { return t0.Add(-time.Hour) }
				fs.AddFile("/src/docker-compose.yml", []byte("services: []\n"), 0644)
			},
			wantChanged: false,
			wantContent: "services: {}\n",
		},
		{
			name: "destination missing",
			mutate: func(fs *system.MockFS) {
				_ = fs.Remove("/env/openemr/docker-compose.yml")
			},
			wantChanged: true,
			wantContent: "services: {}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newSyncFS(t, t0)
			m := New(fs)
			if _, err := m.SyncDirectory("/src", "/env/openemr", nil); err != nil {
				t.Fatalf("initial sync: %v", err)
			}

			tt.mutate(fs)

			changed, err := m.SyncDirectory("/src", "/env/openemr", nil)
			if err != nil {
				t.Fatalf("SyncDirectory() error = %v", err)
			}
			if changed != tt.wantChanged {
				t.Errorf("SyncDirectory() changed = %v, want %v", changed, tt.wantChanged)
			}
			got, _ := fs.GetFile("/env/openemr/docker-compose.yml")
			if string(got) != tt.wantContent {
				t.Errorf("content = %q, want %q", got, tt.wantContent)
			}
		})
	}
}

func TestSyncDirectory_MissingSource(t *testing.T) {
	m := New(system.NewMockFS())
	if _, err := m.SyncDirectory("/nope", "/env/x", nil); err == nil {
		t.Error("SyncDirectory() should fail for a missing source")
	}
}

func TestSyncDirectory_OSPreservesModTime(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	dst := filepath.Join(root, "dst")
	if err := os.MkdirAll(filepath.Join(src, "conf"), 0755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(src, "conf", "site.conf")
	if err := os.WriteFile(file, []byte("listen 80;\n"), 0444); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-24 * time.Hour).Truncate(time.Second)
	if err := os.Chtimes(file, old, old); err != nil {
		t.Fatal(err)
	}

	m := New(system.DefaultFS())
	changed, err := m.SyncDirectory(src, dst, nil)
	if err != nil || !changed {
		t.Fatalf("first SyncDirectory() = %v, %v; want true, nil", changed, err)
	}

	info, err := os.Stat(filepath.Join(dst, "conf", "site.conf"))
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(old) {
		t.Errorf("copied mtime = %v, want %v", info.ModTime(), old)
	}

	changed, err = m.SyncDirectory(src, dst, nil)
	if err != nil {
		t.Fatalf("second SyncDirectory() error = %v", err)
	}
	if changed {
		t.Error("second SyncDirectory() changed = true, want false")
	}

	// A newer read-only source must still overwrite the read-only copy.
	if err := os.Chmod(file, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, []byte("listen 8080;\n"), 0444); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(file, 0444); err != nil {
		t.Fatal(err)
	}
	changed, err = m.SyncDirectory(src, dst, nil)
	if err != nil || !changed {
		t.Fatalf("third SyncDirectory() = %v, %v; want true, nil", changed, err)
	}
}

func TestExcluded(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{".git", true},
		{"node_modules", true},
		{"debug.log", true},
		{"src", false},
	}
	exclude := []string{".git", "node_modules", "*.log"}
	for _, tt := range tests {
		if got := excluded(tt.name, exclude); got != tt.want {
			t.Errorf("excluded(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
