package materialize

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/medstack-ops/envctl/internal/logging"
)

// SyncDirectory copies every file under source that is not excluded into
// target. A file is copied when the destination is missing, the sizes
// differ, or the source is strictly newer. Contents are never compared.
// Copies keep the source mtime, so an unchanged source syncs as a no-op.
func (m *Materializer) SyncDirectory(source, target string, exclude []string) (bool, error) {
	if !m.fs.IsDir(source) {
		return false, fmt.Errorf("source %s is not a directory", source)
	}
	return m.syncDir(source, target, exclude)
}

func (m *Materializer) syncDir(source, target string, exclude []string) (bool, error) {
	if err := m.fs.MkdirAll(target, 0755); err != nil {
		return false, fmt.Errorf("failed to create %s: %w", target, err)
	}

	entries, err := m.fs.ReadDir(source)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", source, err)
	}
	// Stable order keeps logs and partial failures reproducible.
	slices.SortFunc(entries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})

	changed := false
	for _, entry := range entries {
		name := entry.Name()
		if excluded(name, exclude) {
			continue
		}
		src := filepath.Join(source, name)
		dst := filepath.Join(target, name)

		if entry.IsDir() {
			c, err := m.syncDir(src, dst, exclude)
			if err != nil {
				return changed, err
			}
			changed = changed || c
			continue
		}

		copyNeeded, err := m.needsCopy(src, dst)
		if err != nil {
			return changed, err
		}
		if !copyNeeded {
			continue
		}
		if err := m.fs.CopyFile(src, dst); err != nil {
			return changed, fmt.Errorf("failed to copy %s: %w", src, err)
		}
		logging.Debug("copied file", "src", src, "dst", dst)
		changed = true
	}
	return changed, nil
}

func (m *Materializer) needsCopy(src, dst string) (bool, error) {
	srcInfo, err := m.fs.Stat(src)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", src, err)
	}
	dstInfo, err := m.fs.Stat(dst)
	if err != nil {
		return true, nil
	}
	if srcInfo.Size() != dstInfo.Size() {
		return true, nil
	}
	return srcInfo.ModTime().After(dstInfo.ModTime()), nil
}

// excluded reports whether a file or directory name matches an exclude
// entry, either literally or as a glob.
func excluded(name string, exclude []string) bool {
	for _, pattern := range exclude {
		if name == pattern {
			return true
		}
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
