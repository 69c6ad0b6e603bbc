package testutil

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

//go:embed all:fixtures
var fixturesFS embed.FS

// LoadFixture loads a fixture file by its path under fixtures/.
func LoadFixture(name string) ([]byte, error) {
	return fixturesFS.ReadFile(path.Join("fixtures", name))
}

// SourceNames lists the component checkouts available as fixtures.
func SourceNames() ([]string, error) {
	entries, err := fixturesFS.ReadDir("fixtures/sources")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// WriteSource copies the fixture checkout name into dir.
func WriteSource(name, dir string) error {
	root := path.Join("fixtures/sources", name)
	return fs.WalkDir(fixturesFS, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := p[len(root):]
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		data, err := fixturesFS.ReadFile(p)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0644)
	})
}
