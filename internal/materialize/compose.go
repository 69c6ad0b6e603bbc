package materialize

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/medstack-ops/envctl/internal/component"
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/logging"
)

// Files written next to the selected compose file. The selected file itself
// is left as synced so the next sync sees it unchanged.
const (
	StrippedFileName = "docker-compose.envctl-base.yml"
	OverlayFileName  = "docker-compose.envctl.yml"
)

// Selection is the compose file chosen for a component.
type Selection struct {
	// Path is the absolute path of the selected file.
	Path string
	// Rel is Path relative to the component directory.
	Rel string
	// Tier is the chain tier the file was found in.
	Tier string
	// Warning is set when the selection fell back past the mode overlay,
	// or when nothing was found.
	Warning string
}

// SelectComposeFile walks the component's compose chain under dir and
// returns the first file present. ok is false when the chain is empty
// everywhere, which callers treat as a skip.
func (m *Materializer) SelectComposeFile(dir string, spec component.Spec, kind config.Kind, devMode, official bool) (Selection, bool) {
	mode := "prod"
	if devMode {
		mode = "dev"
	}

	for _, c := range spec.ComposeChain(kind, devMode, official) {
		path := filepath.Join(dir, filepath.FromSlash(c.Path))
		if !m.fs.Exists(path) || m.fs.IsDir(path) {
			continue
		}
		sel := Selection{Path: path, Rel: c.Path, Tier: c.Tier}
		if c.Tier == component.TierDefault {
			sel.Warning = fmt.Sprintf("no %s or %s overlay for %s, using %s", kind, mode, spec.Name, c.Path)
			logging.Warn("compose overlay fallback", "component", spec.Name, "file", c.Path, "mode", mode)
		}
		return sel, true
	}

	warning := fmt.Sprintf("no compose file found for %s in %s", spec.Name, dir)
	logging.Warn("no compose file found, skipping component", "component", spec.Name, "dir", dir)
	return Selection{Warning: warning}, false
}

var (
	versionLine       = regexp.MustCompile(`version:\s*'.*'`)
	containerNameLine = regexp.MustCompile(`container_name:.*`)
)

// StripVersionMetadata drops every line carrying a quoted version key or a
// container_name key. Other lines are kept as they are, in order.
func StripVersionMetadata(content string) string {
	lines := strings.SplitAfter(content, "\n")
	var b strings.Builder
	b.Grow(len(content))
	for _, line := range lines {
		if versionLine.MatchString(line) || containerNameLine.MatchString(line) {
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}

// composeServices is the part of a compose file the overlay needs.
type composeServices struct {
	Services map[string]yaml.Node `yaml:"services"`
}

type overlayService struct {
	Labels map[string]string `yaml:"labels"`
}

type overlayFile struct {
	Services map[string]overlayService `yaml:"services"`
}

// LabelOverlay returns a compose overlay attaching labels to every service
// defined in composeContent.
func LabelOverlay(composeContent []byte, labels map[string]string) ([]byte, error) {
	var parsed composeServices
	if err := yaml.Unmarshal(composeContent, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse compose file: %w", err)
	}
	if len(parsed.Services) == 0 {
		return nil, fmt.Errorf("compose file defines no services")
	}

	overlay := overlayFile{Services: make(map[string]overlayService, len(parsed.Services))}
	for name := range parsed.Services {
		copied := make(map[string]string, len(labels))
		for k, v := range labels {
			copied[k] = v
		}
		overlay.Services[name] = overlayService{Labels: copied}
	}

	out, err := yaml.Marshal(overlay)
	if err != nil {
		return nil, fmt.Errorf("failed to render overlay: %w", err)
	}
	return append([]byte("# Generated by envctl. Do not edit.\n"), out...), nil
}

// ComposeFiles are the files handed to compose, in order.
type ComposeFiles struct {
	Dir     string
	Files   []string
	EnvFile string
}

// PrepareCompose writes a copy of the selected compose file without version
// and container_name lines, plus the label overlay, next to it. When the
// services cannot be parsed the overlay is skipped and only the stripped
// file is used.
func (m *Materializer) PrepareCompose(componentDir string, sel Selection, labels map[string]string) (ComposeFiles, error) {
	data, err := m.fs.ReadFile(sel.Path)
	if err != nil {
		return ComposeFiles{}, fmt.Errorf("failed to read %s: %w", sel.Path, err)
	}

	stripped := StripVersionMetadata(string(data))
	strippedPath := filepath.Join(filepath.Dir(sel.Path), StrippedFileName)
	if err := m.fs.WriteFile(strippedPath, []byte(stripped), 0644); err != nil {
		return ComposeFiles{}, fmt.Errorf("failed to write %s: %w", strippedPath, err)
	}

	// Relative paths in upstream files resolve against their own directory.
	files := ComposeFiles{
		Dir:     filepath.Dir(sel.Path),
		Files:   []string{strippedPath},
		EnvFile: filepath.Join(componentDir, EnvFileName),
	}

	overlay, err := LabelOverlay([]byte(stripped), labels)
	if err != nil {
		logging.Warn("label overlay skipped", "file", sel.Path, "error", err)
		return files, nil
	}
	overlayPath := filepath.Join(filepath.Dir(sel.Path), OverlayFileName)
	if err := m.fs.WriteFile(overlayPath, overlay, 0644); err != nil {
		return ComposeFiles{}, fmt.Errorf("failed to write %s: %w", overlayPath, err)
	}
	files.Files = append(files.Files, overlayPath)
	return files, nil
}

// PreparedCompose finds the files a previous PrepareCompose left in
// componentDir, trying the prod and dev chains. ok is false when the
// component has no env file or no prepared compose file.
func (m *Materializer) PreparedCompose(componentDir string, spec component.Spec, kind config.Kind, official bool) (ComposeFiles, bool) {
	envFile := filepath.Join(componentDir, EnvFileName)
	if !m.fs.Exists(envFile) {
		return ComposeFiles{}, false
	}
	for _, devMode := range []bool{false, true} {
		for _, c := range spec.ComposeChain(kind, devMode, official) {
			dir := filepath.Dir(filepath.Join(componentDir, filepath.FromSlash(c.Path)))
			stripped := filepath.Join(dir, StrippedFileName)
			if !m.fs.Exists(stripped) {
				continue
			}
			files := ComposeFiles{Dir: dir, Files: []string{stripped}, EnvFile: envFile}
			if overlay := filepath.Join(dir, OverlayFileName); m.fs.Exists(overlay) {
				files.Files = append(files.Files, overlay)
			}
			return files, true
		}
	}
	return ComposeFiles{}, false
}
