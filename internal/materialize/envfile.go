package materialize

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/medstack-ops/envctl/internal/component"
	"github.com/medstack-ops/envctl/internal/errors"
	"github.com/medstack-ops/envctl/internal/logging"
)

// EnvFileName is the name of the env file written into a component directory.
const EnvFileName = ".env"

// Document is a parsed env file. Lines are kept verbatim; only lines
// touched by Set are rewritten.
type Document struct {
	lines []string
}

// ParseDocument splits env file content into lines.
func ParseDocument(data []byte) *Document {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	d := &Document{}
	text = strings.TrimSuffix(text, "\n")
	if text != "" {
		d.lines = strings.Split(text, "\n")
	}
	return d
}

// keyOf returns the key assigned on a line and whether the assignment is
// commented out. ok is false for lines that assign nothing.
func keyOf(line string) (key string, commented, ok bool) {
	s := strings.TrimSpace(line)
	if strings.HasPrefix(s, "#") {
		commented = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "#"))
	}
	s = strings.TrimPrefix(s, "export ")
	k, _, found := strings.Cut(s, "=")
	if !found {
		return "", false, false
	}
	k = strings.TrimSpace(k)
	if k == "" || strings.ContainsAny(k, " \t#") {
		return "", false, false
	}
	return k, commented, true
}

// Set assigns key. The first line assigning key, commented or not, is
// replaced with "KEY=value". Without such a line the assignment is appended.
func (d *Document) Set(key, value string) {
	entry := key + "=" + value
	for i, line := range d.lines {
		if k, _, ok := keyOf(line); ok && k == key {
			d.lines[i] = entry
			return
		}
	}
	d.lines = append(d.lines, entry)
}

// Get returns the value of the first active assignment of key.
func (d *Document) Get(key string) (string, bool) {
	for _, line := range d.lines {
		k, commented, ok := keyOf(line)
		if !ok || commented || k != key {
			continue
		}
		_, v, _ := strings.Cut(line, "=")
		return strings.TrimSpace(v), true
	}
	return "", false
}

// Prepend inserts comment lines at the top of the document.
func (d *Document) Prepend(comments ...string) {
	head := make([]string, 0, len(comments))
	for _, c := range comments {
		head = append(head, "# "+c)
	}
	d.lines = append(head, d.lines...)
}

// Apply sets every rule in order.
func (d *Document) Apply(rules []component.EnvRule) {
	for _, r := range rules {
		d.Set(r.Key, r.Value)
	}
}

// Bytes serializes the document, one line per entry.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	for _, line := range d.lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// EnvFile is the outcome of SynthesizeEnvFile.
type EnvFile struct {
	Content []byte
	// Template is the template path used, empty for a minimal file.
	Template string
}

// Minimal reports whether the file was synthesized without a template.
func (f EnvFile) Minimal() bool {
	return f.Template == ""
}

// SynthesizeEnvFile builds a component's env file. The first template in
// chain that exists under sourceDir is edited with rules. Without any
// template, a minimal file carrying the component's required keys is
// produced instead. envName is stamped into the header.
func (m *Materializer) SynthesizeEnvFile(spec component.Spec, sourceDir string, chain []string, rules []component.EnvRule, envName string) (EnvFile, error) {
	doc, tmpl, err := m.loadTemplate(spec, sourceDir, chain)
	if err != nil {
		if !errors.IsKind(err, errors.KindTemplateMissing) {
			return EnvFile{}, err
		}
		logging.Warn("no env template found, writing minimal env file", "component", spec.Name)
		doc = minimalDocument(spec, rules)
	} else {
		doc.Apply(rules)
	}

	doc.Prepend(
		fmt.Sprintf("Generated by envctl for %s on %s", envName, m.now().UTC().Format("2006-01-02T15:04:05Z")),
		"Edits to managed keys are overwritten on the next run.",
	)
	return EnvFile{Content: doc.Bytes(), Template: tmpl}, nil
}

func (m *Materializer) loadTemplate(spec component.Spec, sourceDir string, chain []string) (*Document, string, error) {
	for _, name := range chain {
		path := filepath.Join(sourceDir, name)
		if !m.fs.Exists(path) || m.fs.IsDir(path) {
			continue
		}
		data, err := m.fs.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read env template %s: %w", path, err)
		}
		logging.Debug("using env template", "component", spec.Name, "template", path)
		return ParseDocument(data), path, nil
	}
	return nil, "", errors.TemplateMissing(string(spec.Name))
}

// minimalDocument carries only the required keys, valued from the rules.
func minimalDocument(spec component.Spec, rules []component.EnvRule) *Document {
	doc := &Document{}
	for _, key := range spec.RequiredEnv {
		value := ""
		for _, r := range rules {
			if r.Key == key {
				value = r.Value
				break
			}
		}
		doc.Set(key, value)
	}
	return doc
}

// WriteEnvFile writes content to the env file of a component directory.
func (m *Materializer) WriteEnvFile(dir string, content []byte) (string, error) {
	path := filepath.Join(dir, EnvFileName)
	if err := m.fs.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// ReadEnvFile parses a written env file into its effective values.
func (m *Materializer) ReadEnvFile(path string) (map[string]string, error) {
	data, err := m.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	values, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return values, nil
}
