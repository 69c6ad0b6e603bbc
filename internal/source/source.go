package source

import (
	"context"

	"github.com/medstack-ops/envctl/internal/component"
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/errors"
	"github.com/medstack-ops/envctl/internal/logging"
	"github.com/medstack-ops/envctl/internal/system"
)

// Provider resolves component checkouts under the sources root.
type Provider struct {
	settings *config.Settings
	fs       system.FileSystem
	exec     system.CommandExecutor
}

// NewProvider creates a Provider. Nil fsys or exec use the OS defaults.
func NewProvider(settings *config.Settings, fsys system.FileSystem, exec system.CommandExecutor) *Provider {
	if fsys == nil {
		fsys = system.DefaultFS()
	}
	if exec == nil {
		exec = system.DefaultExecutor()
	}
	return &Provider{settings: settings, fs: fsys, exec: exec}
}

// Locate returns the checkout directory of a component. A missing
// checkout is a source-missing error.
func (p *Provider) Locate(spec component.Spec) (string, error) {
	dir, err := p.settings.SourceDir(spec.SourceName)
	if err != nil {
		return "", errors.ConfigError("invalid source path for "+string(spec.Name), err)
	}
	if !p.fs.IsDir(dir) {
		return "", errors.SourceMissing(string(spec.Name), dir)
	}
	return dir, nil
}

// UpdateResult describes one checkout update.
type UpdateResult struct {
	Dir     string
	Backend string
	Before  string
	After   string
	// Skipped is set for checkouts without version control.
	Skipped bool
}

// Changed reports whether the update moved the checkout.
func (r UpdateResult) Changed() bool {
	return !r.Skipped && r.Before != r.After
}

// Update fast-forwards a component checkout. Plain directories are
// skipped.
func (p *Provider) Update(ctx context.Context, spec component.Spec) (UpdateResult, error) {
	dir, err := p.Locate(spec)
	if err != nil {
		return UpdateResult{}, err
	}
	result := UpdateResult{Dir: dir}

	backend := DetectBackend(dir, p.fs, p.exec)
	if backend == nil {
		logging.Debug("source is not under version control, not updating", "component", spec.Name, "dir", dir)
		result.Skipped = true
		return result, nil
	}
	result.Backend = backend.Name()

	if rev, err := backend.Revision(ctx, dir); err == nil {
		result.Before = rev
	}
	if err := backend.Update(ctx, dir); err != nil {
		return result, err
	}
	if rev, err := backend.Revision(ctx, dir); err == nil {
		result.After = rev
	}
	logging.Debug("updated source", "component", spec.Name, "backend", result.Backend, "before", result.Before, "after", result.After)
	return result, nil
}
