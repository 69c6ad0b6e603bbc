package lifecycle

import (
	"context"
	"fmt"
	"slices"

	"github.com/medstack-ops/envctl/internal/audit"
	"github.com/medstack-ops/envctl/internal/component"
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/errors"
	"github.com/medstack-ops/envctl/internal/logging"
	"github.com/medstack-ops/envctl/internal/runtime"
)

// Reconcile snapshots an environment, removes its runtime resources and
// removes its directory, leaving it ready to be materialized fresh.
func (c *Controller) Reconcile(ctx context.Context, opts Options) (*Report, error) {
	cfg, _, dir, err := c.resolve(opts)
	if err != nil {
		return nil, err
	}
	report := c.newReport("reconcile", cfg, dir)
	report.Existing = c.present(dir)

	err = c.reconcile(ctx, cfg, dir, opts, report)
	c.finish(report, audit.EventReconcile, err)
	return report, err
}

// reconcile clears an existing environment. A failed snapshot aborts the
// run with the environment untouched. A directory that cannot be removed
// is handed to the Decider; continuing leaves it in place.
func (c *Controller) reconcile(ctx context.Context, cfg *config.EnvironmentConfig, dir string, opts Options, report *Report) error {
	if opts.NoBackup {
		report.skip(StepSnapshot, "", "disabled")
	} else if !c.snapshot(ctx, cfg, dir, "reconcile", report) {
		report.Aborted = true
		return nil
	}
	c.teardownRuntime(ctx, cfg, false, opts, report)

	err := c.remover(cfg).RemoveSafely(ctx, dir)
	if err == nil {
		report.ok(StepRemoveDir, "", dir)
		return nil
	}

	proceed, derr := opts.decider().ContinueAfterRemovalFailure(ctx, dir, err)
	if derr != nil {
		report.fail(StepRemoveDir, "", dir, err)
		return derr
	}
	if !proceed {
		report.fail(StepRemoveDir, "", dir, err)
		return err
	}
	report.warn(StepRemoveDir, "", "continuing with a non-empty directory", err)
	return nil
}

// Down tears an environment down: snapshot, containers, networks,
// optionally volumes, then the directory.
func (c *Controller) Down(ctx context.Context, opts Options) (*Report, error) {
	cfg, _, dir, err := c.resolve(opts)
	if err != nil {
		return nil, err
	}
	report := c.newReport("down", cfg, dir)
	report.Existing = c.present(dir)

	err = c.down(ctx, cfg, dir, opts, report)
	c.finish(report, audit.EventDown, err)
	return report, err
}

func (c *Controller) down(ctx context.Context, cfg *config.EnvironmentConfig, dir string, opts Options, report *Report) error {
	snapshotted := true
	if opts.NoBackup {
		report.skip(StepSnapshot, "", "disabled")
	} else {
		snapshotted = c.snapshot(ctx, cfg, dir, "down", report)
	}

	c.teardownRuntime(ctx, cfg, opts.Volumes, opts, report)

	if !c.fs.Exists(dir) {
		report.skip(StepRemoveDir, "", "directory absent")
		return nil
	}
	if !snapshotted {
		report.warn(StepRemoveDir, "", "directory kept because the snapshot failed", nil)
		return nil
	}
	if err := c.remover(cfg).RemoveSafely(ctx, dir); err != nil {
		report.fail(StepRemoveDir, "", dir, err)
		return err
	}
	report.ok(StepRemoveDir, "", dir)
	return nil
}

// snapshot backs up the environment directory. It reports false only when
// a snapshot was needed and could not be taken.
func (c *Controller) snapshot(ctx context.Context, cfg *config.EnvironmentConfig, dir, reason string, report *Report) bool {
	if !c.present(dir) {
		report.skip(StepSnapshot, "", "nothing to back up")
		return true
	}
	mgr, err := c.Backups(cfg)
	if err != nil {
		report.fail(StepSnapshot, "", "", err)
		return false
	}
	snap, err := mgr.Create(ctx, cfg, dir, component.Catalog(), reason)
	if err != nil {
		report.fail(StepSnapshot, "", "", err)
		return false
	}
	report.Snapshot = snap
	detail := fmt.Sprintf("%s (%s)", snap.Name(), snap.ShortID())
	if snap.JitsiConfigBlob != "" {
		detail += ", with container config"
	}
	report.ok(StepSnapshot, "", detail)
	return true
}

// teardownRuntime stops and removes the environment's containers and
// networks, and its volumes when asked. Stacks still materialized are
// brought down through compose first; the label and name sweep catches
// whatever compose did not remove. Failures are recorded and the teardown
// continues.
func (c *Controller) teardownRuntime(ctx context.Context, cfg *config.EnvironmentConfig, volumes bool, opts Options, report *Report) {
	c.composeDown(ctx, cfg, report)

	containers, err := c.environmentContainers(ctx, cfg)
	if err != nil {
		report.warn(StepContainers, "", "could not list containers", errors.RuntimeCommandError("list containers", err))
	}

	var failed []error
	removed := 0
	for _, ctr := range containers {
		if ctr.Running() {
			if err := c.rt.StopContainer(ctx, ctr.ID); err != nil && !errors.Is(err, runtime.ErrNotFound) {
				logging.Debug("stop failed, removing anyway", "container", ctr.Name, "error", err)
			}
		}
		if err := c.rt.RemoveContainer(ctx, ctr.ID); err != nil && !errors.Is(err, runtime.ErrNotFound) {
			failed = append(failed, errors.RuntimeCommandError("remove container "+ctr.Name, err))
			continue
		}
		removed++
	}
	switch {
	case len(failed) > 0:
		report.warn(StepContainers, "", fmt.Sprintf("%d removed, %d failed", removed, len(failed)), errors.Join(failed...))
	case err == nil && removed == 0:
		report.skip(StepContainers, "", "none found")
	case err == nil:
		report.ok(StepContainers, "", fmt.Sprintf("%d removed", removed))
	}

	if errs := c.networks.RemoveNetworks(ctx, cfg); len(errs) > 0 {
		report.warn(StepNetworks, "", "some networks remain", errors.Join(errs...))
	} else {
		report.ok(StepNetworks, "", "removed")
	}

	if volumes {
		c.removeVolumes(ctx, cfg, opts, report)
	}
}

// composeDown runs compose down for every component whose directory still
// holds an env file and a prepared compose file. Volumes are left to
// removeVolumes, which asks before deleting them.
func (c *Controller) composeDown(ctx context.Context, cfg *config.EnvironmentConfig, report *Report) {
	for _, spec := range component.Catalog() {
		compDir, err := c.settings.ComponentDir(cfg, spec.Name)
		if err != nil {
			continue
		}
		files, ok := c.materializer.PreparedCompose(compDir, spec, cfg.Kind, cfg.IsOfficial())
		if !ok {
			continue
		}
		project := runtime.ComposeProject{
			Name:    cfg.ComposeProject(spec.Name),
			Dir:     files.Dir,
			Files:   files.Files,
			EnvFile: files.EnvFile,
		}
		if err := c.composer.Down(ctx, project, false); err != nil {
			report.warn(StepStop, spec.Name, "compose down failed, removing containers directly", errors.RuntimeCommandError("compose down "+project.Name, err))
			continue
		}
		report.ok(StepStop, spec.Name, project.Name)
	}
}

// environmentContainers finds every container of the environment, running
// or not. Containers without labels are matched by their compose project
// name prefix, unless their labels name another environment.
func (c *Controller) environmentContainers(ctx context.Context, cfg *config.EnvironmentConfig) ([]runtime.Container, error) {
	found, err := c.rt.ListContainers(ctx, runtime.Filter{Labels: cfg.Labels(), All: true})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(found))
	for _, ctr := range found {
		seen[ctr.ID] = true
	}

	var errs []error
	for _, comp := range config.Components {
		byName, err := c.rt.ListContainers(ctx, runtime.Filter{NamePrefix: cfg.ComposeProject(comp) + "-", All: true})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, ctr := range byName {
			if seen[ctr.ID] {
				continue
			}
			if !cfg.Claims(comp, ctr.Labels) {
				logging.Debug("name match labelled for another environment, skipping", "container", ctr.Name, "component", comp)
				continue
			}
			seen[ctr.ID] = true
			found = append(found, ctr)
		}
	}
	return found, errors.Join(errs...)
}

func (c *Controller) removeVolumes(ctx context.Context, cfg *config.EnvironmentConfig, opts Options, report *Report) {
	var names []string
	for _, comp := range config.Components {
		vols, err := c.rt.ListVolumes(ctx, map[string]string{config.LabelComposeProject: cfg.ComposeProject(comp)})
		if err != nil {
			report.warn(StepVolumes, comp, "could not list volumes", errors.RuntimeCommandError("list volumes", err))
			continue
		}
		for _, v := range vols {
			names = append(names, v.Name)
		}
	}
	slices.Sort(names)
	names = slices.Compact(names)
	if len(names) == 0 {
		report.skip(StepVolumes, "", "none found")
		return
	}

	if !opts.Force {
		ok, err := opts.decider().RemoveVolumes(ctx, cfg, names)
		if err != nil || !ok {
			report.skip(StepVolumes, "", fmt.Sprintf("%d volumes kept", len(names)))
			return
		}
	}

	var failed []error
	for _, name := range names {
		if err := c.rt.RemoveVolume(ctx, name); err != nil && !errors.Is(err, runtime.ErrNotFound) {
			failed = append(failed, errors.RuntimeCommandError("remove volume "+name, err))
		}
	}
	if len(failed) > 0 {
		report.warn(StepVolumes, "", fmt.Sprintf("%d of %d not removed", len(failed), len(names)), errors.Join(failed...))
		return
	}
	report.ok(StepVolumes, "", fmt.Sprintf("%d removed", len(names)))
}

// Restore puts a snapshot back into the environment directory.
func (c *Controller) Restore(ctx context.Context, opts Options, ref string) (*Report, error) {
	cfg, _, dir, err := c.resolve(opts)
	if err != nil {
		return nil, err
	}
	report := c.newReport("restore", cfg, dir)

	err = c.restore(ctx, cfg, dir, ref, report)
	c.finish(report, audit.EventRestore, err)
	return report, err
}

func (c *Controller) restore(ctx context.Context, cfg *config.EnvironmentConfig, dir, ref string, report *Report) error {
	mgr, err := c.Backups(cfg)
	if err != nil {
		return err
	}
	res, err := mgr.Restore(ctx, cfg, ref, dir)
	if err != nil {
		report.fail(StepRestore, "", ref, err)
		return err
	}
	report.Snapshot = res.Snapshot
	for _, name := range res.Components {
		report.ok(StepRestore, config.Component(name), "restored from "+res.Snapshot.Name())
	}
	switch {
	case res.BlobRestored:
		report.ok(StepRestore, config.ComponentJitsi, "container config copied in")
	case res.Snapshot.JitsiConfigBlob != "":
		report.warn(StepRestore, config.ComponentJitsi, "container not running, config left in snapshot", nil)
	}
	return nil
}
