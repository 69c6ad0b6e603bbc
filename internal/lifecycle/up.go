package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/medstack-ops/envctl/internal/audit"
	"github.com/medstack-ops/envctl/internal/component"
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/errors"
	"github.com/medstack-ops/envctl/internal/port"
	"github.com/medstack-ops/envctl/internal/proxy"
	"github.com/medstack-ops/envctl/internal/runtime"
)

// Up brings an environment up. The returned error is a configuration
// error, an unrecovered directory-removal error, a failed decision, or
// cancellation; everything else is recorded in the report.
func (c *Controller) Up(ctx context.Context, opts Options) (*Report, error) {
	cfg, specs, dir, err := c.resolve(opts)
	if err != nil {
		return nil, err
	}
	report := c.newReport("up", cfg, dir)

	err = c.up(ctx, cfg, specs, dir, opts, report)
	c.finish(report, audit.EventUp, err)
	return report, err
}

func (c *Controller) up(ctx context.Context, cfg *config.EnvironmentConfig, specs []component.Spec, dir string, opts Options, report *Report) error {
	if c.present(dir) {
		report.Existing = true
		choice, err := opts.decider().ExistingEnvironment(ctx, cfg, dir)
		if err != nil {
			return err
		}
		report.Choice = choice

		switch choice {
		case ChoiceUpdateInPlace:
			report.ok(StepState, "", "updating existing environment in place")
		case ChoiceReconcile:
			report.ok(StepState, "", "reconciling existing environment")
			if err := c.reconcile(ctx, cfg, dir, opts, report); err != nil || report.Aborted {
				return err
			}
		default:
			report.Aborted = true
			report.skip(StepState, "", "environment exists, aborted")
			return nil
		}
	} else {
		report.ok(StepState, "", "new environment")
	}

	c.checkPorts(cfg, report)

	if err := c.networks.EnsureNetworks(ctx, cfg); err != nil {
		report.fail(StepNetworks, "", "", err)
	} else {
		report.ok(StepNetworks, "", fmt.Sprintf("%d networks", len(cfg.Networks.All())))
	}

	started := 0
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.bringUpComponent(ctx, cfg, spec, opts, report) {
			started++
		}
	}
	if started == 0 {
		report.skip(StepConnect, "", "no component started")
		report.skip(StepProxyLogin, "", "no component started")
		return nil
	}

	if err := c.wait(ctx, c.settings.ReadinessDelay, "readiness", report); err != nil {
		return err
	}
	c.connect(ctx, cfg, report)

	if err := c.wait(ctx, c.settings.ProxyStartupDelay, "proxy control plane", report); err != nil {
		return err
	}
	c.publish(ctx, cfg, report)
	return nil
}

func (c *Controller) wait(ctx context.Context, delay time.Duration, what string, report *Report) error {
	if err := c.sleep(ctx, delay); err != nil {
		report.fail(StepWait, "", what, err)
		return err
	}
	report.ok(StepWait, "", fmt.Sprintf("%s %s", what, delay))
	return nil
}

// bringUpComponent materializes and starts one component. It reports
// whether the stack was started.
func (c *Controller) bringUpComponent(ctx context.Context, cfg *config.EnvironmentConfig, spec component.Spec, opts Options, report *Report) bool {
	name := spec.Name

	if opts.UpdateSources {
		res, err := c.sources.Update(ctx, spec)
		switch {
		case errors.IsKind(err, errors.KindSourceMissing):
			// Reported by Locate below.
		case err != nil:
			report.warn(StepSource, name, "update failed, using checkout as is", err)
		case res.Skipped:
			report.skip(StepSource, name, "not under version control")
		case res.Changed():
			report.ok(StepSource, name, fmt.Sprintf("%s updated %.8s -> %.8s", res.Backend, res.Before, res.After))
		default:
			report.ok(StepSource, name, "up to date")
		}
	}

	srcDir, err := c.sources.Locate(spec)
	if err != nil {
		if spec.Optional {
			report.skip(StepSource, name, "optional component has no source checkout")
		} else {
			report.fail(StepSource, name, "", err)
		}
		return false
	}

	compDir, err := c.settings.ComponentDir(cfg, name)
	if err != nil {
		report.fail(StepSync, name, "", err)
		return false
	}
	changed, err := c.materializer.SyncDirectory(srcDir, compDir, spec.Exclude)
	if err != nil {
		report.fail(StepSync, name, "", err)
		return false
	}
	if changed {
		report.ok(StepSync, name, "files updated")
	} else {
		report.ok(StepSync, name, "unchanged")
	}

	env, err := c.materializer.SynthesizeEnvFile(spec, srcDir, spec.TemplateChain(cfg.Kind), spec.EnvRules(cfg, opts.DevMode), cfg.Slug())
	if err != nil {
		report.fail(StepEnvFile, name, "", err)
		return false
	}
	if _, err := c.materializer.WriteEnvFile(compDir, env.Content); err != nil {
		report.fail(StepEnvFile, name, "", err)
		return false
	}
	if env.Minimal() {
		report.warn(StepEnvFile, name, "no template found, wrote minimal env file", errors.TemplateMissing(string(name)))
	} else {
		report.ok(StepEnvFile, name, "from "+env.Template)
	}

	sel, ok := c.materializer.SelectComposeFile(compDir, spec, cfg.Kind, opts.DevMode, cfg.IsOfficial())
	if !ok {
		report.warn(StepCompose, name, sel.Warning, nil)
		return false
	}
	files, err := c.materializer.PrepareCompose(compDir, sel, cfg.ComponentLabels(name))
	if err != nil {
		report.fail(StepCompose, name, "", err)
		return false
	}
	if sel.Warning != "" {
		report.warn(StepCompose, name, sel.Warning, nil)
	} else {
		report.ok(StepCompose, name, sel.Rel)
	}

	project := runtime.ComposeProject{
		Name:    cfg.ComposeProject(name),
		Dir:     files.Dir,
		Files:   files.Files,
		EnvFile: files.EnvFile,
	}
	if err := c.composer.Up(ctx, project); err != nil {
		report.fail(StepStart, name, "", errors.RuntimeCommandError("compose up "+project.Name, err))
		return false
	}
	report.ok(StepStart, name, project.Name)
	return true
}

func (c *Controller) connect(ctx context.Context, cfg *config.EnvironmentConfig, report *Report) {
	res := c.networks.ConnectContainers(ctx, cfg)
	for _, m := range res.Missing {
		report.skip(StepConnect, "", m+" not running")
	}
	for _, err := range res.Errors {
		report.warn(StepConnect, "", "", err)
	}
	if len(res.Connections) > 0 {
		report.ok(StepConnect, "", fmt.Sprintf("%d connections", len(res.Connections)))
	}
}

func (c *Controller) publish(ctx context.Context, cfg *config.EnvironmentConfig, report *Report) {
	client := c.ProxyClient(cfg)
	token, err := client.Authenticate(ctx, c.settings.ProxyIdentity, c.settings.ProxySecret)
	if err != nil {
		report.fail(StepProxyLogin, "", "routes not published", err)
		return
	}
	report.ok(StepProxyLogin, "", c.settings.ControlPlaneURL(cfg))

	for _, r := range proxy.PublishRoutes(ctx, client, token, cfg, c.networks) {
		switch {
		case r.Err != nil:
			report.warn(StepRoute, "", r.Domain, r.Err)
		case r.Skipped:
			report.skip(StepRoute, "", r.Domain+" has no running container")
		case r.Created:
			report.ok(StepRoute, "", r.Domain+" -> "+r.Target+" created")
		default:
			report.ok(StepRoute, "", r.Domain+" exists")
		}
	}
}

// checkPorts warns about host ports another materialized environment
// publishes as well.
func (c *Controller) checkPorts(cfg *config.EnvironmentConfig, report *Report) {
	existing, err := port.Existing(c.fs, c.settings.EnvironmentsDir, cfg.DomainBase)
	if err != nil {
		report.warn(StepPorts, "", "could not list environments", err)
		return
	}
	for _, conflict := range port.Conflicts(cfg, existing) {
		report.warn(StepPorts, conflict.Binding.Component, conflict.String(), nil)
	}
}
