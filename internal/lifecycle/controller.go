package lifecycle

import (
	"context"
	"time"

	"github.com/medstack-ops/envctl/internal/audit"
	"github.com/medstack-ops/envctl/internal/backup"
	"github.com/medstack-ops/envctl/internal/component"
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/errors"
	"github.com/medstack-ops/envctl/internal/logging"
	"github.com/medstack-ops/envctl/internal/materialize"
	"github.com/medstack-ops/envctl/internal/network"
	"github.com/medstack-ops/envctl/internal/proxy"
	"github.com/medstack-ops/envctl/internal/reconcile"
	"github.com/medstack-ops/envctl/internal/retry"
	"github.com/medstack-ops/envctl/internal/runtime"
	"github.com/medstack-ops/envctl/internal/source"
	"github.com/medstack-ops/envctl/internal/system"
)

// Options selects the environment and how a run behaves.
type Options struct {
	Project     string
	Environment string
	DomainBase  string

	// DevMode selects dev compose overlays and dev env overrides.
	DevMode bool

	// Components limits the run to these component names. Empty means all.
	Components []string

	// UpdateSources fast-forwards source checkouts before syncing.
	UpdateSources bool

	// Volumes asks Down to remove the environment's volumes.
	Volumes bool

	// Force removes volumes without asking the Decider.
	Force bool

	// NoBackup skips the snapshot before teardown.
	NoBackup bool

	// Decider answers operator questions. Nil means FlagDecider{}.
	Decider Decider
}

func (o Options) decider() Decider {
	if o.Decider == nil {
		return FlagDecider{}
	}
	return o.Decider
}

// Controller runs lifecycle operations against one runtime.
type Controller struct {
	settings *config.Settings
	fs       system.FileSystem
	rt       runtime.Runtime
	composer runtime.Composer

	sources      *source.Provider
	networks     *network.Manager
	materializer *materialize.Materializer
	audit        *audit.Logger

	proxyOpts   []proxy.Option
	removerOpts []reconcile.Option
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithSleep replaces the fixed-delay wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Controller) {
		c.sleep = fn
	}
}

// WithClock sets the clock for generated headers and snapshots.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithProxyOptions adds options to every control-plane client.
func WithProxyOptions(opts ...proxy.Option) Option {
	return func(c *Controller) {
		c.proxyOpts = append(c.proxyOpts, opts...)
	}
}

// WithRemoverOptions adds options to every directory remover.
func WithRemoverOptions(opts ...reconcile.Option) Option {
	return func(c *Controller) {
		c.removerOpts = append(c.removerOpts, opts...)
	}
}

// WithAuditLogger replaces the audit logger.
func WithAuditLogger(l *audit.Logger) Option {
	return func(c *Controller) {
		c.audit = l
	}
}

// WithSourceProvider replaces the source provider.
func WithSourceProvider(p *source.Provider) Option {
	return func(c *Controller) {
		c.sources = p
	}
}

// New creates a Controller.
func New(settings *config.Settings, fsys system.FileSystem, rt runtime.Runtime, composer runtime.Composer, exec system.CommandExecutor, opts ...Option) *Controller {
	c := &Controller{
		settings: settings,
		fs:       fsys,
		rt:       rt,
		composer: composer,
		sources:  source.NewProvider(settings, fsys, exec),
		networks: network.NewManager(rt),
		audit:    audit.NewLogger(settings.StateDir),
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.materializer = materialize.New(fsys, materialize.WithClock(c.now))
	return c
}

// Networks returns the network manager.
func (c *Controller) Networks() *network.Manager {
	return c.networks
}

// Backups returns the snapshot manager of an environment.
func (c *Controller) Backups(cfg *config.EnvironmentConfig) (*backup.Manager, error) {
	root, err := c.settings.BackupDir(cfg)
	if err != nil {
		return nil, errors.ConfigError("invalid backup path", err)
	}
	return backup.NewManager(root, c.fs, c.rt, c.networks, backup.WithClock(c.now)), nil
}

// ProxyClient returns a control-plane client for an environment.
func (c *Controller) ProxyClient(cfg *config.EnvironmentConfig) *proxy.Client {
	opts := append([]proxy.Option{
		proxy.WithAuthPolicy(retry.Fixed(c.settings.AuthAttempts, c.settings.AuthDelay)),
	}, c.proxyOpts...)
	return proxy.NewClient(c.settings.ControlPlaneURL(cfg), opts...)
}

func (c *Controller) remover(cfg *config.EnvironmentConfig) *reconcile.Remover {
	opts := append([]reconcile.Option{
		reconcile.WithPolicy(retry.Fixed(c.settings.RemoveAttempts, c.settings.RemoveDelay)),
		reconcile.WithRelease(reconcile.ReleaseMounts(c.rt, cfg.Labels())),
	}, c.removerOpts...)
	return reconcile.NewRemover(c.fs, opts...)
}

// resolve derives the configuration, component selection and directory of a run.
func (c *Controller) resolve(opts Options) (*config.EnvironmentConfig, []component.Spec, string, error) {
	cfg, err := config.Resolve(opts.Project, opts.Environment, opts.DomainBase)
	if err != nil {
		return nil, nil, "", err
	}
	specs, err := component.ParseNames(opts.Components)
	if err != nil {
		return nil, nil, "", errors.ConfigError("invalid component selection", err)
	}
	dir, err := c.settings.EnvironmentDir(cfg)
	if err != nil {
		return nil, nil, "", errors.ConfigError("invalid environment path", err)
	}
	return cfg, specs, dir, nil
}

func (c *Controller) newReport(op string, cfg *config.EnvironmentConfig, dir string) *Report {
	return &Report{
		Operation:   op,
		Environment: cfg.Slug(),
		RunID:       audit.NewRunID(),
		Dir:         dir,
		Started:     c.now(),
	}
}

// finish stamps the report and records it in the audit log.
func (c *Controller) finish(report *Report, event audit.EventType, runErr error) {
	report.Finished = c.now()
	if runErr != nil {
		event = audit.EventError
	}

	details := report.Operation
	switch {
	case runErr != nil:
		details += ": " + runErr.Error()
	case report.Aborted:
		details += ": aborted"
	default:
		details += ": " + summary(report)
	}
	if err := c.audit.LogEvent(event, report.Environment, report.RunID, details); err != nil {
		logging.Debug("audit log write failed", "error", err)
	}
}

func summary(r *Report) string {
	return formatCounts(r.Count(StepOK), r.Count(StepWarning), r.Count(StepFailed), r.Count(StepSkipped))
}

// present reports whether dir exists with content.
func (c *Controller) present(dir string) bool {
	if !c.fs.IsDir(dir) {
		return false
	}
	entries, err := c.fs.ReadDir(dir)
	return err == nil && len(entries) > 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
