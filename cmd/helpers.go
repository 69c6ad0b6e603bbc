package cmd

import (
	"os"

	"github.com/medstack-ops/envctl/internal/app"
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/lifecycle"
	"github.com/medstack-ops/envctl/internal/tui"
)

// settings returns the loaded operator settings.
func settings() *config.Settings {
	return app.Default.Settings
}

// envOptions returns lifecycle options for the selected environment,
// with flags taking precedence over settings.
func envOptions() lifecycle.Options {
	s := settings()
	opts := lifecycle.Options{
		Project:     s.Project,
		Environment: s.Environment,
		DomainBase:  s.DomainBase,
	}
	if projectName != "" {
		opts.Project = projectName
	}
	if envName != "" {
		opts.Environment = envName
	}
	if domainBase != "" {
		opts.DomainBase = domainBase
	}
	return opts
}

// resolveConfig resolves the selected environment.
func resolveConfig() (*config.EnvironmentConfig, error) {
	opts := envOptions()
	return config.Resolve(opts.Project, opts.Environment, opts.DomainBase)
}

// controller returns a lifecycle controller for the default app.
func controller() (*lifecycle.Controller, error) {
	return app.Default.Controller()
}

// decider picks how operator questions are answered. Interactive prompts
// are used only when stdin is a terminal and answers were not fixed by flags.
func decider(fixed lifecycle.FlagDecider, nonInteractive bool) lifecycle.Decider {
	if nonInteractive || !stdinIsTerminal() {
		return fixed
	}
	return tui.NewPromptDecider(os.Stdin, os.Stdout)
}

// stdinIsTerminal is replaced in tests.
var stdinIsTerminal = func() bool {
	return tui.IsTerminal(os.Stdin)
}
