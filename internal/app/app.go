// Package app provides the application context for envctl.
// It allows dependency injection for testing.
package app

import (
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/errors"
	"github.com/medstack-ops/envctl/internal/lifecycle"
	"github.com/medstack-ops/envctl/internal/logging"
	"github.com/medstack-ops/envctl/internal/runtime"
	"github.com/medstack-ops/envctl/internal/system"
)

// App holds the application dependencies
type App struct {
	// Settings holds the operator settings
	Settings *config.Settings

	// Runtime is the container runtime
	Runtime runtime.Runtime

	// Composer starts and stops compose stacks
	Composer runtime.Composer

	// Executor runs external commands
	Executor system.CommandExecutor

	// FS is the file system
	FS system.FileSystem

	// ControllerOptions are passed to every lifecycle controller
	ControllerOptions []lifecycle.Option

	runtimeErr error
}

// Option is a function that configures the App
type Option func(*App)

// WithSettings sets custom settings
func WithSettings(s *config.Settings) Option {
	return func(a *App) {
		a.Settings = s
	}
}

// WithRuntime sets a custom runtime and composer
func WithRuntime(r runtime.Runtime, c runtime.Composer) Option {
	return func(a *App) {
		a.Runtime = r
		a.Composer = c
	}
}

// WithExecutor sets a custom command executor
func WithExecutor(e system.CommandExecutor) Option {
	return func(a *App) {
		a.Executor = e
	}
}

// WithFS sets a custom file system
func WithFS(fs system.FileSystem) Option {
	return func(a *App) {
		a.FS = fs
	}
}

// WithControllerOptions adds lifecycle controller options
func WithControllerOptions(opts ...lifecycle.Option) Option {
	return func(a *App) {
		a.ControllerOptions = append(a.ControllerOptions, opts...)
	}
}

// New creates a new App with the given options. Settings are loaded from
// the environment and the settings file when not provided. If the runtime
// is not provided via WithRuntime, it is created from Settings.Runtime;
// a failure is kept and reported by RequireRuntime.
func New(opts ...Option) (*App, error) {
	a := &App{}
	for _, opt := range opts {
		opt(a)
	}

	if a.Settings == nil {
		s, err := config.LoadSettings(config.DefaultSettingsFile)
		if err != nil {
			return nil, errors.ConfigError("failed to load settings", err)
		}
		a.Settings = s
	}
	if a.Executor == nil {
		a.Executor = system.DefaultExecutor()
	}
	if a.FS == nil {
		a.FS = system.DefaultFS()
	}

	if a.Runtime == nil {
		cfg := &runtime.Config{
			Type:     runtime.RuntimeType(a.Settings.Runtime),
			Executor: a.Executor,
		}
		rt, composer, err := runtime.New(cfg)
		if err != nil {
			logging.Debug("failed to initialize runtime", "error", err)
			a.runtimeErr = err
		} else {
			a.Runtime = rt
			a.Composer = composer
		}
	}

	return a, nil
}

// RequireRuntime returns an error when no container runtime is available.
func (a *App) RequireRuntime() error {
	if a.Runtime != nil && a.Composer != nil {
		return nil
	}
	if a.runtimeErr != nil {
		return errors.Wrap(errors.ExitRuntimeCommand, "no container runtime available", a.runtimeErr)
	}
	return errors.New(errors.ExitRuntimeCommand, "no container runtime available")
}

// Controller returns a lifecycle controller wired to the app's dependencies.
func (a *App) Controller() (*lifecycle.Controller, error) {
	if err := a.RequireRuntime(); err != nil {
		return nil, err
	}
	return lifecycle.New(a.Settings, a.FS, a.Runtime, a.Composer, a.Executor, a.ControllerOptions...), nil
}

// Default is the application instance used by the commands. It is created
// on first use by the root command.
var Default *App

// SetDefault sets the default application instance (used for testing)
func SetDefault(app *App) {
	Default = app
}

// ResetDefault clears the default application instance
func ResetDefault() {
	Default = nil
}
