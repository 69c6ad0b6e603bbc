// Package app wires the process-wide dependencies of envctl: operator
// settings, the container runtime and composer, the command executor and
// the file system.
//
// New fills in whatever the options leave unset. Settings come from the
// ENVCTL_* environment over envctl.env, and the runtime is detected from
// the configured back end. A missing engine is not fatal at construction;
// commands that need one call RequireRuntime.
//
// Tests swap pieces in with options and install the result as Default:
//
//	a, err := app.New(
//	    app.WithSettings(settings),
//	    app.WithRuntime(runtime.NewMockRuntime(), runtime.NewMockComposer()),
//	    app.WithControllerOptions(lifecycle.WithSleep(noSleep)),
//	)
//	app.SetDefault(a)
package app
