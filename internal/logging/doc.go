// Package logging carries the two output channels of envctl.
//
// Diagnostic logs go through slog. Text output uses the tint handler and
// --json switches to slog's JSON handler; ENVCTL_LOG_LEVEL or --verbose
// pick the level:
//
//	logging.Debug("syncing component", "component", name, "target", target)
//	logging.Warn("network already exists", "network", name)
//
// Operator messages are plain lines with a status glyph. Info (ℹ) and
// success (✓) lines go to Stdout; warning (⚠) and error (✗) lines go to
// Stderr. Both writers are variables so tests can capture them:
//
//	logging.UserSuccess("Environment %s is up", slug)
//	logging.UserWarning("%s has no running container", service)
package logging
