// Package tui provides the terminal front end of envctl: interactive
// decisions during lifecycle runs and tables for reports and status.
//
// # Decisions
//
// PromptDecider implements lifecycle.Decider with huh forms:
//
//	d := tui.NewPromptDecider(os.Stdin, os.Stdout)
//	report, err := ctrl.Up(ctx, lifecycle.Options{..., Decider: d})
//
// An aborted form (ctrl+c, esc) is answered with the safe choice: abort
// for an existing environment, no for removal and volume questions.
// Accessible mode reads plain numbered answers from the input and is
// used when the output is not a terminal.
//
// # Rendering
//
// RenderReport, RenderStatus, RenderSnapshots, RenderEvents and
// RenderHosts write lipgloss tables. Colour is dropped automatically when
// the writer is not a terminal.
//
// # Dependencies
//
// Uses the Charm libraries:
//   - github.com/charmbracelet/huh - forms
//   - github.com/charmbracelet/lipgloss - styling and tables
package tui
