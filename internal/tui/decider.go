package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/lifecycle"
)

// PromptDecider asks the operator through huh forms.
type PromptDecider struct {
	in         io.Reader
	out        io.Writer
	accessible bool
}

// NewPromptDecider creates a decider reading from in and drawing to out.
// Accessible mode is enabled when out is not a terminal.
func NewPromptDecider(in io.Reader, out io.Writer) *PromptDecider {
	return &PromptDecider{in: in, out: out, accessible: !IsTerminal(out)}
}

// WithAccessible forces accessible (line based) prompts on or off.
func (d *PromptDecider) WithAccessible(v bool) *PromptDecider {
	d.accessible = v
	return d
}

func (d *PromptDecider) run(ctx context.Context, fields ...huh.Field) error {
	form := huh.NewForm(huh.NewGroup(fields...)).
		WithInput(d.in).
		WithOutput(d.out).
		WithAccessible(d.accessible).
		WithShowHelp(true)
	return form.RunWithContext(ctx)
}

// ExistingEnvironment asks what to do with an environment that already has content.
func (d *PromptDecider) ExistingEnvironment(ctx context.Context, cfg *config.EnvironmentConfig, dir string) (lifecycle.Choice, error) {
	choice := lifecycle.ChoiceAbort
	field := huh.NewSelect[lifecycle.Choice]().
		Title(fmt.Sprintf("Environment %s already exists", cfg.Slug())).
		Description(dir).
		Options(
			huh.NewOption("Update in place", lifecycle.ChoiceUpdateInPlace),
			huh.NewOption("Reconcile (snapshot, remove, rebuild)", lifecycle.ChoiceReconcile),
			huh.NewOption("Abort", lifecycle.ChoiceAbort),
		).
		Value(&choice)

	if err := d.run(ctx, field); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return lifecycle.ChoiceAbort, nil
		}
		return "", err
	}
	return choice, nil
}

// ContinueAfterRemovalFailure asks whether to build into a directory that
// could not be cleared.
func (d *PromptDecider) ContinueAfterRemovalFailure(ctx context.Context, dir string, cause error) (bool, error) {
	return d.confirm(ctx,
		"Could not remove "+dir,
		cause.Error()+"\nContinue with the existing directory?",
		"Continue", "Stop")
}

// RemoveVolumes asks for confirmation before deleting data volumes.
func (d *PromptDecider) RemoveVolumes(ctx context.Context, cfg *config.EnvironmentConfig, volumes []string) (bool, error) {
	return d.confirm(ctx,
		fmt.Sprintf("Remove %d volumes of %s?", len(volumes), cfg.Slug()),
		strings.Join(volumes, "\n")+"\nThe data in them cannot be recovered.",
		"Remove", "Keep")
}

func (d *PromptDecider) confirm(ctx context.Context, title, description, yes, no string) (bool, error) {
	var ok bool
	field := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative(yes).
		Negative(no).
		Value(&ok)

	if err := d.run(ctx, field); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

var _ lifecycle.Decider = (*PromptDecider)(nil)
