package lifecycle

import (
	"context"

	"github.com/medstack-ops/envctl/internal/config"
)

// Choice is the action taken on an environment that already exists.
type Choice string

const (
	ChoiceUpdateInPlace Choice = "update"
	ChoiceReconcile     Choice = "reconcile"
	ChoiceAbort         Choice = "abort"
)

// Decider answers the questions a run cannot answer on its own.
type Decider interface {
	// ExistingEnvironment chooses what to do with an environment
	// directory that already has content.
	ExistingEnvironment(ctx context.Context, cfg *config.EnvironmentConfig, dir string) (Choice, error)

	// ContinueAfterRemovalFailure decides whether to materialize into a
	// directory that could not be removed.
	ContinueAfterRemovalFailure(ctx context.Context, dir string, err error) (bool, error)

	// RemoveVolumes confirms deleting the listed volumes.
	RemoveVolumes(ctx context.Context, cfg *config.EnvironmentConfig, volumes []string) (bool, error)
}

// FlagDecider answers from fixed values, for non-interactive runs.
type FlagDecider struct {
	// Existing is returned for an existing environment. Empty aborts.
	Existing Choice

	// ContinueOnRemovalFailure carries on into a non-empty directory.
	ContinueOnRemovalFailure bool

	// ConfirmVolumes approves volume removal.
	ConfirmVolumes bool
}

func (d FlagDecider) ExistingEnvironment(ctx context.Context, cfg *config.EnvironmentConfig, dir string) (Choice, error) {
	if d.Existing == "" {
		return ChoiceAbort, nil
	}
	return d.Existing, nil
}

func (d FlagDecider) ContinueAfterRemovalFailure(ctx context.Context, dir string, err error) (bool, error) {
	return d.ContinueOnRemovalFailure, nil
}

func (d FlagDecider) RemoveVolumes(ctx context.Context, cfg *config.EnvironmentConfig, volumes []string) (bool, error) {
	return d.ConfirmVolumes, nil
}

var _ Decider = FlagDecider{}
