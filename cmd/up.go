package cmd

import (
	"github.com/spf13/cobra"

	"github.com/medstack-ops/envctl/internal/lifecycle"
	"github.com/medstack-ops/envctl/internal/logging"
	"github.com/medstack-ops/envctl/internal/tui"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Materialize and start an environment",
	Long: `Materialize the component trees of an environment from their source
checkouts, start each compose stack, wire the shared networks and publish
the public routes on the reverse proxy.

When the environment already exists you are asked whether to update it in
place, reconcile it (snapshot, remove, rebuild) or abort. --update-in-place,
--reconcile and --force answer up front; --yes never prompts and aborts
unless one of them is given.`,
	Args: cobra.NoArgs,
	RunE: runUp,
}

var upFlags struct {
	dev           bool
	components    []string
	updateInPlace bool
	reconcile     bool
	force         bool
	updateSources bool
	noBackup      bool
	yes           bool
}

func init() {
	upCmd.Flags().BoolVar(&upFlags.dev, "dev", false, "Use dev compose overlays and dev env overrides")
	upCmd.Flags().StringSliceVarP(&upFlags.components, "component", "c", nil, "Limit to these components (repeatable)")
	upCmd.Flags().BoolVar(&upFlags.updateInPlace, "update-in-place", false, "Update an existing environment in place")
	upCmd.Flags().BoolVar(&upFlags.reconcile, "reconcile", false, "Snapshot, remove and rebuild an existing environment")
	upCmd.Flags().BoolVar(&upFlags.force, "force", false, "Reconcile an existing environment and continue if its directory cannot be removed")
	upCmd.Flags().BoolVar(&upFlags.updateSources, "update-sources", false, "Fast-forward source checkouts before syncing")
	upCmd.Flags().BoolVar(&upFlags.noBackup, "no-backup", false, "Skip the snapshot before reconciling")
	upCmd.Flags().BoolVarP(&upFlags.yes, "yes", "y", false, "Never prompt")
	upCmd.MarkFlagsMutuallyExclusive("update-in-place", "reconcile")
	upCmd.MarkFlagsMutuallyExclusive("update-in-place", "force")
	rootCmd.AddCommand(upCmd)
}

func runUp(cmd *cobra.Command, args []string) error {
	ctrl, err := controller()
	if err != nil {
		return err
	}

	fixed := lifecycle.FlagDecider{ContinueOnRemovalFailure: upFlags.force}
	switch {
	case upFlags.updateInPlace:
		fixed.Existing = lifecycle.ChoiceUpdateInPlace
	case upFlags.reconcile || upFlags.force:
		fixed.Existing = lifecycle.ChoiceReconcile
	}
	answered := fixed.Existing != ""

	opts := envOptions()
	opts.DevMode = upFlags.dev
	opts.Components = upFlags.components
	opts.UpdateSources = upFlags.updateSources
	opts.NoBackup = upFlags.noBackup
	opts.Decider = decider(fixed, upFlags.yes || answered)

	logging.Debug("bringing environment up", "project", opts.Project, "env", opts.Environment, "dev", opts.DevMode)

	report, err := ctrl.Up(cmd.Context(), opts)
	if report != nil {
		tui.RenderReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}

	switch {
	case report.Aborted:
		logWarning("Environment %s exists; rerun with --update-in-place or --reconcile", report.Environment)
	case report.OK():
		logSuccess("Environment %s is up", report.Environment)
	default:
		logWarning("Environment %s is up with %d failed steps", report.Environment, report.Count(lifecycle.StepFailed))
	}
	return nil
}
