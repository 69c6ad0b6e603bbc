package cmd

import (
	"github.com/spf13/cobra"

	"github.com/medstack-ops/envctl/internal/lifecycle"
	"github.com/medstack-ops/envctl/internal/tui"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Snapshot and clear an environment without rebuilding it",
	Long: `Snapshot the environment, remove its containers and networks, and
remove its directory so the next "envctl up" materializes it fresh.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

var reconcileFlags struct {
	force    bool
	noBackup bool
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileFlags.force, "force", false, "Continue if the directory cannot be removed")
	reconcileCmd.Flags().BoolVar(&reconcileFlags.noBackup, "no-backup", false, "Skip the snapshot")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctrl, err := controller()
	if err != nil {
		return err
	}

	opts := envOptions()
	opts.NoBackup = reconcileFlags.noBackup
	opts.Decider = decider(lifecycle.FlagDecider{ContinueOnRemovalFailure: reconcileFlags.force}, reconcileFlags.force)

	report, err := ctrl.Reconcile(cmd.Context(), opts)
	if report != nil {
		tui.RenderReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}
	if report.Aborted {
		logWarning("Snapshot failed; %s left untouched", report.Environment)
		return nil
	}
	logSuccess("Environment %s reconciled", report.Environment)
	return nil
}
