package cmd

import (
	"github.com/spf13/cobra"

	"github.com/medstack-ops/envctl/internal/lifecycle"
	"github.com/medstack-ops/envctl/internal/tui"
)

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Tear an environment down",
	Long: `Snapshot the environment, remove its containers and networks, and
remove its directory. Volumes are kept unless --volumes is given; removing
them asks for confirmation unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runDown,
}

var downFlags struct {
	volumes  bool
	force    bool
	noBackup bool
	yes      bool
}

func init() {
	downCmd.Flags().BoolVar(&downFlags.volumes, "volumes", false, "Also remove the environment's volumes")
	downCmd.Flags().BoolVar(&downFlags.force, "force", false, "Remove volumes without asking")
	downCmd.Flags().BoolVar(&downFlags.noBackup, "no-backup", false, "Skip the snapshot")
	downCmd.Flags().BoolVarP(&downFlags.yes, "yes", "y", false, "Never prompt; volumes are kept without --force")
	rootCmd.AddCommand(downCmd)
}

func runDown(cmd *cobra.Command, args []string) error {
	ctrl, err := controller()
	if err != nil {
		return err
	}

	opts := envOptions()
	opts.Volumes = downFlags.volumes
	opts.Force = downFlags.force
	opts.NoBackup = downFlags.noBackup
	opts.Decider = decider(lifecycle.FlagDecider{}, downFlags.yes)

	logInfo("Tearing down %s-%s...", opts.Project, opts.Environment)
	report, err := ctrl.Down(cmd.Context(), opts)
	if report != nil {
		tui.RenderReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}
	logSuccess("Environment %s is down", report.Environment)
	return nil
}
