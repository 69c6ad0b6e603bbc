package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medstack-ops/envctl/internal/backup"
	"github.com/medstack-ops/envctl/internal/tui"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage environment snapshots",
	Long: `List, restore, and delete the snapshots taken before an environment
is torn down or reconciled. A snapshot reference is "latest", a snapshot
ID or unique ID prefix, or the snapshot's directory name.`,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotList,
}

var snapshotRestoreCmd = &cobra.Command{
	Use:   "restore <ref>",
	Short: "Restore a snapshot into the environment directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotRestore,
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <ref>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotDelete,
}

var snapshotPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest snapshots",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotPrune,
}

var snapshotKeep int

func init() {
	snapshotPruneCmd.Flags().IntVar(&snapshotKeep, "keep", 5, "Number of snapshots to keep")
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotRestoreCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)
	snapshotCmd.AddCommand(snapshotPruneCmd)
	rootCmd.AddCommand(snapshotCmd)
}

// backups returns the snapshot manager of the selected environment.
func backups() (*backup.Manager, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, err
	}
	ctrl, err := controller()
	if err != nil {
		return nil, err
	}
	return ctrl.Backups(cfg)
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	mgr, err := backups()
	if err != nil {
		return err
	}
	snaps, err := mgr.List()
	if err != nil {
		return err
	}
	tui.RenderSnapshots(cmd.OutOrStdout(), snaps)
	return nil
}

func runSnapshotRestore(cmd *cobra.Command, args []string) error {
	ctrl, err := controller()
	if err != nil {
		return err
	}
	report, err := ctrl.Restore(cmd.Context(), envOptions(), args[0])
	if report != nil {
		tui.RenderReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}
	logSuccess("Restored %s into %s", report.Snapshot.Name(), report.Dir)
	logInfo("Run \"envctl up --update-in-place\" to start it")
	return nil
}

func runSnapshotDelete(cmd *cobra.Command, args []string) error {
	mgr, err := backups()
	if err != nil {
		return err
	}
	snap, err := mgr.Delete(args[0])
	if err != nil {
		return err
	}
	logSuccess("Deleted snapshot %s (%s)", snap.Name(), snap.ShortID())
	return nil
}

func runSnapshotPrune(cmd *cobra.Command, args []string) error {
	mgr, err := backups()
	if err != nil {
		return err
	}
	removed, err := mgr.Prune(snapshotKeep)
	for _, s := range removed {
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (%s)\n", s.Name(), s.ShortID())
	}
	if err != nil {
		return err
	}
	logSuccess("Pruned %d snapshots, kept %d", len(removed), snapshotKeep)
	return nil
}
