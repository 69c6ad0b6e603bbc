package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medstack-ops/envctl/internal/errors"
)

var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Manage the shared networks of an environment",
	Long: `Each environment owns three networks: proxy, frontend and shared.
Containers started from separate compose projects reach each other
through them.`,
}

var networkEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create missing networks",
	Args:  cobra.NoArgs,
	RunE:  runNetworkEnsure,
}

var networkConnectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Attach running containers to their networks",
	Args:  cobra.NoArgs,
	RunE:  runNetworkConnect,
}

var networkRmCmd = &cobra.Command{
	Use:   "rm",
	Short: "Remove the networks",
	Args:  cobra.NoArgs,
	RunE:  runNetworkRm,
}

func init() {
	networkCmd.AddCommand(networkEnsureCmd)
	networkCmd.AddCommand(networkConnectCmd)
	networkCmd.AddCommand(networkRmCmd)
	rootCmd.AddCommand(networkCmd)
}

func runNetworkEnsure(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	ctrl, err := controller()
	if err != nil {
		return err
	}
	if err := ctrl.Networks().EnsureNetworks(cmd.Context(), cfg); err != nil {
		return err
	}
	for _, name := range cfg.Networks.All() {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	logSuccess("Networks of %s are present", cfg.Slug())
	return nil
}

func runNetworkConnect(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	ctrl, err := controller()
	if err != nil {
		return err
	}

	res := ctrl.Networks().ConnectContainers(cmd.Context(), cfg)
	out := cmd.OutOrStdout()
	for _, c := range res.Connections {
		state := "connected"
		if c.Existing {
			state = "already connected"
		}
		fmt.Fprintf(out, "%s -> %s (%s)\n", c.Container, c.Network, state)
	}
	for _, m := range res.Missing {
		logWarning("%s has no running container", m)
	}
	if !res.OK() {
		return errors.Join(res.Errors...)
	}
	return nil
}

func runNetworkRm(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	ctrl, err := controller()
	if err != nil {
		return err
	}
	if errs := ctrl.Networks().RemoveNetworks(cmd.Context(), cfg); len(errs) > 0 {
		return errors.Join(errs...)
	}
	logSuccess("Networks of %s removed", cfg.Slug())
	return nil
}
