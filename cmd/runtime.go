package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medstack-ops/envctl/internal/app"
	"github.com/medstack-ops/envctl/internal/errors"
	"github.com/medstack-ops/envctl/internal/runtime"
)

var runtimeCmd = &cobra.Command{
	Use:   "runtime",
	Short: "Show the container runtime in use",
	Args:  cobra.NoArgs,
	RunE:  runRuntime,
}

func init() {
	rootCmd.AddCommand(runtimeCmd)
}

func runRuntime(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	available := runtime.Available()
	names := make([]string, 0, len(available))
	for _, rt := range available {
		names = append(names, string(rt))
	}
	fmt.Fprintf(out, "configured: %s\n", settings().Runtime)
	fmt.Fprintf(out, "available:  %v\n", names)

	if err := app.Default.RequireRuntime(); err != nil {
		return err
	}
	rt := app.Default.Runtime
	fmt.Fprintf(out, "selected:   %s\n", rt.Name())

	if err := rt.Ping(cmd.Context()); err != nil {
		return errors.RuntimeCommandError("ping", err)
	}
	logSuccess("%s engine is reachable", rt.Name())
	return nil
}
