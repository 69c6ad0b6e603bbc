package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medstack-ops/envctl/internal/app"
	"github.com/medstack-ops/envctl/internal/audit"
	"github.com/medstack-ops/envctl/internal/health"
	"github.com/medstack-ops/envctl/internal/port"
	"github.com/medstack-ops/envctl/internal/tui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of an environment",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var (
	statusEvents int
	statusPorts  bool
)

func init() {
	statusCmd.Flags().IntVar(&statusEvents, "events", 0, "Also show the last N audit events (-1 for all)")
	statusCmd.Flags().BoolVar(&statusPorts, "ports", false, "Also probe the environment's host ports")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	if err := app.Default.RequireRuntime(); err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	report := health.Check(ctx, app.Default.Runtime, cfg)
	tui.RenderStatus(out, report)
	if statusPorts {
		tui.RenderPorts(out, port.Probe(ctx, port.Bindings(cfg), nil))
	}

	url := settings().ControlPlaneURL(cfg)
	if health.CheckControlPlane(ctx, url) {
		fmt.Fprintf(out, "control plane: %s reachable\n", url)
	} else {
		fmt.Fprintf(out, "control plane: %s unreachable\n", url)
	}

	if statusEvents == 0 {
		return nil
	}
	logger := audit.NewLogger(settings().StateDir)
	var events []audit.Event
	if statusEvents < 0 {
		events, err = logger.Events(cfg.Slug())
	} else {
		events, err = logger.Tail(cfg.Slug(), statusEvents)
	}
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	tui.RenderEvents(out, events)
	return nil
}
