package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/medstack-ops/envctl/internal/app"
	"github.com/medstack-ops/envctl/internal/audit"
	"github.com/medstack-ops/envctl/internal/monitor"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch an environment's health",
	Long: `Check the environment on an interval and print each status change.
With --repair, missing networks are recreated and detached containers are
reattached. Status changes and repairs are written to the audit log.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

var monitorFlags struct {
	interval time.Duration
	repair   bool
	once     bool
}

func init() {
	monitorCmd.Flags().DurationVar(&monitorFlags.interval, "interval", 30*time.Second, "Time between checks")
	monitorCmd.Flags().BoolVar(&monitorFlags.repair, "repair", false, "Repair network drift")
	monitorCmd.Flags().BoolVar(&monitorFlags.once, "once", false, "Run a single check and exit")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if monitorFlags.interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", monitorFlags.interval)
	}
	cfg, err := resolveConfig()
	if err != nil {
		return err
	}
	if err := app.Default.RequireRuntime(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	opts := []monitor.Option{
		monitor.WithAuditLogger(audit.NewLogger(settings().StateDir), audit.NewRunID()),
		monitor.WithReporter(func(r monitor.CheckResult) {
			ts := r.Time.Format(time.TimeOnly)
			switch {
			case r.Err != nil && r.Status == "":
				logWarning("%s check failed: %v", ts, r.Err)
				return
			case r.Changed:
				fmt.Fprintf(out, "%s %s %s\n", ts, cfg.Slug(), r.Status)
			}
			for _, d := range r.Drift {
				fmt.Fprintf(out, "%s drift: %s\n", ts, d)
			}
			if r.Repaired {
				fmt.Fprintf(out, "%s repaired %d drift entries\n", ts, len(r.Drift))
			} else if r.Err != nil {
				logWarning("%s repair failed: %v", ts, r.Err)
			}
		}),
	}
	if monitorFlags.repair {
		ctrl, err := controller()
		if err != nil {
			return err
		}
		opts = append(opts, monitor.WithRepair(ctrl.Networks()))
	}

	m := monitor.New(monitorFlags.interval, app.Default.Runtime, cfg, opts...)
	if monitorFlags.once {
		return m.Check(cmd.Context()).Err
	}

	err = m.Run(cmd.Context())
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
