package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/medstack-ops/envctl/internal/app"
	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/logging"
)

var (
	verbose     bool
	jsonOutput  bool
	runtimeType string
	projectName string
	envName     string
	domainBase  string
)

var rootCmd = &cobra.Command{
	Use:   "envctl",
	Short: "Clinic environment provisioning CLI",
	Long: `envctl materializes and runs isolated clinic environments.

Each environment combines:
  - OpenEMR
  - a telehealth application
  - Jitsi video conferencing
  - an optional WordPress site
behind an Nginx Proxy Manager instance, on networks and domains derived
from the project, environment and domain base.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(verbose, jsonOutput, os.Stderr)
		if app.Default != nil {
			return nil
		}

		var opts []app.Option
		if runtimeType != "" {
			settings, err := config.LoadSettings(config.DefaultSettingsFile)
			if err != nil {
				return err
			}
			settings.Runtime = runtimeType
			if err := settings.Validate(); err != nil {
				return err
			}
			opts = append(opts, app.WithSettings(settings))
		}
		a, err := app.New(opts...)
		if err != nil {
			return err
		}
		if !verbose {
			logging.SetupLevel(logging.ParseLevel(a.Settings.LogLevel), jsonOutput, os.Stderr)
		}
		app.SetDefault(a)
		return nil
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the context;
// the environment is left in a state the next run reconciles.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&runtimeType, "runtime", "", "Container runtime: auto, docker, podman, or sdk (default from ENVCTL_RUNTIME)")
	rootCmd.PersistentFlags().StringVarP(&projectName, "project", "p", "", "Project identifier (default from ENVCTL_PROJECT)")
	rootCmd.PersistentFlags().StringVarP(&envName, "env", "e", "", "Environment kind: dev, staging, test, or production (default from ENVCTL_ENVIRONMENT)")
	rootCmd.PersistentFlags().StringVar(&domainBase, "domain", "", "Domain base (default from ENVCTL_DOMAIN_BASE)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
)
