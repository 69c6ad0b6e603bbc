package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medstack-ops/envctl/internal/config"
	"github.com/medstack-ops/envctl/internal/errors"
	"github.com/medstack-ops/envctl/internal/proxy"
	"github.com/medstack-ops/envctl/internal/tui"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Work with the reverse-proxy control plane",
}

var proxyLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check that the control plane accepts the configured credentials",
	Args:  cobra.NoArgs,
	RunE:  runProxyLogin,
}

var proxyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List proxy hosts",
	Args:  cobra.NoArgs,
	RunE:  runProxyList,
}

var proxyPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Create missing proxy hosts for the environment's routes",
	Args:  cobra.NoArgs,
	RunE:  runProxyPublish,
}

func init() {
	proxyCmd.AddCommand(proxyLoginCmd)
	proxyCmd.AddCommand(proxyListCmd)
	proxyCmd.AddCommand(proxyPublishCmd)
	rootCmd.AddCommand(proxyCmd)
}

// proxyLogin resolves the environment and authenticates to its control plane.
func proxyLogin(cmd *cobra.Command) (*config.EnvironmentConfig, *proxy.Client, string, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, nil, "", err
	}
	ctrl, err := controller()
	if err != nil {
		return nil, nil, "", err
	}
	client := ctrl.ProxyClient(cfg)
	s := settings()
	token, err := client.Authenticate(cmd.Context(), s.ProxyIdentity, s.ProxySecret)
	if err != nil {
		return nil, nil, "", err
	}
	return cfg, client, token, nil
}

func runProxyLogin(cmd *cobra.Command, args []string) error {
	cfg, _, _, err := proxyLogin(cmd)
	if err != nil {
		return err
	}
	logSuccess("Authenticated to %s", settings().ControlPlaneURL(cfg))
	return nil
}

func runProxyList(cmd *cobra.Command, args []string) error {
	_, client, token, err := proxyLogin(cmd)
	if err != nil {
		return err
	}
	hosts, err := client.ListProxyHosts(cmd.Context(), token)
	if err != nil {
		return err
	}
	tui.RenderHosts(cmd.OutOrStdout(), hosts)
	return nil
}

func runProxyPublish(cmd *cobra.Command, args []string) error {
	cfg, client, token, err := proxyLogin(cmd)
	if err != nil {
		return err
	}
	ctrl, err := controller()
	if err != nil {
		return err
	}

	results := proxy.PublishRoutes(cmd.Context(), client, token, cfg, ctrl.Networks())
	out := cmd.OutOrStdout()
	for _, r := range results {
		switch {
		case r.Err != nil:
			logWarning("%s: %v", r.Domain, r.Err)
		case r.Skipped:
			fmt.Fprintf(out, "%s skipped (no running container)\n", r.Domain)
		case r.Created:
			fmt.Fprintf(out, "%s -> %s created\n", r.Domain, r.Target)
		default:
			fmt.Fprintf(out, "%s exists\n", r.Domain)
		}
	}
	if failed := proxy.Failed(results); len(failed) > 0 {
		errs := make([]error, 0, len(failed))
		for _, r := range failed {
			errs = append(errs, r.Err)
		}
		return errors.Join(errs...)
	}
	return nil
}
