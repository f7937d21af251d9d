// Command prpilot runs pull request rules and comment commands against
// GitHub, either as an HTTP service or one-shot from the command line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "prpilot",
		Short: "Pull request automation driven by rules and comment commands",
		Long: `prpilot evaluates the pull_request_rules of a repository against its pull
requests, runs the matching actions and reports each result as a check run.
Collaborators can also trigger actions by commenting "@prpilot <action>".`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file (default $PRPILOT_CONFIG_FILE)")

	env := &environment{configPath: &configPath, stdout: root.OutOrStdout}
	root.AddCommand(
		newServeCmd(env),
		newEvaluateCmd(env),
		newCommandCmd(env),
		newHistoryCmd(env),
		newConfigCmd(env),
		newTokenCmd(env),
		newPermissionsCmd(env),
		newQueueCmd(env),
	)
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("fatal error", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
