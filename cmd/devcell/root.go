package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devcell-app/devcell/pkg/config"
	"github.com/devcell-app/devcell/pkg/logging"
	"github.com/devcell-app/devcell/pkg/preflight"
)

var (
	flagDebug  bool
	flagConfig string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "devcell",
	Short: "Reproducible containerized development environments",
	Long: `Devcell bootstraps a reproducible development container on Linux, WSL,
macOS and managed cloud workspaces. It detects the host platform, merges
configuration from file, environment and platform defaults, resolves port
conflicts, stages credentials into a sandboxed tree and drives the container
lifecycle.

Running devcell with no command is equivalent to 'devcell start'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.New(flagDebug)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable verbose tracing")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Override configuration file path")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(doctorCmd)
}

// configPath returns the active configuration file location.
func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.DefaultPath()
}

func printIssues(issues preflight.Issues) {
	for _, issue := range issues {
		fmt.Printf("  [%s] %s\n", issue.Severity, issue.Message)
	}
}
