package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/devcell-app/devcell/pkg/config"
	"github.com/devcell-app/devcell/pkg/docker"
	"github.com/devcell-app/devcell/pkg/lifecycle"
	"github.com/devcell-app/devcell/pkg/platform"
	"github.com/devcell-app/devcell/pkg/provision"
)

var flagCleanImages bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Stop and remove the devcell container",
	Long: `Stop and remove the devcell container. Safe to run repeatedly; a missing
container or unreachable runtime means there is nothing to clean. The staged
credential tree under the base directory is left in place.`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&flagCleanImages, "clean-images", false, "Also remove the devcell image")
}

// cleanSocketPath resolves the configured runtime socket for teardown. A
// broken configuration must not leave a container running, so resolution
// failures degrade to default socket discovery instead of aborting.
func cleanSocketPath(kind platform.Kind) string {
	cfg, err := config.NewResolver(logger).Resolve(configPath(), kind)
	if err != nil {
		logger.Warn("configuration invalid; using default socket discovery for cleanup",
			zap.Error(err))
		return ""
	}
	return cfg.SocketPath
}

func runClean(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	kind, err := platform.Detect(platform.CollectSignals())
	if err != nil {
		return err
	}

	cli, err := docker.NewClient(cleanSocketPath(kind))
	if err != nil {
		if errors.Is(err, docker.ErrUnavailable) {
			fmt.Println("Container runtime unreachable; nothing to clean")
			return nil
		}
		return err
	}
	defer func() { _ = cli.Close() }()

	if err := lifecycle.New(cli, logger, provision.DefaultBaseDir()).Remove(ctx, flagCleanImages); err != nil {
		return err
	}
	fmt.Println("Cleaned up devcell container")
	return nil
}
