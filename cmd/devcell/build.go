package main

import (
	"github.com/spf13/cobra"

	"github.com/devcell-app/devcell/pkg/config"
	"github.com/devcell-app/devcell/pkg/docker"
	"github.com/devcell-app/devcell/pkg/lifecycle"
	"github.com/devcell-app/devcell/pkg/platform"
	"github.com/devcell-app/devcell/pkg/provision"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the devcell image",
	Long: `Build the devcell image from the session Dockerfile, writing the default
Dockerfile first if none exists. Certificates are staged before the build so
proxied hosts can pull base layers.`,
	RunE: runBuild,
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	kind, err := platform.Detect(platform.CollectSignals())
	if err != nil {
		return err
	}

	cfg, err := config.NewResolver(logger).Resolve(configPath(), kind)
	if err != nil {
		return err
	}

	baseDir := provision.DefaultBaseDir()
	if _, err := provision.New(logger).Provision(kind, baseDir, provision.Certs); err != nil {
		return err
	}

	cli, err := docker.NewClient(cfg.SocketPath)
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	return lifecycle.New(cli, logger, baseDir).Build(ctx, cfg)
}
