package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/devcell-app/devcell/pkg/bedrock"
	"github.com/devcell-app/devcell/pkg/config"
	"github.com/devcell-app/devcell/pkg/platform"
	"github.com/devcell-app/devcell/pkg/provision"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose AWS Bedrock connectivity",
	Long: `Verify that the staged AWS credentials can reach Bedrock in the configured
region and that the configured model is offered there. Prefers the staged
credentials file when one exists, falling back to the ambient AWS chain.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	kind, err := platform.Detect(platform.CollectSignals())
	if err != nil {
		return err
	}

	cfg, err := config.NewResolver(logger).Resolve(configPath(), kind)
	if err != nil {
		return err
	}

	credentials := filepath.Join(provision.DefaultBaseDir(), "aws", "credentials")
	if _, err := os.Stat(credentials); err != nil {
		credentials = ""
	}

	if err := bedrock.Check(cmd.Context(), logger, cfg.AWSRegion, cfg.BedrockModel, credentials); err != nil {
		return err
	}
	fmt.Printf("Bedrock reachable in %s; model %s available\n", cfg.AWSRegion, cfg.BedrockModel)
	return nil
}
