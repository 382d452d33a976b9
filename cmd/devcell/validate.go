package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devcell-app/devcell/pkg/config"
	"github.com/devcell-app/devcell/pkg/platform"
	"github.com/devcell-app/devcell/pkg/preflight"
	"github.com/devcell-app/devcell/pkg/provision"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration and host readiness",
	Long: `Resolve the configuration and run the readiness checklist: container
runtime reachable, base directory present, no placeholder credentials, no
unresolved port conflicts. Reports findings without touching any container.`,
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	kind, err := platform.Detect(platform.CollectSignals())
	if err != nil {
		return err
	}
	fmt.Printf("Platform: %s\n", kind)

	cfg, err := config.NewResolver(logger).Resolve(configPath(), kind)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	issues := preflight.NewChecker(logger).Check(cmd.Context(), cfg, provision.DefaultBaseDir())
	if len(issues) == 0 {
		fmt.Println("Validation passed")
		return nil
	}

	printIssues(issues)
	if issues.HasFatal() {
		return fmt.Errorf("validation failed")
	}
	fmt.Println("Validation passed with warnings")
	return nil
}
