package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/devcell-app/devcell/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Write a fresh configuration template",
	Long: `Write a commented configuration template to the configuration path,
overwriting any existing file. Edit the template to override defaults;
environment variables (DEVCELL_*) still take precedence over the file.`,
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	path := configPath()
	if err := config.WriteTemplate(path); err != nil {
		return err
	}
	fmt.Printf("Wrote configuration template to %s\n", path)
	return nil
}
