package main

import (
	"github.com/spf13/cobra"
)

var shellFlagRebuild bool

var shellCmd = &cobra.Command{
	Use:   "shell [command...]",
	Short: "Open a shell in the devcell container",
	Long: `Run a login shell (or the given command) in the devcell container.
Validation issues are reported but never block the session, so shell stays
usable for debugging a broken host.`,
	RunE: runShell,
}

func init() {
	shellCmd.Flags().BoolVar(&shellFlagRebuild, "rebuild", false, "Rebuild the image before starting")
}

func runShell(cmd *cobra.Command, args []string) error {
	command := args
	if len(command) == 0 {
		command = []string{"/bin/bash", "-l"}
	}
	return runSession(false, shellFlagRebuild, command)
}
