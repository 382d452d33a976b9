package main

import (
	"github.com/spf13/cobra"
)

var startFlagRebuild bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the devcell container (default command)",
	Long: `Provision credentials, validate the host and run the devcell container
attached to this terminal. Fatal validation issues refuse the start; use
'devcell shell' to get into the container regardless.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVar(&startFlagRebuild, "rebuild", false, "Rebuild the image before starting")
}

func runStart(cmd *cobra.Command, args []string) error {
	return runSession(true, startFlagRebuild, args)
}
