package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// exitError carries a container exit code through cobra so the process can
// propagate it as its own.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// needsDefaultCommand reports whether the invocation named no subcommand, in
// which case start is implied.
func needsDefaultCommand(args []string) bool {
	if len(args) == 0 {
		return true
	}
	// Help flags address the root command itself, not an implied start.
	if args[0] == "-h" || args[0] == "--help" {
		return false
	}
	if strings.HasPrefix(args[0], "-") {
		return true
	}
	for _, c := range rootCmd.Commands() {
		if c.Name() == args[0] || c.HasAlias(args[0]) {
			return false
		}
	}
	if args[0] == "help" || args[0] == "completion" {
		return false
	}
	// Unknown word: let cobra produce its usual error.
	return false
}

func main() {
	args := os.Args[1:]
	if needsDefaultCommand(args) {
		args = append([]string{"start"}, args...)
	}
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		var xe *exitError
		if errors.As(err, &xe) {
			os.Exit(xe.code)
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}
