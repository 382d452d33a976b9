package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devcell-app/devcell/pkg/config"
	"github.com/devcell-app/devcell/pkg/docker"
	"github.com/devcell-app/devcell/pkg/lifecycle"
	"github.com/devcell-app/devcell/pkg/platform"
	"github.com/devcell-app/devcell/pkg/preflight"
	"github.com/devcell-app/devcell/pkg/provision"
)

// shouldRun decides whether a session may proceed past the checklist. Fatal
// issues block strict sessions only; shell keeps going as a debugging surface.
func shouldRun(strict bool, issues preflight.Issues) bool {
	return !strict || !issues.HasFatal()
}

// runSession is the shared shell/start sequence: detect, resolve, provision
// all credential kinds, validate, build if needed, run attached. When strict
// is set, fatal validation issues refuse the run; otherwise the session
// proceeds regardless, which is the point of shell as a debugging surface.
func runSession(strict, rebuild bool, command []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	kind, err := platform.Detect(platform.CollectSignals())
	if err != nil {
		return err
	}
	fmt.Printf("Platform: %s\n", kind)

	cfg, err := config.NewResolver(logger).Resolve(configPath(), kind)
	if err != nil {
		return err
	}

	baseDir := provision.DefaultBaseDir()
	bundle, err := provision.New(logger).Provision(kind, baseDir)
	if err != nil {
		return err
	}

	issues := preflight.NewChecker(logger).Check(ctx, cfg, baseDir)
	printIssues(issues)
	if !shouldRun(strict, issues) {
		return fmt.Errorf("validation failed; fix the issues above or use 'devcell shell' to debug")
	}

	cli, err := docker.NewClient(cfg.SocketPath)
	if err != nil {
		return err
	}
	defer func() { _ = cli.Close() }()

	orch := lifecycle.New(cli, logger, baseDir)

	// Best-effort teardown on every exit path. A detached context because
	// the session context is already cancelled when a signal got us here.
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer stopCancel()
		_ = orch.Stop(stopCtx)
	}()

	for _, a := range cfg.Ports {
		fmt.Printf("  %s: %s:%d -> %d\n", a.Name, cfg.BindAddress, a.Resolved, a.Desired)
	}

	code, err := orch.Run(ctx, cfg, bundle, rebuild, command)
	if err != nil {
		return err
	}
	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}
