// Package preflight runs the validate checklist against the resolved
// configuration and the staged credential tree. It never mutates container
// state.
package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/devcell-app/devcell/pkg/config"
	"github.com/devcell-app/devcell/pkg/docker"
	"github.com/devcell-app/devcell/pkg/provision"
)

// Severity splits issues that block start from advisory findings.
type Severity int

const (
	Warning Severity = iota
	Fatal
)

func (s Severity) String() string {
	if s == Fatal {
		return "FATAL"
	}
	return "WARN"
}

// Issue is one checklist finding.
type Issue struct {
	Severity Severity
	Message  string
}

// Issues is the checklist result.
type Issues []Issue

// HasFatal reports whether any issue blocks start.
func (is Issues) HasFatal() bool {
	for _, i := range is {
		if i.Severity == Fatal {
			return true
		}
	}
	return false
}

// Checker verifies the host is ready to run a session.
type Checker struct {
	Logger *zap.Logger

	// RuntimeProbe checks the container runtime daemon is reachable.
	// Injectable for tests; defaults to a docker client ping.
	RuntimeProbe func(ctx context.Context, socketPath string) error
}

// NewChecker returns a checker probing the real runtime.
func NewChecker(logger *zap.Logger) *Checker {
	return &Checker{
		Logger: logger,
		RuntimeProbe: func(ctx context.Context, socketPath string) error {
			cli, err := docker.NewClient(socketPath)
			if err != nil {
				return err
			}
			return cli.Close()
		},
	}
}

// Check runs the checklist: runtime reachable, base directory present,
// no placeholder credential values staged, no remapped ports the operator
// should know about.
func (c *Checker) Check(ctx context.Context, cfg *config.Config, baseDir string) Issues {
	var issues Issues

	if err := c.RuntimeProbe(ctx, cfg.SocketPath); err != nil {
		issues = append(issues, Issue{
			Severity: Fatal,
			Message:  fmt.Sprintf("container runtime unreachable: %v", err),
		})
	}

	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		issues = append(issues, Issue{
			Severity: Fatal,
			Message:  fmt.Sprintf("base directory %s does not exist; run 'devcell config' or 'devcell start' first", baseDir),
		})
	}

	// Placeholder credentials don't block a session; plenty of work needs no
	// cloud access. They are still a finding the operator should see.
	credPath := filepath.Join(baseDir, string(provision.AWS), "credentials")
	if content, err := os.ReadFile(credPath); err == nil {
		if provision.HasPlaceholders(string(content)) {
			issues = append(issues, Issue{
				Severity: Warning,
				Message:  fmt.Sprintf("%s still contains placeholder values; edit it or set AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY", credPath),
			})
		}
	}

	if cfg.Ports.Remapped() {
		for _, a := range cfg.Ports {
			if a.Resolved != a.Desired {
				issues = append(issues, Issue{
					Severity: Warning,
					Message:  fmt.Sprintf("port %s moved from %d to %d (host conflict)", a.Name, a.Desired, a.Resolved),
				})
			}
		}
	}

	for _, issue := range issues {
		c.Logger.Debug("preflight finding",
			zap.String("severity", issue.Severity.String()),
			zap.String("message", issue.Message))
	}
	return issues
}
