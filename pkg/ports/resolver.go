// Package ports detects host listener conflicts for the ports a session wants
// to publish and remaps the conflicting ones.
package ports

import (
	"bufio"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Offset is added to a desired port when the host already listens on it. The
// offset port is not re-checked for a further conflict; the remap is a single
// deterministic hop.
const Offset = 1000

// Assignment relates a logical port name to its desired and resolved values.
// Resolved differs from Desired only when a listener conflict was found.
type Assignment struct {
	Name     string
	Desired  int
	Resolved int
}

// Assignments is an ordered set of port assignments.
type Assignments []Assignment

// Get returns the resolved port for a logical name, or 0 if absent.
func (a Assignments) Get(name string) int {
	for _, as := range a {
		if as.Name == name {
			return as.Resolved
		}
	}
	return 0
}

// Remapped reports whether any assignment differs from its desired port.
func (a Assignments) Remapped() bool {
	for _, as := range a {
		if as.Resolved != as.Desired {
			return true
		}
	}
	return false
}

// ListenerSource enumerates TCP ports the host is listening on. Sources are
// interchangeable; the resolver uses the first one available.
type ListenerSource interface {
	Name() string
	Available() bool
	Listening() (map[int]bool, error)
}

// Resolver remaps desired ports that collide with active host listeners.
type Resolver struct {
	sources []ListenerSource
	logger  *zap.Logger
}

// NewResolver returns a resolver backed by ss and lsof, tried in that order.
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{
		sources: []ListenerSource{ssSource{}, lsofSource{}},
		logger:  logger,
	}
}

// NewResolverWithSources returns a resolver with explicit sources, for tests.
func NewResolverWithSources(logger *zap.Logger, sources ...ListenerSource) *Resolver {
	return &Resolver{sources: sources, logger: logger}
}

// Resolve maps each desired port to a conflict-free port. Ports with no host
// listener pass through unchanged. When no introspection tool is available,
// conflict detection is skipped entirely and all ports pass through with a
// warning; a busy host is not a reason to refuse to start.
func (r *Resolver) Resolve(desired map[string]int) Assignments {
	listening, source, err := r.listening()
	if err != nil {
		r.logger.Warn("port conflict detection skipped",
			zap.Error(err))
		listening = nil
	} else {
		r.logger.Debug("host listener table read",
			zap.String("source", source),
			zap.Int("listeners", len(listening)))
	}

	names := make([]string, 0, len(desired))
	for name := range desired {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(Assignments, 0, len(names))
	for _, name := range names {
		port := desired[name]
		resolved := port
		if listening[port] {
			resolved = port + Offset
			r.logger.Warn("port in use, remapped",
				zap.String("name", name),
				zap.Int("desired", port),
				zap.Int("resolved", resolved))
		}
		out = append(out, Assignment{Name: name, Desired: port, Resolved: resolved})
	}
	return out
}

func (r *Resolver) listening() (map[int]bool, string, error) {
	for _, src := range r.sources {
		if !src.Available() {
			continue
		}
		table, err := src.Listening()
		if err != nil {
			// A present but misbehaving tool falls through to the next one.
			r.logger.Debug("listener source failed",
				zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		return table, src.Name(), nil
	}
	return nil, "", fmt.Errorf("no listener introspection tool found (ss or lsof)")
}

// ssSource reads the listener table via ss -tln.
type ssSource struct{}

func (ssSource) Name() string { return "ss" }

func (ssSource) Available() bool {
	_, err := exec.LookPath("ss")
	return err == nil
}

func (ssSource) Listening() (map[int]bool, error) {
	out, err := exec.Command("ss", "-H", "-tln").Output()
	if err != nil {
		return nil, fmt.Errorf("ss -tln: %w", err)
	}
	return parseSS(string(out)), nil
}

// lsofSource reads the listener table via lsof.
type lsofSource struct{}

func (lsofSource) Name() string { return "lsof" }

func (lsofSource) Available() bool {
	_, err := exec.LookPath("lsof")
	return err == nil
}

func (lsofSource) Listening() (map[int]bool, error) {
	// lsof exits 1 when nothing matches; that is an empty table, not an error.
	out, err := exec.Command("lsof", "-nP", "-iTCP", "-sTCP:LISTEN").Output()
	if err != nil && len(out) == 0 {
		if ee, ok := err.(*exec.ExitError); ok && ee.ExitCode() == 1 {
			return map[int]bool{}, nil
		}
		return nil, fmt.Errorf("lsof: %w", err)
	}
	return parseLsof(string(out)), nil
}

// parseSS extracts local ports from `ss -H -tln` output. The local address is
// the fourth column, port after the last colon (handles [::]:8080).
func parseSS(out string) map[int]bool {
	table := make(map[int]bool)
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			continue
		}
		if port, ok := portAfterLastColon(fields[3]); ok {
			table[port] = true
		}
	}
	return table
}

// parseLsof extracts local ports from lsof NAME columns like
// "*:3000 (LISTEN)" or "127.0.0.1:8888 (LISTEN)".
func parseLsof(out string) map[int]bool {
	table := make(map[int]bool)
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, "LISTEN") {
			continue
		}
		fields := strings.Fields(line)
		for _, f := range fields {
			if port, ok := portAfterLastColon(f); ok {
				table[port] = true
				break
			}
		}
	}
	return table
}

func portAfterLastColon(addr string) (int, bool) {
	i := strings.LastIndex(addr, ":")
	if i < 0 || i == len(addr)-1 {
		return 0, false
	}
	port, err := strconv.Atoi(addr[i+1:])
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}
