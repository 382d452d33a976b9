package platform

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Kind classifies the host environment. Defaults are selected per Kind, so
// every consumer must switch over it exhaustively rather than falling through
// to an implicit case.
type Kind int

const (
	// Unsupported is a native Windows host without a Linux compatibility
	// layer. The only detection result that aborts the command.
	Unsupported Kind = iota
	// WSL is a Linux-compatibility subsystem on Windows.
	WSL
	// Ubuntu covers Ubuntu and Debian-family distributions.
	Ubuntu
	// GenericLinux is any other Linux host.
	GenericLinux
	// MacOS is a Darwin host.
	MacOS
	// CloudWorkspace is a managed cloud IDE (Codespaces, Gitpod, Cloud9).
	CloudWorkspace
)

func (k Kind) String() string {
	switch k {
	case WSL:
		return "wsl"
	case Ubuntu:
		return "ubuntu"
	case GenericLinux:
		return "linux"
	case MacOS:
		return "macos"
	case CloudWorkspace:
		return "cloud"
	case Unsupported:
		return "unsupported"
	}
	return "unknown"
}

// ErrUnsupported is returned by Detect for a native Windows host.
var ErrUnsupported = fmt.Errorf(
	"native Windows is not supported: install WSL2 (wsl --install) and run devcell inside the WSL distribution")

// cloudMarkers are environment variables whose presence identifies a managed
// cloud workspace.
var cloudMarkers = []string{"CODESPACES", "GITPOD_WORKSPACE_ID", "CLOUD9_PID"}

// Signals is the host state Detect classifies. Collected once per invocation
// so detection itself stays a pure function and tests can fabricate hosts.
type Signals struct {
	GOOS      string
	Kernel    string            // contents of /proc/version, empty off-Linux
	OSRelease map[string]string // parsed /etc/os-release, may be nil
	Env       func(string) string
}

// CollectSignals snapshots the real host.
func CollectSignals() Signals {
	sig := Signals{
		GOOS: runtime.GOOS,
		Env:  os.Getenv,
	}
	if b, err := os.ReadFile("/proc/version"); err == nil {
		sig.Kernel = string(b)
	}
	if f, err := os.Open("/etc/os-release"); err == nil {
		defer func() { _ = f.Close() }()
		sig.OSRelease = parseOSRelease(f)
	}
	return sig
}

// Detect classifies a host from its signals.
//
// Precedence: native Windows fails hard; a WSL kernel marker outranks any
// Linux match; cloud workspace markers outrank an Ubuntu match; anything
// unrecognized degrades to GenericLinux rather than aborting.
func Detect(sig Signals) (Kind, error) {
	env := sig.Env
	if env == nil {
		env = func(string) string { return "" }
	}

	switch sig.GOOS {
	case "windows":
		return Unsupported, ErrUnsupported
	case "darwin":
		return MacOS, nil
	}

	kernel := strings.ToLower(sig.Kernel)
	if strings.Contains(kernel, "microsoft") || strings.Contains(kernel, "wsl") {
		return WSL, nil
	}

	for _, marker := range cloudMarkers {
		if env(marker) != "" {
			return CloudWorkspace, nil
		}
	}

	id := sig.OSRelease["ID"]
	idLike := sig.OSRelease["ID_LIKE"]
	if id == "ubuntu" || id == "debian" ||
		strings.Contains(idLike, "ubuntu") || strings.Contains(idLike, "debian") {
		return Ubuntu, nil
	}

	return GenericLinux, nil
}

// parseOSRelease reads the KEY=value pairs of an os-release file, stripping
// optional quoting.
func parseOSRelease(f *os.File) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		fields[key] = strings.Trim(value, `"`)
	}
	return fields
}
