package provision

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devcell-app/devcell/pkg/platform"
)

// Strategy is one named way to satisfy a material kind. Apply reports
// (applied, detail, err): not-applied is an expected miss and the next
// strategy runs; an error aborts provisioning.
type Strategy struct {
	Name    string
	Warning string // emitted when the strategy applies; set on degraded fallbacks
	Apply   func(p *Provisioner, destDir string) (bool, string, error)
}

// strategies returns the ordered discovery list for a material kind on a
// given platform.
func (p *Provisioner) strategies(kind Kind, plat platform.Kind) []Strategy {
	switch kind {
	case Certs:
		return certStrategies(plat)
	case SSH:
		return sshStrategies()
	case AWS:
		return awsStrategies()
	}
	return nil
}

// caBundleSources are the well-known CA bundle locations per distro family.
var caBundleSources = []string{
	"/etc/ssl/certs/ca-certificates.crt", // debian/ubuntu
	"/etc/pki/tls/certs/ca-bundle.crt",   // rhel/fedora
	"/etc/ssl/cert.pem",                  // macos, alpine
}

func certStrategies(plat platform.Kind) []Strategy {
	sources := caBundleSources
	if plat == platform.MacOS {
		sources = []string{"/etc/ssl/cert.pem"}
	}
	var out []Strategy
	for _, src := range sources {
		src := src
		out = append(out, Strategy{
			Name: "system-ca-bundle:" + src,
			Apply: func(p *Provisioner, destDir string) (bool, string, error) {
				if _, err := os.Stat(src); err != nil {
					return false, "", nil
				}
				dst := filepath.Join(destDir, "ca-bundle.crt")
				if err := copyFile(src, dst); err != nil {
					return false, "", err
				}
				return true, src, nil
			},
		})
	}
	return out
}

// sshFiles is the material copied from the host's ~/.ssh. Globbing is
// deliberately avoided; the set of interesting names is closed.
var sshFiles = []string{
	"id_ed25519", "id_ed25519.pub",
	"id_rsa", "id_rsa.pub",
	"id_ecdsa", "id_ecdsa.pub",
	"known_hosts", "config",
}

// syntheticSSHConfig disables host key checking. Acceptable only because the
// staged tree lives in a disposable sandbox.
const syntheticSSHConfig = `Host *
    StrictHostKeyChecking no
    UserKnownHostsFile /dev/null
    LogLevel ERROR
`

func sshStrategies() []Strategy {
	return []Strategy{
		{
			Name: "host-ssh-dir",
			Apply: func(p *Provisioner, destDir string) (bool, string, error) {
				srcDir := filepath.Join(p.HomeDir, ".ssh")
				copied := 0
				for _, name := range sshFiles {
					src := filepath.Join(srcDir, name)
					if _, err := os.Stat(src); err != nil {
						continue
					}
					if err := copyFile(src, filepath.Join(destDir, name)); err != nil {
						return false, "", err
					}
					copied++
				}
				if copied == 0 {
					return false, "", nil
				}
				return true, fmt.Sprintf("copied %d files from %s", copied, srcDir), nil
			},
		},
		{
			Name:    "synthetic-ssh-config",
			Warning: "no host SSH material found; wrote permissive sandbox-only ssh config",
			Apply: func(p *Provisioner, destDir string) (bool, string, error) {
				dst := filepath.Join(destDir, "config")
				if err := os.WriteFile(dst, []byte(syntheticSSHConfig), 0o644); err != nil {
					return false, "", err
				}
				return true, dst, nil
			},
		},
	}
}

// awsCredentialsTemplate carries placeholder values. The validate checklist
// flags staged files still containing them.
const awsCredentialsTemplate = `[default]
aws_access_key_id = PLACEHOLDER_ACCESS_KEY_ID
aws_secret_access_key = PLACEHOLDER_SECRET_ACCESS_KEY
`

func awsStrategies() []Strategy {
	return []Strategy{
		{
			Name: "host-aws-dir",
			Apply: func(p *Provisioner, destDir string) (bool, string, error) {
				srcDir := filepath.Join(p.HomeDir, ".aws")
				copied := 0
				for _, name := range []string{"credentials", "config"} {
					src := filepath.Join(srcDir, name)
					if _, err := os.Stat(src); err != nil {
						continue
					}
					if err := copyFile(src, filepath.Join(destDir, name)); err != nil {
						return false, "", err
					}
					copied++
				}
				if copied == 0 {
					return false, "", nil
				}
				return true, fmt.Sprintf("copied %d files from %s", copied, srcDir), nil
			},
		},
		{
			Name: "env-credentials",
			Apply: func(p *Provisioner, destDir string) (bool, string, error) {
				keyID, ok1 := p.Lookup("AWS_ACCESS_KEY_ID")
				secret, ok2 := p.Lookup("AWS_SECRET_ACCESS_KEY")
				if !ok1 || !ok2 || keyID == "" || secret == "" {
					return false, "", nil
				}
				content := fmt.Sprintf("[default]\naws_access_key_id = %s\naws_secret_access_key = %s\n", keyID, secret)
				if token, ok := p.Lookup("AWS_SESSION_TOKEN"); ok && token != "" {
					content += fmt.Sprintf("aws_session_token = %s\n", token)
				}
				dst := filepath.Join(destDir, "credentials")
				if err := os.WriteFile(dst, []byte(content), 0o600); err != nil {
					return false, "", err
				}
				return true, "credentials synthesized from environment", nil
			},
		},
		{
			Name:    "placeholder-template",
			Warning: "no AWS credentials found; wrote a placeholder template (validate will flag it)",
			Apply: func(p *Provisioner, destDir string) (bool, string, error) {
				dst := filepath.Join(destDir, "credentials")
				// An earlier run's template is rewritten, but never a real file.
				if existing, err := os.ReadFile(dst); err == nil && len(existing) > 0 &&
					!HasPlaceholders(string(existing)) {
					return true, "existing credentials kept", nil
				}
				if err := os.WriteFile(dst, []byte(awsCredentialsTemplate), 0o600); err != nil {
					return false, "", err
				}
				return true, dst, nil
			},
		},
	}
}

// HasPlaceholders reports whether staged credential content still carries
// unreplaced template values.
func HasPlaceholders(content string) bool {
	return strings.Contains(content, "PLACEHOLDER_ACCESS_KEY_ID") ||
		strings.Contains(content, "PLACEHOLDER_SECRET_ACCESS_KEY")
}
