package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// template is the generated configuration file. Section headers are cosmetic;
// commented keys document the built-in default without setting anything.
const template = `# devcell configuration
# Uncomment a key to override its default. Environment variables of the form
# DEVCELL_<KEY> (e.g. DEVCELL_PORT_HTTP) take precedence over this file.

[runtime]
# runtime = docker
# socket_path =

[network]
# bind_address = 0.0.0.0
# port_http = 3000
# port_notebook = 8888
# port_code = 8443
# port_debug = 5678

[proxy]
# http_proxy =
# https_proxy =
# no_proxy = localhost,127.0.0.1

[registry]
# npm_registry = https://registry.npmjs.org
# pip_index_url = https://pypi.org/simple

[aws]
# aws_region = us-east-1
# bedrock_model =

[git]
# git_name =
# git_email =

[resources]
# memory_limit = 4g
# cpu_limit = 2
`

// WriteTemplate writes a fresh configuration template to path, overwriting
// any existing file.
func WriteTemplate(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return fmt.Errorf("failed to write config template: %w", err)
	}
	return nil
}
