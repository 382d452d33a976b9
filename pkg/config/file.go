package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// recognizedKeys is the closed key set shared by the file and the
// environment.
var recognizedKeys = map[string]bool{
	KeyRuntime:      true,
	KeyBindAddress:  true,
	KeyPortHTTP:     true,
	KeyPortNotebook: true,
	KeyPortCode:     true,
	KeyPortDebug:    true,
	KeyHTTPProxy:    true,
	KeyHTTPSProxy:   true,
	KeyNoProxy:      true,
	KeyNPMRegistry:  true,
	KeyPipIndexURL:  true,
	KeyAWSRegion:    true,
	KeyBedrockModel: true,
	KeySocketPath:   true,
	KeyGitName:      true,
	KeyGitEmail:     true,
	KeyMemoryLimit:  true,
	KeyCPULimit:     true,
}

// parseFile reads a key=value configuration file. Comment lines start with
// '#'; [section] headers are cosmetic and skipped. Returns the recognized
// pairs and the list of unrecognized keys encountered.
func parseFile(r io.Reader) (map[string]string, []string, error) {
	values := make(map[string]string)
	var unknown []string

	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, nil, fmt.Errorf("line %d: not a key=value pair: %q", lineno, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !recognizedKeys[key] {
			unknown = append(unknown, key)
			continue
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	return values, unknown, nil
}

// loadFile parses the configuration file at path. A missing file is not an
// error; the file layer is simply empty.
func loadFile(path string) (map[string]string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return parseFile(f)
}
