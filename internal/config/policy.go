package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy holds the terminal command deny-list. Pattern matching here is
// defense-in-depth against obvious foot-guns, not an isolation boundary;
// isolation comes from the sandbox provider.
type Policy struct {
	BlockedPatterns []string `yaml:"blocked_patterns"`
}

// DefaultPolicy is used when no policy file is configured.
var DefaultPolicy = Policy{
	BlockedPatterns: []string{
		"rm -rf /",
		":(){ :|:& };:",
		"shutdown",
		"reboot",
		"mkfs",
		"dd if=",
	},
}

// LoadPolicy reads a YAML policy file. An empty path returns DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	if path == "" {
		return DefaultPolicy, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}
	if len(p.BlockedPatterns) == 0 {
		p.BlockedPatterns = DefaultPolicy.BlockedPatterns
	}
	return p, nil
}
