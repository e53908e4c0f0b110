package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPolicy_EmptyPathUsesDefault(t *testing.T) {
	policy, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if len(policy.BlockedPatterns) != len(DefaultPolicy.BlockedPatterns) {
		t.Fatalf("got %d patterns, want the default %d",
			len(policy.BlockedPatterns), len(DefaultPolicy.BlockedPatterns))
	}
}

func TestLoadPolicy_ReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := "blocked_patterns:\n  - \"curl | sh\"\n  - \"chmod 777 /\"\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if len(policy.BlockedPatterns) != 2 || policy.BlockedPatterns[0] != "curl | sh" {
		t.Fatalf("patterns = %v", policy.BlockedPatterns)
	}
}

func TestLoadPolicy_EmptyFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("blocked_patterns: []\n"), 0644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if len(policy.BlockedPatterns) == 0 {
		t.Fatal("empty policy file should fall back to the default deny-list")
	}
}

func TestLoadPolicy_MissingFile(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing policy file")
	}
}
