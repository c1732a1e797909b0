package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Timeouts.Executor != 120*time.Second {
		t.Fatalf("expected executor timeout 120s, got %s", cfg.Timeouts.Executor)
	}
	if cfg.Server.BasePath != "/api" {
		t.Fatalf("unexpected base path %q", cfg.Server.BasePath)
	}
}

func TestFromYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := FromYAML([]byte("drive:\n  mode: local\n  local_root: /srv/drive\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Drive.Mode != "local" || cfg.Drive.LocalRoot != "/srv/drive" {
		t.Fatalf("drive section not applied: %+v", cfg.Drive)
	}
	if cfg.LLM.Classifier.Provider != "openai" || cfg.Timeouts.Drive != 30*time.Second {
		t.Fatalf("defaults lost: %+v %+v", cfg.LLM.Classifier, cfg.Timeouts)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"provider":   "llm:\n  classifier:\n    provider: cohere\n    model: x\n",
		"model":      "llm:\n  executor:\n    provider: anthropic\n    model: \"\"\n",
		"drive.mode": "drive:\n  mode: dropbox\n",
		"local_root": "drive:\n  mode: local\n",
		"timeouts":   "timeouts:\n  executor: 0s\n",
		"webhooks":   "notify:\n  webhooks:\n    - url: http://x\n      types: [bogus]\n",
		"base_path":  "server:\n  base_path: api\n",
		"location":   "location: Mars/Olympus\n",
	}
	for name, doc := range cases {
		if _, err := FromYAML([]byte(doc)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "coo init") {
		t.Fatalf("expected missing config hint, got %v", err)
	}
	if cfg, err := LoadOptional(dir); err != nil || cfg.Server.Addr == "" {
		t.Fatalf("optional load: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "coo.yml"), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LLM.Executor.Provider != "gemini" {
		t.Fatalf("unexpected executor %+v", cfg.LLM.Executor)
	}
}

func TestTimeLocation(t *testing.T) {
	cfg := Default()
	if cfg.TimeLocation() != time.Local {
		t.Fatalf("expected local time when unset")
	}
	cfg.Location = "UTC"
	if cfg.TimeLocation().String() != "UTC" {
		t.Fatalf("expected UTC, got %s", cfg.TimeLocation())
	}
}
