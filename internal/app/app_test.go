package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"digitalcoo/internal/config"
	"digitalcoo/internal/drive"
	"digitalcoo/internal/notify"
)

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"", "debug", "info", "warn", "error"} {
		log, err := NewLogger(level)
		if err != nil {
			t.Fatalf("level %q: %v", level, err)
		}
		_ = log.Sync()
	}
	if _, err := NewLogger("loud"); err == nil {
		t.Fatalf("expected unknown level to fail")
	}
}

func TestBuildDepsDisablesKeylessProviders(t *testing.T) {
	cfg := config.Default()
	deps, err := BuildDeps(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("build deps: %v", err)
	}
	if deps.Classifier != nil || deps.Executor != nil || deps.Source != nil || deps.Notifier != nil {
		t.Fatalf("default config should wire no collaborators: %+v", deps)
	}
}

func TestBuildDepsWiresConfiguredCollaborators(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "Inbox"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.LLM.Classifier = config.LLMClient{Provider: "openai", Model: "gpt-4o-mini", APIKey: "sk-test"}
	cfg.LLM.Executor = config.LLMClient{Provider: "ollama", Model: "llama3"}
	cfg.Drive.Mode = "local"
	cfg.Drive.LocalRoot = root
	cfg.Notify.SlackWebhookURL = "http://127.0.0.1:1/hook"

	deps, err := BuildDeps(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("build deps: %v", err)
	}
	if deps.Classifier == nil || deps.Executor == nil {
		t.Fatalf("expected both models wired")
	}
	src, ok := deps.Source.(*drive.LocalSource)
	if !ok {
		t.Fatalf("expected local source, got %T", deps.Source)
	}
	folder, err := src.FindFolder(context.Background(), "Inbox")
	if err != nil || folder == nil {
		t.Fatalf("find folder: %v %v", folder, err)
	}
	if _, ok := deps.Notifier.(*notify.Dispatcher); !ok {
		t.Fatalf("expected dispatcher, got %T", deps.Notifier)
	}
}

func TestOverridesApply(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.JWTSecret = "from-file"
	Overrides{ClassifierAPIKey: " k1 ", JWTSecret: ""}.Apply(cfg)
	if cfg.LLM.Classifier.APIKey != "k1" {
		t.Fatalf("classifier key not applied: %q", cfg.LLM.Classifier.APIKey)
	}
	if cfg.Auth.JWTSecret != "from-file" {
		t.Fatalf("empty override must not clear file value")
	}
}

func TestOpenMigratesWorkspace(t *testing.T) {
	rt, err := Open(context.Background(), t.TempDir(), config.Default(), nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rt.Close()
	stats, err := rt.Engine.DashboardStats(context.Background(), "u1")
	if err != nil || stats.TotalTasks != 0 {
		t.Fatalf("fresh workspace stats: %+v %v", stats, err)
	}
}
