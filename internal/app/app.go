// Package app wires configuration, storage and the external collaborators
// into a ready engine.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"digitalcoo/internal/config"
	"digitalcoo/internal/db"
	"digitalcoo/internal/drive"
	"digitalcoo/internal/engine"
	"digitalcoo/internal/llm"
	"digitalcoo/internal/migrate"
	"digitalcoo/internal/notify"
)

// NewLogger builds a JSON production logger at warn and above, and a
// colored development logger for more verbose levels.
func NewLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if strings.TrimSpace(level) != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}
	if lvl >= zapcore.WarnLevel {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(lvl)
		return cfg.Build()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg.Build()
}

// Overrides carry secrets supplied through the environment. Empty values
// leave the file configuration alone.
type Overrides struct {
	ClassifierAPIKey string
	ExecutorAPIKey   string
	JWTSecret        string
	DriveAPIKey      string
	SlackWebhookURL  string
	LogLevel         string
}

func (o Overrides) Apply(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&cfg.LLM.Classifier.APIKey, o.ClassifierAPIKey)
	set(&cfg.LLM.Executor.APIKey, o.ExecutorAPIKey)
	set(&cfg.Auth.JWTSecret, o.JWTSecret)
	set(&cfg.Drive.APIKey, o.DriveAPIKey)
	set(&cfg.Notify.SlackWebhookURL, o.SlackWebhookURL)
	set(&cfg.Log.Level, o.LogLevel)
}

func keyless(provider string) bool {
	return provider == string(llm.ProviderOllama) || provider == string(llm.ProviderNone) || provider == ""
}

// chatModel returns nil when the client is disabled.
func chatModel(ctx context.Context, name string, c config.LLMClient, timeout time.Duration, log *zap.Logger) (model.BaseChatModel, error) {
	if !keyless(c.Provider) && c.APIKey == "" {
		log.Warn(name+" disabled: no api key", zap.String("provider", c.Provider))
		return nil, nil
	}
	m, err := llm.NewChatModel(ctx, llm.Config{
		Provider: llm.Provider(c.Provider),
		Model:    c.Model,
		APIKey:   c.APIKey,
		BaseURL:  c.BaseURL,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%s model: %w", name, err)
	}
	return m, nil
}

// BuildDeps constructs the pipeline collaborators described by cfg. A model
// provider without an API key is disabled with a warning rather than
// failing startup.
func BuildDeps(ctx context.Context, cfg *config.Config, log *zap.Logger) (engine.Deps, error) {
	if log == nil {
		log = zap.NewNop()
	}
	deps := engine.Deps{Logger: log}

	cm, err := chatModel(ctx, "classifier", cfg.LLM.Classifier, cfg.Timeouts.Classifier, log)
	if err != nil {
		return deps, err
	}
	if cm != nil {
		deps.Classifier = llm.NewClassifier(cm)
	}
	em, err := chatModel(ctx, "executor", cfg.LLM.Executor, cfg.Timeouts.Executor, log)
	if err != nil {
		return deps, err
	}
	if em != nil {
		deps.Executor = llm.NewGenerator(em)
	}

	switch cfg.Drive.Mode {
	case "google":
		src, err := drive.NewGoogleSource(ctx, drive.GoogleConfig{CredentialsFile: cfg.Drive.CredentialsFile, APIKey: cfg.Drive.APIKey})
		if err != nil {
			return deps, err
		}
		deps.Source = src
	case "local":
		deps.Source = drive.NewLocalSource(afero.NewOsFs(), cfg.Drive.LocalRoot)
	}

	if d := notify.NewDispatcher(cfg, log); d.Enabled() {
		deps.Notifier = d
	}
	return deps, nil
}

// Runtime is an opened workspace: migrated database plus engine.
type Runtime struct {
	DB     *sql.DB
	Engine engine.Engine
	Config *config.Config
	Log    *zap.Logger
}

func (r *Runtime) Close() error {
	_ = r.Log.Sync()
	return r.DB.Close()
}

// Open opens and migrates the workspace database and builds the engine.
func Open(ctx context.Context, workspace string, cfg *config.Config, log *zap.Logger) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	applied, err := migrate.MigrateContext(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	for _, name := range applied {
		log.Info("migration applied", zap.String("name", name))
	}
	deps, err := BuildDeps(ctx, cfg, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &Runtime{DB: conn, Engine: engine.New(conn, cfg, deps), Config: cfg, Log: log}, nil
}
