package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models coo.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret      string `yaml:"jwt_secret"`
		AllowDevHeader bool   `yaml:"allow_dev_header"`
	} `yaml:"auth"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	LLM struct {
		Classifier LLMClient `yaml:"classifier"`
		Executor   LLMClient `yaml:"executor"`
	} `yaml:"llm"`
	Drive struct {
		Mode            string `yaml:"mode"`
		CredentialsFile string `yaml:"credentials_file"`
		APIKey          string `yaml:"api_key"`
		LocalRoot       string `yaml:"local_root"`
	} `yaml:"drive"`
	Timeouts struct {
		Classifier time.Duration `yaml:"classifier"`
		Executor   time.Duration `yaml:"executor"`
		Drive      time.Duration `yaml:"drive"`
	} `yaml:"timeouts"`
	Notify struct {
		SlackWebhookURL string    `yaml:"slack_webhook_url"`
		Webhooks        []Webhook `yaml:"webhooks"`
	} `yaml:"notify"`
	Location string `yaml:"location"`
}

// LLMClient selects the chat model backing the classifier or the executor.
type LLMClient struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
}

type Webhook struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Types          []string `yaml:"types"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

var (
	providers  = map[string]bool{"openai": true, "anthropic": true, "gemini": true, "ollama": true, "none": true}
	driveModes = map[string]bool{"google": true, "local": true, "none": true}
	notifTypes = map[string]bool{"task_update": true, "error": true, "info": true, "action_required": true}
)

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with coo init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	for name, cl := range map[string]LLMClient{"classifier": c.LLM.Classifier, "executor": c.LLM.Executor} {
		if !providers[cl.Provider] {
			return fmt.Errorf("config.llm.%s.provider %q is not supported", name, cl.Provider)
		}
		if cl.Provider != "none" && cl.Model == "" {
			return fmt.Errorf("config.llm.%s.model is required", name)
		}
	}
	if !driveModes[c.Drive.Mode] {
		return fmt.Errorf("config.drive.mode must be google, local or none")
	}
	if c.Drive.Mode == "local" && c.Drive.LocalRoot == "" {
		return fmt.Errorf("config.drive.local_root is required in local mode")
	}
	if c.Timeouts.Classifier <= 0 || c.Timeouts.Executor <= 0 || c.Timeouts.Drive <= 0 {
		return fmt.Errorf("config.timeouts must be positive durations")
	}
	for i, wh := range c.Notify.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("config.notify.webhooks[%d].url is required", i)
		}
		for _, t := range wh.Types {
			if !notifTypes[t] {
				return fmt.Errorf("config.notify.webhooks[%d] has unknown notification type %s", i, t)
			}
		}
	}
	if c.Location != "" {
		if _, err := time.LoadLocation(c.Location); err != nil {
			return fmt.Errorf("config.location: %w", err)
		}
	}
	return nil
}

// TimeLocation resolves the location used for day boundaries on the dashboard.
func (c *Config) TimeLocation() *time.Location {
	if c.Location == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return time.Local
	}
	return loc
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "coo.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Values missing
// from data keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /api

auth:
  jwt_secret: ""
  allow_dev_header: false

log:
  level: info

llm:
  classifier:
    provider: openai
    model: gpt-4o-mini
  executor:
    provider: gemini
    model: gemini-2.0-flash

drive:
  mode: none

timeouts:
  classifier: 30s
  executor: 120s
  drive: 30s

notify:
  slack_webhook_url: ""
  webhooks: []
`
