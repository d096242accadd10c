// Package config loads planner configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"plannerd/pkg/goap"

	"gopkg.in/yaml.v3"
)

// Config holds all plannerd configuration.
type Config struct {
	// CatalogDir holds action catalogue files (YAML or JSON).
	CatalogDir string `yaml:"catalog_dir"`

	// RulesDir holds Datalog rule files (.mg) for the kernel.
	RulesDir string `yaml:"rules_dir"`

	// StorePath is the SQLite plan store location.
	StorePath string `yaml:"store_path"`

	Planner PlannerConfig `yaml:"planner"`
	LLM     LLMConfig     `yaml:"llm"`
	Logging LoggingConfig `yaml:"logging"`
	UI      UIConfig      `yaml:"ui"`
}

// PlannerConfig bounds searches and the execution loop.
type PlannerConfig struct {
	MaxDepth    int    `yaml:"max_depth"`
	MaxAttempts int    `yaml:"max_attempts"`
	PlanTimeout string `yaml:"plan_timeout"`
}

// LLMConfig configures the Gemini transducer and embedder.
type LLMConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	Timeout        string `yaml:"timeout"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // empty means stderr
}

// UIConfig configures the console.
type UIConfig struct {
	Theme string `yaml:"theme"` // light, dark, auto
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		CatalogDir: "actions",
		RulesDir:   "rules",
		StorePath:  filepath.Join("data", "plannerd.db"),

		Planner: PlannerConfig{
			MaxDepth:    goap.DefaultMaxDepth,
			MaxAttempts: 3,
			PlanTimeout: "30s",
		},

		LLM: LLMConfig{
			Model:          "gemini-2.0-flash",
			BaseURL:        "https://generativelanguage.googleapis.com/v1beta",
			Timeout:        "120s",
			EmbeddingModel: "gemini-embedding-001",
		},

		Logging: LoggingConfig{
			Level: "info",
		},

		UI: UIConfig{
			Theme: "auto",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return filepath.Join(".plannerd", "config.yaml")
	}
	return filepath.Join(cwd, ".plannerd", "config.yaml")
}

// Load loads configuration from a YAML file. A missing file is not an
// error: defaults plus environment overrides apply.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if path := os.Getenv("PLANNERD_DB"); path != "" {
		c.StorePath = path
	}
	if dir := os.Getenv("PLANNERD_CATALOG"); dir != "" {
		c.CatalogDir = dir
	}
	if dir := os.Getenv("PLANNERD_RULES"); dir != "" {
		c.RulesDir = dir
	}
}

// HasLLM reports whether natural-language goal entry is available.
func (c *Config) HasLLM() bool {
	return c.LLM.APIKey != ""
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetPlanTimeout returns the per-search timeout as a duration.
func (c *Config) GetPlanTimeout() time.Duration {
	d, err := time.ParseDuration(c.Planner.PlanTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Validate checks bounds that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Planner.MaxDepth < 0 {
		return fmt.Errorf("planner.max_depth must not be negative")
	}
	if c.Planner.MaxAttempts < 0 {
		return fmt.Errorf("planner.max_attempts must not be negative")
	}
	switch c.UI.Theme {
	case "", "auto", "light", "dark":
	default:
		return fmt.Errorf("invalid ui.theme: %s (valid: auto, light, dark)", c.UI.Theme)
	}
	return nil
}
