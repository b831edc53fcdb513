package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "2s" parse naturally.
type Duration time.Duration

// UnmarshalYAML parses a duration string or integer nanoseconds. Integer
// scalars must be checked by tag: yaml happily decodes them into a string,
// which time.ParseDuration then rejects for the missing unit.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!int" {
		var n int64
		if err := value.Decode(&n); err != nil {
			return fmt.Errorf("invalid duration: %s", value.Value)
		}
		*d = Duration(n)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration: %s", value.Value)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RetryConfig configures stage executor retry behavior.
type RetryConfig struct {
	MaxAttempts  int      `yaml:"max_attempts"`
	InitialDelay Duration `yaml:"initial_delay"`
	Multiplier   float64  `yaml:"multiplier"`
	MaxDelay     Duration `yaml:"max_delay"`
}

// WebhookConfig configures the optional webhook notifier.
type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// SlackConfig configures the optional Slack notifier.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
}

// CheckpointConfig selects where run checkpoints are persisted.
type CheckpointConfig struct {
	// Backend is "file" (default) or "sqlite".
	Backend string `yaml:"backend"`
	// Path overrides the store location. When empty it derives from
	// BaseDir: <base>/checkpoints for file, <base>/checkpoints.db for
	// sqlite.
	Path string `yaml:"path"`
}

// LLMConfig configures the LLM client.
type LLMConfig struct {
	// Workdir is the working directory handed to the CLI client.
	Workdir string `yaml:"workdir"`
}

// WeightsConfig holds quality dimension weights. They must sum to 1.0.
type WeightsConfig struct {
	Completeness float64 `yaml:"completeness"`
	Clarity      float64 `yaml:"clarity"`
	Testability  float64 `yaml:"testability"`
	Traceability float64 `yaml:"traceability"`
}

// Config is the full pipeline configuration.
type Config struct {
	// BaseDir roots checkpoints and artifacts, default ".reqflow".
	BaseDir string `yaml:"base_dir"`

	QualityThreshold      float64       `yaml:"quality_threshold"`
	MaxIterations         int           `yaml:"max_iterations"`
	ReviewBeforeDecompose bool          `yaml:"review_before_decompose"`
	Weights               WeightsConfig `yaml:"weights"`

	Retry RetryConfig `yaml:"retry"`

	// BudgetCeiling caps estimated spend in USD, 0 means unlimited.
	BudgetCeiling float64 `yaml:"budget_ceiling"`

	// Models maps stage names to model overrides.
	Models map[string]string `yaml:"models"`

	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Slack      SlackConfig      `yaml:"slack"`
	LLM        LLMConfig        `yaml:"llm"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseDir:          ".reqflow",
		QualityThreshold: 0.80,
		MaxIterations:    3,
		Weights: WeightsConfig{
			Completeness: 0.25,
			Clarity:      0.25,
			Testability:  0.25,
			Traceability: 0.25,
		},
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: Duration(2 * time.Second),
			Multiplier:   2.0,
			MaxDelay:     Duration(30 * time.Second),
		},
	}
}

// Load reads configuration from path. An empty path falls back to
// .reqflow.yaml in the working directory if present. Environment
// variables override file values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(".reqflow.yaml"); err == nil {
			path = ".reqflow.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays REQFLOW_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("REQFLOW_BASE_DIR"); v != "" {
		cfg.BaseDir = v
	}
	if v := os.Getenv("REQFLOW_QUALITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.QualityThreshold = f
		}
	}
	if v := os.Getenv("REQFLOW_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxIterations = n
		}
	}
	if v := os.Getenv("REQFLOW_BUDGET_CEILING"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.BudgetCeiling = f
		}
	}
	if v := os.Getenv("REQFLOW_WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}
	if v := os.Getenv("REQFLOW_SLACK_WEBHOOK_URL"); v != "" {
		cfg.Slack.WebhookURL = v
	}
	if v := os.Getenv("REQFLOW_CHECKPOINT_BACKEND"); v != "" {
		cfg.Checkpoint.Backend = v
	}
	if v := os.Getenv("REQFLOW_LLM_WORKDIR"); v != "" {
		cfg.LLM.Workdir = v
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return fmt.Errorf("quality_threshold must be in [0, 1], got %g", c.QualityThreshold)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", c.MaxIterations)
	}
	sum := c.Weights.Completeness + c.Weights.Clarity + c.Weights.Testability + c.Weights.Traceability
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("quality weights must sum to 1.0, got %g", sum)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.BudgetCeiling < 0 {
		return fmt.Errorf("budget_ceiling must not be negative, got %g", c.BudgetCeiling)
	}
	switch c.Checkpoint.Backend {
	case "", "file", "sqlite":
	default:
		return fmt.Errorf("checkpoint.backend must be file or sqlite, got %q", c.Checkpoint.Backend)
	}
	return nil
}
