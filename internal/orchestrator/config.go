package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dusk-indust/consortium/internal/store"
)

// Defaults applied by Normalize.
const (
	DefaultArbiter             = "gemini-2.0-flash"
	DefaultConfidenceThreshold = 0.8
	DefaultMaxIterations       = 3
	DefaultMinimumIterations   = 1
)

// Config describes one consortium: who votes, who arbitrates and when to
// stop iterating.
type Config struct {
	// Models maps a model id to the number of parallel instances to run.
	Models map[string]int `json:"models"`

	// SystemPrompt is prepended to the voter prompt and passed to the
	// arbiter as user instructions.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// ConfidenceThreshold is the arbiter confidence in [0,1] at which
	// iteration stops. Values above 1 are read as percentages.
	ConfidenceThreshold float64 `json:"confidence_threshold"`

	// MaxIterations caps the number of rounds.
	MaxIterations int `json:"max_iterations"`

	// MinimumIterations is the number of rounds run regardless of confidence.
	MinimumIterations int `json:"minimum_iterations"`

	// Arbiter is the model that synthesizes each round.
	Arbiter string `json:"arbiter"`
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("orchestrator: invalid config: %s: %s", e.Field, e.Reason)
}

// Normalize fills zero fields with defaults and converts a percentage
// threshold into a fraction. Explicitly invalid values are left for
// Validate to reject.
func (c *Config) Normalize() {
	if c.Arbiter == "" {
		c.Arbiter = DefaultArbiter
	}
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if c.ConfidenceThreshold > 1 && c.ConfidenceThreshold <= 100 {
		c.ConfidenceThreshold /= 100
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.MinimumIterations == 0 {
		c.MinimumIterations = DefaultMinimumIterations
	}
}

// Validate checks the invariants a run depends on.
func (c *Config) Validate() error {
	if len(c.Models) == 0 {
		return &ConfigError{Field: "models", Reason: "at least one model is required"}
	}
	for _, name := range c.ModelNames() {
		if strings.TrimSpace(name) == "" {
			return &ConfigError{Field: "models", Reason: "model name is empty"}
		}
		if n := c.Models[name]; n < 1 {
			return &ConfigError{Field: "models", Reason: fmt.Sprintf("%s: instance count %d must be at least 1", name, n)}
		}
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return &ConfigError{Field: "confidence_threshold", Reason: fmt.Sprintf("%v is outside [0,1]", c.ConfidenceThreshold)}
	}
	if c.MaxIterations < 1 {
		return &ConfigError{Field: "max_iterations", Reason: "must be at least 1"}
	}
	if c.MinimumIterations < 1 {
		return &ConfigError{Field: "minimum_iterations", Reason: "must be at least 1"}
	}
	if c.MinimumIterations > c.MaxIterations {
		return &ConfigError{Field: "minimum_iterations", Reason: fmt.Sprintf("%d exceeds max_iterations %d", c.MinimumIterations, c.MaxIterations)}
	}
	if strings.TrimSpace(c.Arbiter) == "" {
		return &ConfigError{Field: "arbiter", Reason: "is required"}
	}
	return nil
}

// ModelNames returns the configured model ids in sorted order.
func (c *Config) ModelNames() []string {
	names := make([]string, 0, len(c.Models))
	for name := range c.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instances returns the total number of voter instances per round.
func (c *Config) Instances() int {
	n := 0
	for _, count := range c.Models {
		n += count
	}
	return n
}

// clone returns a deep copy so a run never observes later caller mutation.
func (c Config) clone() Config {
	models := make(map[string]int, len(c.Models))
	for k, v := range c.Models {
		models[k] = v
	}
	c.Models = models
	return c
}

// SaveConfig validates cfg and stores it under name as JSON.
func SaveConfig(ctx context.Context, s store.ConfigStore, name string, cfg Config) error {
	if strings.TrimSpace(name) == "" {
		return &ConfigError{Field: "name", Reason: "is required"}
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("orchestrator: encode config %q: %w", name, err)
	}
	if err := s.SaveConfig(ctx, name, raw); err != nil {
		return fmt.Errorf("orchestrator: save config %q: %w", name, err)
	}
	return nil
}

// LoadConfig reads and decodes the configuration stored under name. A
// missing name yields an error wrapping store.ErrNotFound.
func LoadConfig(ctx context.Context, s store.ConfigStore, name string) (Config, error) {
	raw, err := s.LoadConfig(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Config{}, fmt.Errorf("orchestrator: consortium %q: %w", name, err)
		}
		return Config{}, fmt.Errorf("orchestrator: load config %q: %w", name, err)
	}
	return DecodeConfig(raw)
}

// DecodeConfig parses a serialized configuration and applies defaults.
func DecodeConfig(raw []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("orchestrator: decode config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}
