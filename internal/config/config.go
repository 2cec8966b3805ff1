// Package config loads consortium.yml, the settings file that tells the CLI
// where model endpoints live and which defaults to apply to a run.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dusk-indust/consortium/internal/orchestrator"
	"gopkg.in/yaml.v3"
)

// HomeEnv overrides the user directory.
const HomeEnv = "CONSORTIUM_HOME"

// FileNames are tried in order by Load.
var FileNames = []string{"consortium.yml", "consortium.yaml"}

// ProjectConfig holds settings loaded from consortium.yml.
type ProjectConfig struct {
	// DefaultEndpoint serves every model without an entry in Endpoints.
	DefaultEndpoint string `yaml:"defaultEndpoint,omitempty"`

	// Endpoints maps a model id to the A2A agent URL that serves it.
	Endpoints map[string]string `yaml:"endpoints,omitempty"`

	Store       string `yaml:"store,omitempty"`
	StorePath   string `yaml:"storePath,omitempty"`
	TemplateDir string `yaml:"templateDir,omitempty"`

	// Timeout bounds one model call, as a Go duration string ("90s").
	Timeout string `yaml:"timeout,omitempty"`

	Defaults Defaults `yaml:"defaults,omitempty"`
}

// Defaults are run settings applied when neither flags nor a saved
// consortium provide them.
type Defaults struct {
	Models              map[string]int `yaml:"models,omitempty"`
	Arbiter             string         `yaml:"arbiter,omitempty"`
	SystemPrompt        string         `yaml:"systemPrompt,omitempty"`
	ConfidenceThreshold float64        `yaml:"confidenceThreshold,omitempty"`
	MaxIterations       int            `yaml:"maxIterations,omitempty"`
	MinIterations       int            `yaml:"minIterations,omitempty"`
}

// Load attempts to read consortium.yml or consortium.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if _, err := cfg.CallTimeout(); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
		return &cfg, nil
	}
	return &ProjectConfig{}, nil
}

// CallTimeout parses Timeout. An empty value returns zero.
func (c *ProjectConfig) CallTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("timeout %q: %w", c.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("timeout %q is negative", c.Timeout)
	}
	return d, nil
}

// Apply fills the zero fields of cfg from d.
func (d Defaults) Apply(cfg *orchestrator.Config) {
	if len(cfg.Models) == 0 && len(d.Models) > 0 {
		cfg.Models = make(map[string]int, len(d.Models))
		for k, v := range d.Models {
			cfg.Models[k] = v
		}
	}
	if cfg.Arbiter == "" {
		cfg.Arbiter = d.Arbiter
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = d.SystemPrompt
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = d.ConfidenceThreshold
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = d.MaxIterations
	}
	if cfg.MinimumIterations == 0 {
		cfg.MinimumIterations = d.MinIterations
	}
}

// UserDir returns the directory holding consortium.yml, the log database
// and template overrides: $CONSORTIUM_HOME if set, otherwise
// <user config dir>/consortium.
func UserDir() (string, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("config: locate user config dir: %w", err)
	}
	return filepath.Join(base, "consortium"), nil
}
