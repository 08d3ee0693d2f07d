// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Config is the CLI configuration, loadable from a JSON file. All fields are
// optional; missing values fall back to defaults or CLI flags.
type Config struct {
	// Paths
	CorpusDir string `json:"corpus_dir,omitempty" validate:"omitempty"`
	Job       string `json:"job,omitempty"        validate:"omitempty"`
	Output    string `json:"output,omitempty"`
	Rubric    string `json:"rubric,omitempty"`

	// Word budget for the final document.
	MinWords int `json:"min_words,omitempty" validate:"min=0"`
	MaxWords int `json:"max_words,omitempty" validate:"min=0,gtecsfield=MinWords"`

	// Assembly limits
	MinBulletsPerRole   int     `json:"min_bullets_per_role,omitempty" validate:"min=0,max=10"`
	MaxBulletWords      int     `json:"max_bullet_words,omitempty"     validate:"min=0,max=60"`
	SimilarityThreshold float64 `json:"similarity_threshold,omitempty" validate:"min=0,max=1"`
	HeaderReserveWords  int     `json:"header_reserve_words,omitempty" validate:"min=0"`

	// Loop and concurrency
	Workers        int `json:"workers,omitempty"         validate:"min=0,max=16"`
	MaxIterations  int `json:"max_iterations,omitempty"  validate:"min=0,max=10"`
	TimeoutSeconds int `json:"timeout_seconds,omitempty" validate:"min=0"`

	// Behavior
	APIKey      string `json:"api_key,omitempty"`
	DatabaseURL string `json:"database_url,omitempty"`
	Verbose     bool   `json:"verbose,omitempty"`
}

// Default values applied where the config and flags are silent.
const (
	DefaultMinWords       = 80
	DefaultMaxWords       = 150
	DefaultWorkers        = 3
	DefaultMaxIterations  = 3
	DefaultTimeoutSeconds = 300
)

// LoadConfig reads and parses configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults fills zero-valued fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.MinWords == 0 && c.MaxWords == 0 {
		c.MinWords = DefaultMinWords
		c.MaxWords = DefaultMaxWords
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
}

// Validate checks field constraints and that referenced paths exist.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("config error: field %q fails %q constraint", e.Field(), e.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}

	if c.CorpusDir != "" {
		if info, err := os.Stat(c.CorpusDir); err != nil || !info.IsDir() {
			return fmt.Errorf("config error: corpus directory not found: %s", c.CorpusDir)
		}
	}
	if c.Job != "" {
		if _, err := os.Stat(c.Job); os.IsNotExist(err) {
			return fmt.Errorf("config error: job file not found: %s", c.Job)
		}
	}
	if c.Rubric != "" {
		if _, err := os.Stat(c.Rubric); os.IsNotExist(err) {
			return fmt.Errorf("config error: rubric file not found: %s", c.Rubric)
		}
	}

	return nil
}
