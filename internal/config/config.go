// Package config provides YAML-based configuration loading for Greenroom.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Greenroom configuration, loaded from config.yaml.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Server     ServerConfig     `yaml:"server"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Runtime    RuntimeConfig    `yaml:"runtime"`
	Notify     NotifyConfig     `yaml:"notify"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Experiment ExperimentConfig `yaml:"experiment"`
}

// DatabaseConfig selects the storage backend. Driver "sqlite" uses Path;
// driver "mysql" uses Host/Port/Database.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// GeneratorConfig holds text-generation collaborator settings. The API
// key comes from the OPENAI_API_KEY environment variable, never the file.
type GeneratorConfig struct {
	Model       string  `yaml:"model"`
	Temperature float32 `yaml:"temperature"`
}

// RuntimeConfig holds the conversational-runtime sync endpoint.
type RuntimeConfig struct {
	SyncURL    string `yaml:"sync_url"`
	AuthToken  string `yaml:"auth_token"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// NotifyConfig holds outbound event notification settings.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	// PollIntervalSec controls how often the watcher tails the event log.
	PollIntervalSec int `yaml:"poll_interval_sec"`
}

// SlackConfig configures the Slack notifier adapter.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig configures the Discord notifier adapter.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// AnalysisConfig tunes the automated optimization loop.
type AnalysisConfig struct {
	Cron            string  `yaml:"cron"`             // 5-field cron expression
	LookbackCalls   int     `yaml:"lookback_calls"`   // outcomes considered per agent
	MinCalls        int     `yaml:"min_calls"`        // minimum outcomes before proposing
	SentimentFloor  float64 `yaml:"sentiment_floor"`  // propose below this mean sentiment
	ConversionFloor float64 `yaml:"conversion_floor"` // propose below this conversion rate
	AutoExperiment  bool    `yaml:"auto_experiment"`  // start an experiment per proposal
}

// ExperimentConfig tunes experiment evaluation.
type ExperimentConfig struct {
	// MinSamples is the per-arm sample count required before a decision.
	MinSamples int `yaml:"min_samples"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "greenroom.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Database == "" {
		c.Database.Database = "greenroom"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Generator.Model == "" {
		c.Generator.Model = "gpt-4o-mini"
	}
	if c.Generator.Temperature == 0 {
		c.Generator.Temperature = 0.4
	}
	if c.Runtime.TimeoutSec == 0 {
		c.Runtime.TimeoutSec = 10
	}
	if c.Notify.PollIntervalSec == 0 {
		c.Notify.PollIntervalSec = 15
	}
	if c.Analysis.Cron == "" {
		c.Analysis.Cron = "0 3 * * *"
	}
	if c.Analysis.LookbackCalls == 0 {
		c.Analysis.LookbackCalls = 200
	}
	if c.Analysis.MinCalls == 0 {
		c.Analysis.MinCalls = 20
	}
	if c.Analysis.SentimentFloor == 0 {
		c.Analysis.SentimentFloor = 0.6
	}
	if c.Analysis.ConversionFloor == 0 {
		c.Analysis.ConversionFloor = 0.25
	}
	if c.Experiment.MinSamples == 0 {
		c.Experiment.MinSamples = 1
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Analysis.SentimentFloor < 0 || c.Analysis.SentimentFloor > 1 {
		errs = append(errs, "analysis.sentiment_floor must be in [0,1]")
	}
	if c.Analysis.ConversionFloor < 0 || c.Analysis.ConversionFloor > 1 {
		errs = append(errs, "analysis.conversion_floor must be in [0,1]")
	}
	if c.Experiment.MinSamples < 1 {
		errs = append(errs, "experiment.min_samples must be at least 1")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
