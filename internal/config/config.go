// Package config provides YAML-based configuration loading for agileboard.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level agileboard configuration, loaded from agileboard.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Seed     SeedConfig     `yaml:"seed"`
}

// DatabaseConfig holds connection settings for the backing store.
// Driver is "sqlite" (local file) or "mysql".
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"` // sqlite only
	Host     string `yaml:"host"` // mysql only
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ServerConfig holds settings for the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// JobsConfig holds 5-field cron expressions for the background schedules.
type JobsConfig struct {
	MetricsCron  string `yaml:"metrics_cron"`
	BurndownCron string `yaml:"burndown_cron"`
}

// SeedConfig holds reference data upserted into the store on db init:
// statuses, priorities, issue types, and workflow schemes.
type SeedConfig struct {
	Statuses   []StatusConfig   `yaml:"statuses"`
	Priorities []PriorityConfig `yaml:"priorities"`
	Types      []string         `yaml:"types"`
	Schemes    []SchemeConfig   `yaml:"schemes"`
}

// StatusConfig defines one issue status.
type StatusConfig struct {
	Name      string `yaml:"name"`
	Category  string `yaml:"category"` // todo, in_progress, done
	SortOrder int    `yaml:"sort_order"`
	Color     string `yaml:"color"`
}

// PriorityConfig defines one issue priority.
type PriorityConfig struct {
	Name      string `yaml:"name"`
	SortOrder int    `yaml:"sort_order"`
	Color     string `yaml:"color"`
}

// SchemeConfig defines a workflow scheme and its transitions.
type SchemeConfig struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description"`
	Transitions []TransitionConfig `yaml:"transitions"`
}

// TransitionConfig defines one transition edge within a scheme.
type TransitionConfig struct {
	From       string `yaml:"from"`
	To         string `yaml:"to"`
	Name       string `yaml:"name"`
	Permission string `yaml:"permission"`
	Condition  string `yaml:"condition"`
}

// cronParser accepts standard 5-field cron expressions (minute, hour, dom,
// month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

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
		c.Database.Path = "agileboard.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "agileboard"
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Jobs.MetricsCron == "" {
		c.Jobs.MetricsCron = "0 * * * *" // hourly
	}
	if c.Jobs.BurndownCron == "" {
		c.Jobs.BurndownCron = "30 23 * * *" // nightly
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if _, err := cronParser.Parse(c.Jobs.MetricsCron); err != nil {
		errs = append(errs, fmt.Sprintf("jobs.metrics_cron %q: %v", c.Jobs.MetricsCron, err))
	}
	if _, err := cronParser.Parse(c.Jobs.BurndownCron); err != nil {
		errs = append(errs, fmt.Sprintf("jobs.burndown_cron %q: %v", c.Jobs.BurndownCron, err))
	}
	for i, s := range c.Seed.Statuses {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("seed.statuses[%d].name is required", i))
		}
		switch s.Category {
		case "todo", "in_progress", "done":
		default:
			errs = append(errs, fmt.Sprintf("seed.statuses[%d].category %q is not one of todo, in_progress, done", i, s.Category))
		}
	}
	for i, s := range c.Seed.Schemes {
		if s.Name == "" {
			errs = append(errs, fmt.Sprintf("seed.schemes[%d].name is required", i))
		}
		for j, tr := range s.Transitions {
			if tr.From == "" || tr.To == "" {
				errs = append(errs, fmt.Sprintf("seed.schemes[%d].transitions[%d]: from and to are required", i, j))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
