package io

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slok/conveyor/internal/model"
)

// RunConfigYAMLRepository loads engine run configuration from YAML files.
type RunConfigYAMLRepository struct {
	fs fs.FS
}

// NewRunConfigYAMLRepository creates a new YAML run config repository.
func NewRunConfigYAMLRepository(filesystem fs.FS) *RunConfigYAMLRepository {
	return &RunConfigYAMLRepository{fs: filesystem}
}

// GetRunConfig loads a run configuration from a YAML file and returns a validated domain model.
func (r *RunConfigYAMLRepository) GetRunConfig(ctx context.Context, path string) (model.RunConfig, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.RunConfig{}, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return model.RunConfig{}, ctx.Err()
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.RunConfig{}, fmt.Errorf("parsing YAML: %w", err)
	}

	m, err := cfg.toModel()
	if err != nil {
		return model.RunConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return m, nil
}

// RunConfig represents the YAML structure for the run configuration.
type RunConfig struct {
	HandlerName           string            `yaml:"handler_name"`
	Store                 StoreConfig       `yaml:"store"`
	AuditDir              string            `yaml:"audit_dir"`
	Workers               *int              `yaml:"workers"`
	AutoResolve           *bool             `yaml:"auto_resolve"`
	PollInterval          string            `yaml:"poll_interval"`
	ResolutionErrorPolicy string            `yaml:"resolution_error_policy"`
	Handlers              map[string]string `yaml:"handlers"`
}

// StoreConfig represents the YAML structure for the store configuration.
type StoreConfig struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresURL string `yaml:"postgres_url"`
}

func (c RunConfig) toModel() (model.RunConfig, error) {
	switch c.Store.Driver {
	case "", model.StoreDriverSQLite, model.StoreDriverPostgres:
	default:
		return model.RunConfig{}, fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Workers != nil && *c.Workers < -1 {
		return model.RunConfig{}, fmt.Errorf("workers must be positive or -1 (unbounded)")
	}

	var interval time.Duration
	if c.PollInterval != "" {
		d, err := time.ParseDuration(c.PollInterval)
		if err != nil {
			return model.RunConfig{}, fmt.Errorf("invalid poll interval: %w", err)
		}
		if d <= 0 {
			return model.RunConfig{}, fmt.Errorf("poll interval must be positive")
		}
		interval = d
	}

	for taskType, handler := range c.Handlers {
		if taskType == "" || handler == "" {
			return model.RunConfig{}, fmt.Errorf("handlers require a task type and a handler name")
		}
	}

	return model.RunConfig{
		HandlerName: c.HandlerName,
		Store: model.StoreConfig{
			Driver:      c.Store.Driver,
			SQLitePath:  c.Store.SQLitePath,
			PostgresURL: c.Store.PostgresURL,
		},
		AuditDir:              c.AuditDir,
		Workers:               c.Workers,
		AutoResolve:           c.AutoResolve,
		PollInterval:          interval,
		ResolutionErrorPolicy: c.ResolutionErrorPolicy,
		Handlers:              c.Handlers,
	}, nil
}
