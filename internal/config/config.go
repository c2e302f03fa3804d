// Package config reads the indexer's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/deidaraiorek/deindex/search"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Path   string
		Prefix string
	}
	Index search.Options

	// The crawler database documents are read from.
	Spider struct {
		Path      string
		BatchSize int `yaml:"batch_size"`
		// Format the page content is parsed as.
		Format string
	}

	Schedule struct {
		// Whether the indexer keeps running and indexes new pages periodically.
		Enabled          bool
		IndexInterval    time.Duration `yaml:"index_interval"`
		OptimizeInterval time.Duration `yaml:"optimize_interval"`
	}

	Log struct {
		Level string
		File  string
	}
}

func Default() *Config {
	c := &Config{Index: search.DefaultOptions()}
	c.Database.Path = "index.db"
	c.Database.Prefix = "search"
	c.Spider.Path = "spider.db"
	c.Spider.BatchSize = 1000
	c.Spider.Format = "txt"
	c.Schedule.IndexInterval = 10 * time.Minute
	c.Schedule.OptimizeInterval = time.Hour
	c.Log.Level = "info"
	c.Log.File = "indexer.log"
	return c
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path must be set"))
	}
	if c.Spider.BatchSize <= 0 {
		errs = append(errs, errors.New("spider.batch_size must be positive"))
	}
	if c.Schedule.Enabled && (c.Schedule.IndexInterval <= 0 || c.Schedule.OptimizeInterval <= 0) {
		errs = append(errs, errors.New("schedule intervals must be positive"))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Index.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	return level, nil
}
