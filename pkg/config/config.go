// Package config loads the YAML configuration of a cachetx deployment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mirkobrombin/go-cachetx/pkg/logger"
	"github.com/mirkobrombin/go-cachetx/pkg/store/redis"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid")

// Config is the top-level configuration file.
type Config struct {
	// Strict makes cache failures fail the enclosing transaction.
	Strict  bool          `yaml:"strict"`
	Redis   redis.Config  `yaml:"redis"`
	Log     logger.Config `yaml:"log"`
	Journal Journal       `yaml:"journal"`
	Bus     Bus           `yaml:"bus"`
}

// Journal configures the failed-flush journal. An empty Dir disables it.
type Journal struct {
	Dir            string `yaml:"dir"`
	MaxSegmentSize int64  `yaml:"max_segment_size"`
}

// Bus configures invalidation broadcasts over the Redis server in Redis.
type Bus struct {
	Enabled bool   `yaml:"enabled"`
	Region  string `yaml:"region"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Strict: true,
		Redis: redis.Config{
			Addr:        "localhost:6379",
			DialTimeout: 5 * time.Second,
		},
		Log: logger.Config{
			Level:      "info",
			Format:     "json",
			OutputFile: "stderr",
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr is required", ErrInvalid)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("%w: redis.db must not be negative", ErrInvalid)
	}
	if c.Redis.TTL < 0 {
		return fmt.Errorf("%w: redis.ttl must not be negative", ErrInvalid)
	}
	if c.Journal.MaxSegmentSize < 0 {
		return fmt.Errorf("%w: journal.max_segment_size must not be negative", ErrInvalid)
	}
	return nil
}
