// Package config reads the environment configuration shared by the command line tools.
package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/cloudx-io/sealedauction/core"
)

// EnvPrefix is prepended to every variable name, e.g. AUCTION_LOG_LEVEL.
const EnvPrefix = "AUCTION_"

// Config represents the command line tools' environment configuration.
type Config struct {
	LogLevel    string    `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string    `env:"LOG_FORMAT" envDefault:"console"`
	SigningKey  string    `env:"SIGNING_KEY"` // Path to a PEM private key; a fresh key is generated when empty
	DefaultRule core.Rule `env:"DEFAULT_RULE"`
	Attest      bool      `env:"ATTEST" envDefault:"false"`
}

// Load reads the configuration from the environment, after loading a .env file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load() // best-effort: .env is optional
	return parse()
}

// LoadFile is Load with an explicit env file, which must exist.
// Variables already set in the environment take precedence over the file.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("load env file %s: %w", path, err)
	}
	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate normalizes the configuration and reports every invalid setting at once.
func (c *Config) validate() error {
	var err error

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		err = multierr.Append(err, fmt.Errorf("%sLOG_LEVEL must be one of debug, info, warn, error: got %q", EnvPrefix, c.LogLevel))
	}

	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat != "console" && c.LogFormat != "json" {
		err = multierr.Append(err, fmt.Errorf(`%sLOG_FORMAT must be "console" or "json": got %q`, EnvPrefix, c.LogFormat))
	}

	if c.DefaultRule != "" && !slices.Contains(core.AllRules, c.DefaultRule) {
		err = multierr.Append(err, fmt.Errorf("%w: %sDEFAULT_RULE=%q", core.ErrUnknownRule, EnvPrefix, c.DefaultRule))
	}

	return err
}
