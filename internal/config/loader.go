package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable naming.
const (
	envPrefix     = "CXDIAG_"
	envConfigFile = "CXDIAG_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CXDIAG_CONFIG is set
//  3. env (prefix CXDIAG_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// CXDIAG_DB_DRIVER -> db_driver (flat keys, underscores preserved).
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(envPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DBDriver != DriverSQLite && c.DBDriver != DriverPostgres:
		return fmt.Errorf("%w: db_driver must be %q or %q, got %q", ErrInvalidConfig, DriverSQLite, DriverPostgres, c.DBDriver)
	case strings.TrimSpace(c.DBDSN) == "":
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	case c.FullQuestionnaireItemCount <= 0:
		return fmt.Errorf("%w: full_questionnaire_item_count must be positive", ErrInvalidConfig)
	case c.MaxPageSize <= 0:
		return fmt.Errorf("%w: max_page_size must be positive", ErrInvalidConfig)
	case strings.TrimSpace(c.TenantHeader) == "":
		return fmt.Errorf("%w: tenant_header must not be empty", ErrInvalidConfig)
	}
	return nil
}
