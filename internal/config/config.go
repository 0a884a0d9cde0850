// Package config loads migracraft settings from an optional migracraft.yaml
// file and MIGRACRAFT_* environment variables. Command-line flags are
// applied on top by the CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "migracraft.yaml"

const envPrefix = "MIGRACRAFT_"

// Config holds every setting the CLI accepts.
type Config struct {
	SchemasDir       string        `yaml:"schemas_dir"`
	MigrationsDir    string        `yaml:"migrations_dir"`
	EntitiesDir      string        `yaml:"entities_dir"`
	EntityLanguage   string        `yaml:"generate_entities"`
	AllowDestructive bool          `yaml:"allow_destructive"`
	LockDatabaseURL  string        `yaml:"lock_db_url"`
	LockTimeout      time.Duration `yaml:"lock_timeout"`
	DatabaseURL      string        `yaml:"database_url"`
	Verbose          bool          `yaml:"verbose"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		SchemasDir:    "schemas",
		MigrationsDir: "migrations",
		EntitiesDir:   "entities",
		LockTimeout:   30 * time.Second,
	}
}

// Load builds the configuration from defaults, the file at path and the
// process environment, in increasing precedence. An empty path reads
// FileName when it exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = FileName
	}
	if err := cfg.readFile(path, explicit); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Keys missing from the file keep their defaults.
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides settings from MIGRACRAFT_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SCHEMAS_DIR":       &c.SchemasDir,
		"MIGRATIONS_DIR":    &c.MigrationsDir,
		"ENTITIES_DIR":      &c.EntitiesDir,
		"GENERATE_ENTITIES": &c.EntityLanguage,
		"LOCK_DB_URL":       &c.LockDatabaseURL,
		"DATABASE_URL":      &c.DatabaseURL,
	}
	for key, dst := range strs {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"ALLOW_DESTRUCTIVE": &c.AllowDestructive,
		"VERBOSE":           &c.Verbose,
	}
	for key, dst := range bools {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s value %q: %w", envPrefix, key, v, err)
		}
		*dst = b
	}

	if v, ok := lookup(envPrefix + "LOCK_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %sLOCK_TIMEOUT value %q: %w", envPrefix, v, err)
		}
		c.LockTimeout = d
	}
	return nil
}
