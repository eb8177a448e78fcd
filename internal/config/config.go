// Package config loads the hosted server configuration from a YAML file
// with environment-variable overrides. The local stdio binary does not use
// it; that deployment is configured entirely from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Completion modes for the authorization flow.
const (
	ModeSession   = "session"
	ModeDelegated = "delegated"
)

// Redis holds the connection settings for the shared key-value store. An
// empty Addr selects the in-memory store.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Config is the hosted server configuration.
type Config struct {
	Listen       string   `yaml:"listen"`
	PublicURL    string   `yaml:"public_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
	Mode         string   `yaml:"mode"`
	Redis        Redis    `yaml:"redis"`
	Debug        bool     `yaml:"debug"`
}

// Default returns the configuration before any file or environment input.
func Default() Config {
	return Config{
		Listen: ":8080",
		Scopes: []string{"accesslink.read_all"},
		Mode:   ModeSession,
	}
}

// Load reads the YAML file at path, applies environment overrides and
// validates the result. An empty path skips the file and uses defaults
// plus environment only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv lets deployment environments override any file setting.
func (c *Config) applyEnv() {
	if v := os.Getenv("POLAR_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("POLAR_PUBLIC_URL"); v != "" {
		c.PublicURL = v
	}
	if v := os.Getenv("POLAR_CLIENT_ID"); v != "" {
		c.ClientID = v
	}
	if v := os.Getenv("POLAR_CLIENT_SECRET"); v != "" {
		c.ClientSecret = v
	}
	if v := os.Getenv("POLAR_SCOPES"); v != "" {
		c.Scopes = strings.Fields(v)
	}
	if v := os.Getenv("POLAR_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("POLAR_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("POLAR_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("POLAR_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("POLAR_DEBUG"); v != "" {
		c.Debug = v == "1" || strings.EqualFold(v, "true")
	}
}

func (c *Config) validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required (or set POLAR_CLIENT_ID)")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client_secret is required (or set POLAR_CLIENT_SECRET)")
	}
	if c.PublicURL == "" {
		return fmt.Errorf("public_url is required (or set POLAR_PUBLIC_URL)")
	}
	if !strings.HasPrefix(c.PublicURL, "http://") && !strings.HasPrefix(c.PublicURL, "https://") {
		return fmt.Errorf("public_url must be an absolute http(s) URL, got %q", c.PublicURL)
	}
	c.PublicURL = strings.TrimSuffix(c.PublicURL, "/")
	if c.Mode != ModeSession && c.Mode != ModeDelegated {
		return fmt.Errorf("mode must be %q or %q, got %q", ModeSession, ModeDelegated, c.Mode)
	}
	return nil
}
