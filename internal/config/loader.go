package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// envPrefix namespaces advisord environment variables.
	envPrefix = "ADVISORD_"
)

// Load loads configuration from the YAML file at configPath, then
// overrides with environment variables, then applies defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (ADVISORD_LLM_BASE_URL, ADVISORD_CACHE_THRESHOLD, ...)
//  2. YAML config file (~/.config/advisord/config.yaml by default)
//  3. Hardcoded defaults
//
// Environment variables map to config keys by stripping the ADVISORD_
// prefix, lowercasing, and splitting on the first underscore:
//
//	ADVISORD_LLM_BASE_URL      -> llm.base_url
//	ADVISORD_SESSION_PROVIDER  -> session.provider
//	ADVISORD_NAMESPACE         -> namespace
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "advisord", "config.yaml")
	}

	// Load from YAML file if it exists
	if _, err := os.Stat(configPath); err == nil {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file %s exceeds maximum size of %d bytes", configPath, maxConfigFileSize)
		}

		content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize))
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Use rawbytes provider to avoid re-opening the file
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Override with environment variables
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// ADVISORD_LLM_BASE_URL -> llm.base_url
		// Split on first underscore only (section.field_name pattern).
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no
// file or environment input. Useful for tests and embedded use.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// EnsureConfigDir creates the advisord config directory if it doesn't
// exist. Called during startup so new users have the directory ready.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "advisord")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}

	return nil
}
