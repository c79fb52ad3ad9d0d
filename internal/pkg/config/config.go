// Package config loads service and CLI settings with koanf.
//
// Sources are layered: built-in defaults, then polyglot.yaml (when present),
// then POLY_ environment variables. A double underscore in a variable name
// separates key segments, so POLY_SERVER__PORT sets server.port. String
// values may reference the environment as ${VAR}.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
)

// DefaultPath is the config file read by Load.
const DefaultPath = "polyglot.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Decode    DecodeConfig    `koanf:"decode"`
	Anthropic AnthropicConfig `koanf:"anthropic"`
	Gemini    GeminiConfig    `koanf:"gemini"`
	Images    ImagesConfig    `koanf:"images"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Log       LogConfig       `koanf:"log"`
}

type ServerConfig struct {
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

type DecodeConfig struct {
	Mode string `koanf:"mode"` // fail_fast or collect_all
}

type AnthropicConfig struct {
	// DefaultMaxTokens fills max_tokens when a request without one is
	// encoded for Claude, which requires the field.
	DefaultMaxTokens int `koanf:"default_max_tokens"`
}

type GeminiConfig struct {
	NormalizeTurns bool `koanf:"normalize_turns"`
}

type ImagesConfig struct {
	// Inline fetches URL images and embeds them when transcoding requests.
	Inline       bool          `koanf:"inline"`
	MaxBytes     int64         `koanf:"max_bytes"`
	Timeout      time.Duration `koanf:"timeout"`
	AllowPrivate bool          `koanf:"allow_private"`
}

type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

var defaults = map[string]any{
	"server.port":                  8080,
	"server.timeout":               "30s",
	"decode.mode":                  "fail_fast",
	"anthropic.default_max_tokens": 4000,
	"gemini.normalize_turns":       false,
	"images.inline":                false,
	"images.max_bytes":             20 * 1024 * 1024,
	"images.timeout":               "30s",
	"images.allow_private":         false,
	"telemetry.enabled":            false,
	"log.level":                    "info",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads DefaultPath and the environment.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads path and the environment. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("POLY_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "POLY_")), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	// Substitute ${VAR} references in string values
	for key, v := range k.All() {
		if s, ok := v.(string); ok && strings.Contains(s, "${") {
			if err := k.Set(key, substituteEnvVars(s)); err != nil {
				return nil, err
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values koanf cannot type-check.
func (c *Config) Validate() error {
	if _, err := c.DecodeMode(); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Anthropic.DefaultMaxTokens <= 0 {
		return fmt.Errorf("anthropic.default_max_tokens must be positive, got %d", c.Anthropic.DefaultMaxTokens)
	}
	return nil
}

// DecodeMode parses decode.mode.
func (c *Config) DecodeMode() (wire.Mode, error) {
	m, err := wire.ParseMode(c.Decode.Mode)
	if err != nil {
		return 0, fmt.Errorf("decode.mode: %w", err)
	}
	return m, nil
}

// Addr is the listen address for the HTTP service.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
