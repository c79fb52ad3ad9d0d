package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-llm-wire/internal/api/wire"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "polyglot.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Server.Timeout != 30*time.Second {
		t.Errorf("Server.Timeout = %v, want 30s", cfg.Server.Timeout)
	}
	if cfg.Anthropic.DefaultMaxTokens != 4000 {
		t.Errorf("Anthropic.DefaultMaxTokens = %v, want 4000", cfg.Anthropic.DefaultMaxTokens)
	}
	if cfg.Images.MaxBytes != 20*1024*1024 {
		t.Errorf("Images.MaxBytes = %v, want 20MiB", cfg.Images.MaxBytes)
	}
	if cfg.Gemini.NormalizeTurns || cfg.Images.AllowPrivate || cfg.Telemetry.Enabled {
		t.Errorf("boolean defaults = %+v, want all false", cfg)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if mode, _ := cfg.DecodeMode(); mode != wire.FailFast {
		t.Errorf("DecodeMode() = %v, want fail_fast", mode)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr() = %q, want :8080", cfg.Addr())
	}
}

func TestLoadFile_YAML(t *testing.T) {
	t.Setenv("TEST_LOG_LEVEL", "debug")
	path := writeConfig(t, `
server:
  port: 9090
  timeout: 5s
decode:
  mode: collect_all
anthropic:
  default_max_tokens: 1024
gemini:
  normalize_turns: true
images:
  timeout: 2s
log:
  level: ${TEST_LOG_LEVEL}
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %v, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Timeout != 5*time.Second {
		t.Errorf("Server.Timeout = %v, want 5s", cfg.Server.Timeout)
	}
	if mode, _ := cfg.DecodeMode(); mode != wire.CollectAll {
		t.Errorf("DecodeMode() = %v, want collect_all", mode)
	}
	if cfg.Anthropic.DefaultMaxTokens != 1024 {
		t.Errorf("Anthropic.DefaultMaxTokens = %v, want 1024", cfg.Anthropic.DefaultMaxTokens)
	}
	if !cfg.Gemini.NormalizeTurns {
		t.Error("Gemini.NormalizeTurns = false, want true")
	}
	if cfg.Images.Timeout != 2*time.Second {
		t.Errorf("Images.Timeout = %v, want 2s", cfg.Images.Timeout)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadFile_EnvOverride(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")
	t.Setenv("POLY_SERVER__PORT", "9000")
	t.Setenv("POLY_IMAGES__ALLOW_PRIVATE", "true")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %v, want 9000", cfg.Server.Port)
	}
	if !cfg.Images.AllowPrivate {
		t.Error("Images.AllowPrivate = false, want true")
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"decode mode", "decode:\n  mode: lenient\n"},
		{"port", "server:\n  port: 70000\n"},
		{"max tokens", "anthropic:\n  default_max_tokens: 0\n"},
		{"yaml", "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadFile(writeConfig(t, tt.body)); err == nil {
				t.Error("LoadFile() expected error")
			}
		})
	}
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple substitution",
			input: "${TEST_VAR}",
			want:  "test-value",
		},
		{
			name:  "substitution in string",
			input: "prefix-${TEST_VAR}-suffix",
			want:  "prefix-test-value-suffix",
		},
		{
			name:  "no substitution",
			input: "plain-string",
			want:  "plain-string",
		},
		{
			name:  "undefined var",
			input: "${UNDEFINED_VAR}",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := substituteEnvVars(tt.input)
			if got != tt.want {
				t.Errorf("substituteEnvVars() = %v, want %v", got, tt.want)
			}
		})
	}
}
