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
)

// DefaultPath is the config file read when Load is given an empty path.
const DefaultPath = "config.yaml"

// EnvPrefix prefixes every environment override; "__" separates nesting,
// e.g. IDCARD_LLM__API_KEY sets llm.api_key.
const EnvPrefix = "IDCARD_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	LLM       LLMConfig       `koanf:"llm"`
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// LLMConfig configures the optional text-generation collaborator. An empty
// APIKey leaves it unconfigured and the assistant uses fixed messages.
type LLMConfig struct {
	APIKey    string        `koanf:"api_key"`
	BaseURL   string        `koanf:"base_url"`
	Model     string        `koanf:"model"`
	Timeout   time.Duration `koanf:"timeout"`
	MaxTokens int           `koanf:"max_tokens"`
}

// Configured reports whether an API key is present.
func (c LLMConfig) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

var defaults = map[string]any{
	"server.port":            8080,
	"server.request_timeout": 30 * time.Second,
	"llm.base_url":           "https://generativelanguage.googleapis.com/v1beta/openai",
	"llm.model":              "gemini-2.0-flash",
	"llm.timeout":            3 * time.Second,
	"llm.max_tokens":         40,
	"log.level":              "info",
	"log.format":             "json",
	"telemetry.service_name": "idcard-assistant",
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the optional YAML file at path (DefaultPath when empty), then
// applies IDCARD_ environment overrides and defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.LLM.APIKey = substituteEnvVars(cfg.LLM.APIKey)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive, got %s", c.LLM.Timeout)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
