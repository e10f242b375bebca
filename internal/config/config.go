// Package config handles loading and validating configuration from environment variables.
package config

import (
	"errors"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// AssistantToken is the bearer token for API authentication.
	AssistantToken string
	// DatabasePath is the sqlite file holding workspaces and sessions.
	DatabasePath string
	// SkillsRoot is the directory containing one folder per skill.
	SkillsRoot string
	// ServerAddr is the HTTP listen address (e.g., :80, :8080).
	ServerAddr string
	// ValidTeachers restricts accepted X-Teacher-Id values. Empty allows any well-formed id.
	ValidTeachers []string
	// Providers holds LLM credentials and endpoint overrides.
	Providers ProviderConfig
	// AgentMaxTurns bounds model calls in one agent run.
	AgentMaxTurns int
	// AgentMaxBudgetUSD bounds estimated spend in one agent run.
	AgentMaxBudgetUSD float64
	// RateLimitPerMinute bounds chat requests per teacher.
	RateLimitPerMinute int
	// StreamPingInterval is the keep-alive interval for streamed chat responses.
	StreamPingInterval time.Duration
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// LogFormat is "text" (tinted) or "json".
	LogFormat string
}

// ProviderConfig holds per-provider API keys and optional base URLs.
type ProviderConfig struct {
	AnthropicKey     string
	AnthropicBaseURL string
	OpenAIKey        string
	OpenAIBaseURL    string
}

// Load reads configuration from environment variables.
// It loads .env file if present, but environment variables take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AssistantToken: os.Getenv("ASSISTANT_TOKEN"),
		DatabasePath:   strings.TrimSpace(os.Getenv("DATABASE_PATH")),
		SkillsRoot:     strings.TrimSpace(os.Getenv("SKILLS_ROOT")),
		ServerAddr:     strings.TrimSpace(os.Getenv("SERVER_ADDR")),
		ValidTeachers:  parseCSV(os.Getenv("VALID_TEACHERS")),
		Providers: ProviderConfig{
			AnthropicKey:     strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")),
			AnthropicBaseURL: strings.TrimSpace(os.Getenv("ANTHROPIC_BASE_URL")),
			OpenAIKey:        strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			OpenAIBaseURL:    strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		},
		LogLevel:  strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		LogFormat: strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT"))),
	}
	cfg.AgentMaxTurns = parseIntEnv("AGENT_MAX_TURNS", 25)
	cfg.AgentMaxBudgetUSD = parseFloatEnv("AGENT_MAX_BUDGET_USD", math.Inf(1))
	cfg.RateLimitPerMinute = parseIntEnv("RATE_LIMIT_PER_MINUTE", 60)
	cfg.StreamPingInterval = parseDurationEnv("STREAM_PING_INTERVAL", 5*time.Second)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required fields and fills defaults for optional ones.
func (c *Config) Validate() error {
	if c.AssistantToken == "" {
		return errors.New("ASSISTANT_TOKEN is required")
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "data/assistant.db"
	}
	if c.SkillsRoot == "" {
		c.SkillsRoot = "skills"
	}
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	switch c.LogLevel {
	case "", "info":
		c.LogLevel = "info"
	case "debug", "warn", "error":
	default:
		return errors.New("LOG_LEVEL must be debug, info, warn, or error")
	}
	switch c.LogFormat {
	case "", "text":
		c.LogFormat = "text"
	case "json":
	default:
		return errors.New("LOG_FORMAT must be text or json")
	}
	// Provider keys are optional: mock models work without them.
	return nil
}

func parseCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseIntEnv(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	return parsed
}

// parseFloatEnv accepts zero so a budget of 0 can be configured.
func parseFloatEnv(key string, defaultValue float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 || math.IsNaN(parsed) {
		return defaultValue
	}
	return parsed
}

func parseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	return parsed
}
