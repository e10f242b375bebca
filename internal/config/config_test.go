package config

import (
	"math"
	"testing"
	"time"
)

func TestLoadParsesAgentSettings(t *testing.T) {
	t.Setenv("ASSISTANT_TOKEN", "token")
	t.Setenv("AGENT_MAX_TURNS", "7")
	t.Setenv("AGENT_MAX_BUDGET_USD", "0.25")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "10")
	t.Setenv("STREAM_PING_INTERVAL", "2s")
	t.Setenv("VALID_TEACHERS", "t1, t2 ,,")
	t.Setenv("OPENAI_API_KEY", " sk-test ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.AgentMaxTurns != 7 {
		t.Fatalf("AgentMaxTurns=%d want 7", cfg.AgentMaxTurns)
	}
	if cfg.AgentMaxBudgetUSD != 0.25 {
		t.Fatalf("AgentMaxBudgetUSD=%v want 0.25", cfg.AgentMaxBudgetUSD)
	}
	if cfg.RateLimitPerMinute != 10 {
		t.Fatalf("RateLimitPerMinute=%d want 10", cfg.RateLimitPerMinute)
	}
	if cfg.StreamPingInterval != 2*time.Second {
		t.Fatalf("StreamPingInterval=%v want 2s", cfg.StreamPingInterval)
	}
	if len(cfg.ValidTeachers) != 2 || cfg.ValidTeachers[0] != "t1" || cfg.ValidTeachers[1] != "t2" {
		t.Fatalf("ValidTeachers=%v want [t1 t2]", cfg.ValidTeachers)
	}
	if cfg.Providers.OpenAIKey != "sk-test" {
		t.Fatalf("OpenAIKey=%q want trimmed key", cfg.Providers.OpenAIKey)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ASSISTANT_TOKEN", "token")
	t.Setenv("AGENT_MAX_TURNS", "")
	t.Setenv("AGENT_MAX_BUDGET_USD", "")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("SERVER_ADDR", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FORMAT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.AgentMaxTurns != 25 {
		t.Fatalf("AgentMaxTurns=%d want 25", cfg.AgentMaxTurns)
	}
	if !math.IsInf(cfg.AgentMaxBudgetUSD, 1) {
		t.Fatalf("AgentMaxBudgetUSD=%v want +Inf", cfg.AgentMaxBudgetUSD)
	}
	if cfg.DatabasePath != "data/assistant.db" {
		t.Fatalf("DatabasePath=%q", cfg.DatabasePath)
	}
	if cfg.ServerAddr != ":8080" {
		t.Fatalf("ServerAddr=%q", cfg.ServerAddr)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Fatalf("log settings=%q/%q want info/text", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("ASSISTANT_TOKEN", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without ASSISTANT_TOKEN")
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	cfg := &Config{AssistantToken: "x", LogFormat: "xml"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for LOG_FORMAT=xml")
	}
}

func TestParseFloatEnvAcceptsZero(t *testing.T) {
	t.Setenv("BUDGET_TEST", "0")
	if got := parseFloatEnv("BUDGET_TEST", 5); got != 0 {
		t.Fatalf("parseFloatEnv=%v want 0", got)
	}
	t.Setenv("BUDGET_TEST", "-1")
	if got := parseFloatEnv("BUDGET_TEST", 5); got != 5 {
		t.Fatalf("parseFloatEnv negative=%v want default 5", got)
	}
}
