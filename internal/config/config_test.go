package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_BEARER_TOKEN", "test-token")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Addr != ":8100" {
		t.Errorf("server.addr = %q", cfg.Server.Addr)
	}
	if cfg.Model.Timeout != 60*time.Second {
		t.Errorf("model.timeout = %v, want 60s", cfg.Model.Timeout)
	}
	if cfg.History.TokenBudget != 512 {
		t.Errorf("history.token_budget = %d, want 512", cfg.History.TokenBudget)
	}
	if cfg.History.WindowSize != 20 {
		t.Errorf("history.window_size = %d, want 20", cfg.History.WindowSize)
	}
	if cfg.Server.BearerToken != "test-token" {
		t.Errorf("server.bearer_token = %q", cfg.Server.BearerToken)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_BEARER_TOKEN", "test-token")
	t.Setenv("SERVER_ADDR", ":9000")
	t.Setenv("HISTORY_TOKEN_BUDGET", "128")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("server.addr = %q, want :9000", cfg.Server.Addr)
	}
	if cfg.History.TokenBudget != 128 {
		t.Errorf("history.token_budget = %d, want 128", cfg.History.TokenBudget)
	}
}

func TestLoadRequiresBearerToken(t *testing.T) {
	t.Setenv("SERVER_BEARER_TOKEN", "")

	if _, err := Load(""); err == nil {
		t.Error("expected an error without a bearer token")
	}
}
