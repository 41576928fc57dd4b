package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Token = "test-token"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.APIVersion != 10 {
		t.Errorf("expected default api_version 10, got %d", cfg.APIVersion)
	}
	if cfg.Interactions.AckDeadline != 3*time.Second {
		t.Errorf("expected default ack_deadline 3s, got %v", cfg.Interactions.AckDeadline)
	}
	if cfg.Interactions.TokenTTL != 15*time.Minute {
		t.Errorf("expected default token_ttl 15m, got %v", cfg.Interactions.TokenTTL)
	}
	if cfg.Reconnect.MaxAttempts != 10 {
		t.Errorf("expected default max_attempts 10, got %d", cfg.Reconnect.MaxAttempts)
	}
	if len(cfg.Gateway.CloseCodes.Fatal) == 0 {
		t.Error("expected default fatal close codes")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.shardgate.yml")

	original := validConfig()
	original.ApplicationID = "123456789"
	original.Intents = []string{"guilds", "guild_messages", "message_content"}
	original.Compress = true
	original.Shards.Count = 4
	original.Shards.IDs = []int{0, 1}
	original.Commands.Scopes = map[string][]string{"permission": {"42"}}

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Token != original.Token {
		t.Errorf("token: got %q, want %q", loaded.Token, original.Token)
	}
	if loaded.ApplicationID != original.ApplicationID {
		t.Errorf("application_id: got %q, want %q", loaded.ApplicationID, original.ApplicationID)
	}
	if !loaded.Compress {
		t.Error("compress: got false, want true")
	}
	if loaded.Shards.Count != 4 || len(loaded.Shards.IDs) != 2 {
		t.Errorf("shards: got %+v", loaded.Shards)
	}
	if len(loaded.Intents) != 3 || loaded.Intents[2] != "message_content" {
		t.Errorf("intents: got %v", loaded.Intents)
	}
	if loaded.Interactions.AckDeadline != original.Interactions.AckDeadline {
		t.Errorf("ack_deadline: got %v, want %v", loaded.Interactions.AckDeadline, original.Interactions.AckDeadline)
	}
	if got := loaded.Commands.Scopes["permission"]; len(got) != 1 || got[0] != "42" {
		t.Errorf("commands.scopes: got %v", loaded.Commands.Scopes)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.APIVersion != 10 {
		t.Errorf("expected default api_version, got %d", cfg.APIVersion)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	if err := validConfig().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("SHARDGATE_TOKEN", "from-env")
	t.Setenv("SHARDGATE_REST__TIMEOUT", "42s")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Token != "from-env" {
		t.Errorf("env override failed: got %q, want %q", loaded.Token, "from-env")
	}
	if loaded.REST.Timeout != 42*time.Second {
		t.Errorf("nested env override failed: got %v", loaded.REST.Timeout)
	}
}

func TestLoadUnreadablePath(t *testing.T) {
	dir := t.TempDir()
	// A directory cannot be parsed as YAML.
	if err := os.Mkdir(filepath.Join(dir, "cfg.yml"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(filepath.Join(dir, "cfg.yml")); err == nil {
		t.Error("expected error loading a directory as config")
	}
}

func TestValidateValid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("default config with token should be valid, got: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Token = "" }},
		{"old api version", func(c *Config) { c.APIVersion = 6 }},
		{"no intents", func(c *Config) { c.Intents = nil }},
		{"negative shard count", func(c *Config) { c.Shards.Count = -1 }},
		{"shard id out of range", func(c *Config) { c.Shards.Count = 2; c.Shards.IDs = []int{2} }},
		{"zero attempts", func(c *Config) { c.Reconnect.MaxAttempts = 0 }},
		{"base above max", func(c *Config) { c.Reconnect.BaseDelay = time.Hour }},
		{"multiplier below one", func(c *Config) { c.Reconnect.Multiplier = 0.5 }},
		{"jitter above one", func(c *Config) { c.Reconnect.Jitter = 1.5 }},
		{"zero rest timeout", func(c *Config) { c.REST.Timeout = 0 }},
		{"token ttl below ack", func(c *Config) { c.Interactions.TokenTTL = time.Second }},
		{"bad status port", func(c *Config) { c.Status.Port = 70000 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"overlapping close codes", func(c *Config) {
			c.Gateway.CloseCodes.Reset = append(c.Gateway.CloseCodes.Reset, 4004)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestScopesFor(t *testing.T) {
	cfg := validConfig()
	if got := cfg.ScopesFor("ping"); len(got) != 1 || got[0] != GlobalScope {
		t.Errorf("empty scopes: got %v, want [*]", got)
	}

	cfg.Commands.Scopes = map[string][]string{
		"permission": {"42", "43"},
	}
	if got := cfg.ScopesFor("permission"); len(got) != 2 {
		t.Errorf("named scopes: got %v", got)
	}
	if got := cfg.ScopesFor("ping"); got != nil {
		t.Errorf("unlisted command: got %v, want nil", got)
	}

	cfg.Commands.Scopes[GlobalScope] = []string{"7"}
	if got := cfg.ScopesFor("ping"); len(got) != 1 || got[0] != "7" {
		t.Errorf("wildcard scopes: got %v, want [7]", got)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := splitAndTrim(" guilds, guild_messages ,,direct_messages ")
	want := []string{"guilds", "guild_messages", "direct_messages"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] got %q, want %q", i, got[i], want[i])
		}
	}
}
