package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nested keys: SHARDGATE_REST__TIMEOUT -> rest.timeout.
const EnvPrefix = "SHARDGATE_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (SHARDGATE_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validLogFormats = map[LogFormat]bool{
	LogFormatJSON:    true,
	LogFormatConsole: true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("token is required")
	}
	if c.APIVersion < 9 {
		return fmt.Errorf("api_version %d is not supported: must be 9 or later", c.APIVersion)
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url is required")
	}
	if len(c.Intents) == 0 {
		return fmt.Errorf("at least one intent is required")
	}

	if c.Shards.Count < 0 {
		return fmt.Errorf("shards.count must be non-negative")
	}
	for _, id := range c.Shards.IDs {
		if id < 0 {
			return fmt.Errorf("shard id %d must be non-negative", id)
		}
		if c.Shards.Count > 0 && id >= c.Shards.Count {
			return fmt.Errorf("shard id %d out of range for shards.count %d", id, c.Shards.Count)
		}
	}

	if c.Gateway.HandshakeTimeout <= 0 {
		return fmt.Errorf("gateway.handshake_timeout must be positive")
	}
	if err := c.Gateway.CloseCodes.validate(); err != nil {
		return err
	}

	if c.Reconnect.MaxAttempts <= 0 {
		return fmt.Errorf("reconnect.max_attempts must be positive")
	}
	if c.Reconnect.BaseDelay <= 0 || c.Reconnect.MaxDelay <= 0 {
		return fmt.Errorf("reconnect delays must be positive")
	}
	if c.Reconnect.BaseDelay > c.Reconnect.MaxDelay {
		return fmt.Errorf("reconnect.base_delay cannot exceed reconnect.max_delay")
	}
	if c.Reconnect.Multiplier < 1 {
		return fmt.Errorf("reconnect.multiplier must be at least 1")
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter > 1 {
		return fmt.Errorf("reconnect.jitter must be within [0, 1]")
	}

	if c.REST.Timeout <= 0 {
		return fmt.Errorf("rest.timeout must be positive")
	}
	if c.REST.MaxRetries < 0 {
		return fmt.Errorf("rest.max_retries must be non-negative")
	}
	if c.REST.GlobalRate <= 0 {
		return fmt.Errorf("rest.global_rate must be positive")
	}

	if c.Interactions.AckDeadline <= 0 {
		return fmt.Errorf("interactions.ack_deadline must be positive")
	}
	if c.Interactions.TokenTTL <= c.Interactions.AckDeadline {
		return fmt.Errorf("interactions.token_ttl must be longer than interactions.ack_deadline")
	}
	if c.Interactions.HandlerTimeout < 0 {
		return fmt.Errorf("interactions.handler_timeout must be non-negative")
	}

	if c.Status.Enabled && (c.Status.Port <= 0 || c.Status.Port > 65535) {
		return fmt.Errorf("status.port %d is invalid", c.Status.Port)
	}
	if c.Log.Format != "" && !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log.format %q: must be one of json, console", c.Log.Format)
	}

	return nil
}

// validate rejects codes listed under more than one class.
func (cc CloseCodesConfig) validate() error {
	seen := make(map[int]string)
	for class, codes := range map[string][]int{
		"resumable": cc.Resumable,
		"reset":     cc.Reset,
		"fatal":     cc.Fatal,
	} {
		for _, code := range codes {
			if prev, ok := seen[code]; ok {
				return fmt.Errorf("close code %d listed as both %s and %s", code, prev, class)
			}
			seen[code] = class
		}
	}
	return nil
}

// ScopesFor returns the sync scopes of the named command. An entry for the
// command itself wins over the "*" entry; with neither, the command is global.
func (c *Config) ScopesFor(name string) []string {
	if scopes, ok := c.Commands.Scopes[name]; ok {
		return scopes
	}
	if scopes, ok := c.Commands.Scopes[GlobalScope]; ok {
		return scopes
	}
	if len(c.Commands.Scopes) > 0 {
		return nil
	}
	return []string{GlobalScope}
}
