package config

import "time"

// LogFormat selects the zap encoder.
type LogFormat string

const (
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)

// GlobalScope is the commands.scopes entry that registers a command globally.
const GlobalScope = "*"

// Config is the top-level shardgate configuration, corresponding to .shardgate.yml.
type Config struct {
	Token              string             `yaml:"token" koanf:"token"`
	ApplicationID      string             `yaml:"application_id" koanf:"application_id"`
	APIVersion         int                `yaml:"api_version" koanf:"api_version"`
	APIBaseURL         string             `yaml:"api_base_url" koanf:"api_base_url"`
	GatewayURL         string             `yaml:"gateway_url" koanf:"gateway_url"`
	Intents            []string           `yaml:"intents" koanf:"intents"`
	Compress           bool               `yaml:"compress" koanf:"compress"`
	HandleSelfMessages bool               `yaml:"handle_self_messages" koanf:"handle_self_messages"`
	DataDir            string             `yaml:"data_dir" koanf:"data_dir"`
	Shards             ShardConfig        `yaml:"shards" koanf:"shards"`
	Gateway            GatewayConfig      `yaml:"gateway" koanf:"gateway"`
	Reconnect          ReconnectConfig    `yaml:"reconnect" koanf:"reconnect"`
	REST               RESTConfig         `yaml:"rest" koanf:"rest"`
	Interactions       InteractionsConfig `yaml:"interactions" koanf:"interactions"`
	Commands           CommandsConfig     `yaml:"commands" koanf:"commands"`
	Status             StatusConfig       `yaml:"status" koanf:"status"`
	Log                LogConfig          `yaml:"log" koanf:"log"`
}

// ShardConfig selects which shards this process runs.
type ShardConfig struct {
	// Count is the total shard count. Zero uses the count recommended by GET /gateway/bot.
	Count int `yaml:"count" koanf:"count"`
	// IDs restricts this process to a subset of shards. Empty runs all of them.
	IDs []int `yaml:"ids" koanf:"ids"`
}

// GatewayConfig holds gateway session settings.
type GatewayConfig struct {
	HandshakeTimeout      time.Duration    `yaml:"handshake_timeout" koanf:"handshake_timeout"`
	KeepSessionOnShutdown bool             `yaml:"keep_session_on_shutdown" koanf:"keep_session_on_shutdown"`
	CloseCodes            CloseCodesConfig `yaml:"close_codes" koanf:"close_codes"`
}

// CloseCodesConfig is the close-code classification table. Codes not listed
// anywhere are treated as resumable.
type CloseCodesConfig struct {
	Resumable []int `yaml:"resumable" koanf:"resumable"`
	Reset     []int `yaml:"reset" koanf:"reset"`
	Fatal     []int `yaml:"fatal" koanf:"fatal"`
}

// ReconnectConfig holds the backoff parameters used between connection attempts.
type ReconnectConfig struct {
	MaxAttempts int           `yaml:"max_attempts" koanf:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" koanf:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" koanf:"max_delay"`
	Multiplier  float64       `yaml:"multiplier" koanf:"multiplier"`
	Jitter      float64       `yaml:"jitter" koanf:"jitter"`
}

// RESTConfig holds HTTP API client settings.
type RESTConfig struct {
	Timeout    time.Duration `yaml:"timeout" koanf:"timeout"`
	MaxRetries int           `yaml:"max_retries" koanf:"max_retries"`
	GlobalRate int           `yaml:"global_rate" koanf:"global_rate"`
}

// InteractionsConfig holds the reply deadlines enforced on interactions.
type InteractionsConfig struct {
	AckDeadline    time.Duration `yaml:"ack_deadline" koanf:"ack_deadline"`
	TokenTTL       time.Duration `yaml:"token_ttl" koanf:"token_ttl"`
	HandlerTimeout time.Duration `yaml:"handler_timeout" koanf:"handler_timeout"`
	ReplyOnError   bool          `yaml:"reply_on_error" koanf:"reply_on_error"`
}

// CommandsConfig maps command names to the scopes they are synced to.
type CommandsConfig struct {
	// Scopes maps a command name (or "*" for every command) to a list of
	// scopes: "*" for global, anything else is a guild ID. An empty map
	// syncs every registered command globally.
	Scopes      map[string][]string `yaml:"scopes" koanf:"scopes"`
	SyncOnStart bool                `yaml:"sync_on_start" koanf:"sync_on_start"`
}

// StatusConfig holds status server settings.
type StatusConfig struct {
	Enabled  bool `yaml:"enabled" koanf:"enabled"`
	Port     int  `yaml:"port" koanf:"port"`
	AllowAll bool `yaml:"allow_all" koanf:"allow_all"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string    `yaml:"level" koanf:"level"`
	Format LogFormat `yaml:"format" koanf:"format"`
}
