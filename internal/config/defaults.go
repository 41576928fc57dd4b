package config

import "time"

// DefaultIntents are requested when the config names none.
var DefaultIntents = []string{"guilds", "guild_messages", "direct_messages"}

// Default close-code classification, sourced from the platform's gateway
// close event codes. 1000/1001 invalidate the session on the server side.
var (
	DefaultResumableCloseCodes = []int{4000, 4001, 4002, 4003, 4005, 4008}
	DefaultResetCloseCodes     = []int{1000, 1001, 4007, 4009, 4011}
	DefaultFatalCloseCodes     = []int{4004, 4010, 4012, 4013, 4014}
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		APIVersion: 10,
		APIBaseURL: "https://discord.com/api",
		Intents:    append([]string(nil), DefaultIntents...),
		DataDir:    ".shardgate",
		Gateway: GatewayConfig{
			HandshakeTimeout: 20 * time.Second,
			CloseCodes: CloseCodesConfig{
				Resumable: append([]int(nil), DefaultResumableCloseCodes...),
				Reset:     append([]int(nil), DefaultResetCloseCodes...),
				Fatal:     append([]int(nil), DefaultFatalCloseCodes...),
			},
		},
		Reconnect: ReconnectConfig{
			MaxAttempts: 10,
			BaseDelay:   time.Second,
			MaxDelay:    2 * time.Minute,
			Multiplier:  2.0,
			Jitter:      0.2,
		},
		REST: RESTConfig{
			Timeout:    15 * time.Second,
			MaxRetries: 3,
			GlobalRate: 50,
		},
		Interactions: InteractionsConfig{
			AckDeadline:    3 * time.Second,
			TokenTTL:       15 * time.Minute,
			HandlerTimeout: 5 * time.Minute,
			ReplyOnError:   true,
		},
		Status: StatusConfig{
			Enabled: true,
			Port:    8089,
		},
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatJSON,
		},
	}
}
