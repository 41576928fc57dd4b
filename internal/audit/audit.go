package audit

import "time"

// Action describes what happened to an interaction.
type Action string

const (
	ActionReceived      Action = "received"
	ActionResolved      Action = "resolved"
	ActionResolveFailed Action = "resolve_failed"
	ActionResponded     Action = "responded"
	ActionDeferred      Action = "deferred"
	ActionFollowup      Action = "followup"
	ActionExpired       Action = "expired"
	ActionTokenExpired  Action = "token_expired"
	ActionHandlerFailed Action = "handler_failed"
)

// Entry is a single audit trail record.
type Entry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	InteractionID string    `json:"interaction_id"`
	Action        Action    `json:"action"`
	UserID        string    `json:"user_id,omitempty"`
	GuildID       string    `json:"guild_id,omitempty"`
	CommandPath   string    `json:"command_path,omitempty"`
	ShardID       int       `json:"shard_id"`
	Detail        string    `json:"detail,omitempty"`
}
