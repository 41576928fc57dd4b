package rest

import (
	"encoding/json"

	"github.com/ziadkadry99/shardgate/internal/commands"
	"github.com/ziadkadry99/shardgate/internal/events"
)

// GatewayBot is the response of GET /gateway/bot.
type GatewayBot struct {
	URL               string            `json:"url"`
	Shards            int               `json:"shards"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

// SessionStartLimit bounds how many identifies may happen and how fast.
type SessionStartLimit struct {
	Total          int `json:"total"`
	Remaining      int `json:"remaining"`
	ResetAfter     int `json:"reset_after"`
	MaxConcurrency int `json:"max_concurrency"`
}

// Application is the subset of GET /applications/@me used here.
type Application struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ResponseType is an interaction callback type.
type ResponseType int

const (
	ResponsePong                   ResponseType = 1
	ResponseChannelMessage         ResponseType = 4
	ResponseDeferredChannelMessage ResponseType = 5
	ResponseDeferredUpdateMessage  ResponseType = 6
	ResponseUpdateMessage          ResponseType = 7
	ResponseAutocompleteResult     ResponseType = 8
	ResponseModal                  ResponseType = 9
)

// MessageFlags is the message flag bitset.
type MessageFlags int

// FlagEphemeral makes a reply visible to the invoking user only.
const FlagEphemeral MessageFlags = 1 << 6

// InteractionResponse is the body of an interaction callback.
type InteractionResponse struct {
	Type ResponseType `json:"type"`
	Data *MessageData `json:"data,omitempty"`
}

// MessageData is a message body for callbacks, followups and edits.
type MessageData struct {
	TTS             bool              `json:"tts,omitempty"`
	Content         string            `json:"content,omitempty"`
	Embeds          []Embed           `json:"embeds,omitempty"`
	AllowedMentions *AllowedMentions  `json:"allowed_mentions,omitempty"`
	Flags           MessageFlags      `json:"flags,omitempty"`
	Components      []json.RawMessage `json:"components,omitempty"`
	Choices         []commands.Choice `json:"choices,omitempty"`
	CustomID        string            `json:"custom_id,omitempty"`
	Title           string            `json:"title,omitempty"`
}

// AllowedMentions controls which mentions ping.
type AllowedMentions struct {
	Parse       []string `json:"parse"`
	Users       []string `json:"users,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	RepliedUser bool     `json:"replied_user,omitempty"`
}

// Embed is a rich message embed.
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
}

// EmbedField is one name/value row of an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter is the footer of an embed.
type EmbedFooter struct {
	Text string `json:"text"`
}

// Message is a created or edited message.
type Message struct {
	ID        string       `json:"id"`
	ChannelID string       `json:"channel_id"`
	Content   string       `json:"content"`
	Flags     MessageFlags `json:"flags,omitempty"`
	Author    events.User  `json:"author"`
}
