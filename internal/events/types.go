package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is one decoded dispatch frame. Name keeps the wire event name so
// KindUnknown events can still be told apart.
type Event struct {
	Kind       Kind
	Name       string
	Shard      int
	Seq        int64
	Data       json.RawMessage
	ReceivedAt time.Time
}

// New builds an Event from a dispatch frame.
func New(name string, shard int, seq int64, data json.RawMessage) Event {
	return Event{
		Kind:       ParseKind(name),
		Name:       name,
		Shard:      shard,
		Seq:        seq,
		Data:       data,
		ReceivedAt: time.Now(),
	}
}

// User is a platform user.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	GlobalName    string `json:"global_name,omitempty"`
	Discriminator string `json:"discriminator,omitempty"`
	Bot           bool   `json:"bot,omitempty"`
}

// Application is the partial application object carried by READY.
type Application struct {
	ID    string `json:"id"`
	Flags int    `json:"flags"`
}

// UnavailableGuild is a guild that has not been streamed yet.
type UnavailableGuild struct {
	ID          string `json:"id"`
	Unavailable bool   `json:"unavailable"`
}

// Ready is the READY payload.
type Ready struct {
	Version          int                `json:"v"`
	User             User               `json:"user"`
	Guilds           []UnavailableGuild `json:"guilds"`
	SessionID        string             `json:"session_id"`
	ResumeGatewayURL string             `json:"resume_gateway_url"`
	Shard            []int              `json:"shard,omitempty"`
	Application      Application        `json:"application"`
}

// Message is the MESSAGE_CREATE / MESSAGE_UPDATE payload.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
	Author    User   `json:"author"`
	Content   string `json:"content"`
	Mentions  []User `json:"mentions,omitempty"`
	Timestamp string `json:"timestamp"`
	WebhookID string `json:"webhook_id,omitempty"`
}

// MessageDelete is the MESSAGE_DELETE payload.
type MessageDelete struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
}

// Reaction is the MESSAGE_REACTION_ADD / MESSAGE_REACTION_REMOVE payload.
type Reaction struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	GuildID   string `json:"guild_id,omitempty"`
	Emoji     struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name"`
	} `json:"emoji"`
}

// Guild is the subset of guild fields used by GUILD_* events.
type Guild struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Unavailable bool   `json:"unavailable,omitempty"`
	MemberCount int    `json:"member_count,omitempty"`
}

// Channel is the subset of channel fields used by CHANNEL_* and THREAD_* events.
type Channel struct {
	ID       string `json:"id"`
	Type     int    `json:"type"`
	GuildID  string `json:"guild_id,omitempty"`
	Name     string `json:"name,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
}

// Member is the GUILD_MEMBER_ADD / GUILD_MEMBER_REMOVE payload.
type Member struct {
	GuildID string `json:"guild_id"`
	User    User   `json:"user"`
	Nick    string `json:"nick,omitempty"`
}

// VoiceState is the VOICE_STATE_UPDATE payload.
type VoiceState struct {
	GuildID   string `json:"guild_id,omitempty"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// Decode unmarshals the event data into the typed payload for its kind.
// Kinds without a dedicated type, and KindUnknown, decode to map[string]any.
func (e Event) Decode() (any, error) {
	var v any
	switch e.Kind {
	case KindReady:
		v = &Ready{}
	case KindMessageCreate, KindMessageUpdate:
		v = &Message{}
	case KindMessageDelete:
		v = &MessageDelete{}
	case KindMessageReactionAdd, KindMessageReactionRemove:
		v = &Reaction{}
	case KindGuildCreate, KindGuildUpdate, KindGuildDelete:
		v = &Guild{}
	case KindGuildMemberAdd, KindGuildMemberRemove:
		v = &Member{}
	case KindChannelCreate, KindChannelUpdate, KindChannelDelete, KindThreadCreate:
		v = &Channel{}
	case KindVoiceStateUpdate:
		v = &VoiceState{}
	case KindResumed, KindInteractionCreate, KindPresenceUpdate, KindTypingStart,
		KindVoiceServerUpdate, KindApplicationCommandPermissionsUpdate, KindUnknown:
		m := map[string]any{}
		v = &m
	default:
		return nil, fmt.Errorf("decoding %s: no payload type for kind %d", e.Name, int(e.Kind))
	}

	if len(e.Data) == 0 || string(e.Data) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", e.Name, err)
	}
	return v, nil
}
