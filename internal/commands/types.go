package commands

import (
	"encoding/json"

	"github.com/ziadkadry99/shardgate/internal/events"
)

// CommandType is the kind of application command.
type CommandType int

const (
	TypeChatInput CommandType = 1
	TypeUser      CommandType = 2
	TypeMessage   CommandType = 3
)

func (t CommandType) String() string {
	switch t {
	case TypeChatInput:
		return "chat_input"
	case TypeUser:
		return "user"
	case TypeMessage:
		return "message"
	default:
		return "unknown"
	}
}

// OptionType is the declared type of a command option.
type OptionType int

const (
	OptionSubcommand      OptionType = 1
	OptionSubcommandGroup OptionType = 2
	OptionString          OptionType = 3
	OptionInteger         OptionType = 4
	OptionBoolean         OptionType = 5
	OptionUser            OptionType = 6
	OptionChannel         OptionType = 7
	OptionRole            OptionType = 8
	OptionMentionable     OptionType = 9
	OptionNumber          OptionType = 10
	OptionAttachment      OptionType = 11
)

func (t OptionType) String() string {
	switch t {
	case OptionSubcommand:
		return "subcommand"
	case OptionSubcommandGroup:
		return "subcommand_group"
	case OptionString:
		return "string"
	case OptionInteger:
		return "integer"
	case OptionBoolean:
		return "boolean"
	case OptionUser:
		return "user"
	case OptionChannel:
		return "channel"
	case OptionRole:
		return "role"
	case OptionMentionable:
		return "mentionable"
	case OptionNumber:
		return "number"
	case OptionAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

// isValue reports whether t carries a value rather than nesting commands.
func (t OptionType) isValue() bool {
	return t >= OptionString && t <= OptionAttachment
}

// NodeKind is the position of a node in a command tree.
type NodeKind int

const (
	KindCommand NodeKind = iota
	KindGroup
	KindSubcommand
)

func (k NodeKind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindGroup:
		return "group"
	case KindSubcommand:
		return "subcommand"
	default:
		return "unknown"
	}
}

// Choice is one allowed value of a string, integer or number option.
type Choice struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// OptionSpec declares one value option of a leaf command.
type OptionSpec struct {
	Name         string
	Description  string
	Type         OptionType
	Required     bool
	Choices      []Choice
	MinValue     *float64
	MaxValue     *float64
	MinLength    *int
	MaxLength    *int
	ChannelTypes []int
	Autocomplete bool
}

// InteractionData is the data object of an application command interaction.
type InteractionData struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Type     CommandType   `json:"type"`
	Resolved *Resolved     `json:"resolved,omitempty"`
	Options  []OptionValue `json:"options,omitempty"`
	GuildID  string        `json:"guild_id,omitempty"`
	TargetID string        `json:"target_id,omitempty"`
}

// OptionValue is one entry of the nested option list sent by the platform.
type OptionValue struct {
	Name    string          `json:"name"`
	Type    OptionType      `json:"type"`
	Value   json.RawMessage `json:"value,omitempty"`
	Options []OptionValue   `json:"options,omitempty"`
	Focused bool            `json:"focused,omitempty"`
}

// Resolved holds the full objects behind the ids referenced by options.
type Resolved struct {
	Users       map[string]events.User     `json:"users,omitempty"`
	Members     map[string]Member          `json:"members,omitempty"`
	Roles       map[string]Role            `json:"roles,omitempty"`
	Channels    map[string]Channel         `json:"channels,omitempty"`
	Messages    map[string]json.RawMessage `json:"messages,omitempty"`
	Attachments map[string]Attachment      `json:"attachments,omitempty"`
}

// Member is a partial guild member.
type Member struct {
	Nick        string   `json:"nick,omitempty"`
	Roles       []string `json:"roles"`
	JoinedAt    string   `json:"joined_at,omitempty"`
	Permissions string   `json:"permissions,omitempty"`
}

// Role is a guild role.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Permissions string `json:"permissions"`
	Mentionable bool   `json:"mentionable"`
}

// Channel is a partial channel.
type Channel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        int    `json:"type"`
	Permissions string `json:"permissions,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
}

// Attachment is an uploaded file.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Size        int    `json:"size"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}
