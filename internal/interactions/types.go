package interactions

import (
	"encoding/json"
	"time"

	"github.com/ziadkadry99/shardgate/internal/commands"
	"github.com/ziadkadry99/shardgate/internal/events"
)

// Type is the interaction type.
type Type int

const (
	TypePing               Type = 1
	TypeApplicationCommand Type = 2
	TypeMessageComponent   Type = 3
	TypeAutocomplete       Type = 4
	TypeModalSubmit        Type = 5
)

func (t Type) String() string {
	switch t {
	case TypePing:
		return "ping"
	case TypeApplicationCommand:
		return "application_command"
	case TypeMessageComponent:
		return "message_component"
	case TypeAutocomplete:
		return "autocomplete"
	case TypeModalSubmit:
		return "modal_submit"
	default:
		return "unknown"
	}
}

// Member is the invoking guild member.
type Member struct {
	User *events.User `json:"user,omitempty"`
	commands.Member
}

// Interaction is an INTERACTION_CREATE payload plus the bookkeeping added
// on receipt.
type Interaction struct {
	ID            string          `json:"id"`
	ApplicationID string          `json:"application_id"`
	Type          Type            `json:"type"`
	GuildID       string          `json:"guild_id,omitempty"`
	ChannelID     string          `json:"channel_id,omitempty"`
	Member        *Member         `json:"member,omitempty"`
	User          *events.User    `json:"user,omitempty"`
	Token         string          `json:"token"`
	Version       int             `json:"version"`
	Locale        string          `json:"locale,omitempty"`
	GuildLocale   string          `json:"guild_locale,omitempty"`
	RawData       json.RawMessage `json:"data,omitempty"`

	// Data is RawData decoded for command and autocomplete interactions.
	Data commands.InteractionData `json:"-"`
	// Path is the resolved command path, empty until resolution succeeds.
	Path       []string  `json:"-"`
	Shard      int       `json:"-"`
	ReceivedAt time.Time `json:"-"`
}

// Decode parses an INTERACTION_CREATE payload.
func Decode(raw json.RawMessage) (*Interaction, error) {
	var in Interaction
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	if len(in.RawData) > 0 && (in.Type == TypeApplicationCommand || in.Type == TypeAutocomplete) {
		if err := json.Unmarshal(in.RawData, &in.Data); err != nil {
			return nil, err
		}
	}
	return &in, nil
}

// Author returns the invoking user, from the member object in guilds.
func (in *Interaction) Author() *events.User {
	if in.Member != nil && in.Member.User != nil {
		return in.Member.User
	}
	return in.User
}

// AuthorID returns the invoking user's ID, or "".
func (in *Interaction) AuthorID() string {
	if u := in.Author(); u != nil {
		return u.ID
	}
	return ""
}
