package gateway

import (
	"fmt"
	"sort"
	"strings"
)

// Intent is the bitmask of event groups requested at identify time.
type Intent uint64

const (
	IntentGuilds                      Intent = 1 << 0
	IntentGuildMembers                Intent = 1 << 1
	IntentGuildModeration             Intent = 1 << 2
	IntentGuildExpressions            Intent = 1 << 3
	IntentGuildIntegrations           Intent = 1 << 4
	IntentGuildWebhooks               Intent = 1 << 5
	IntentGuildInvites                Intent = 1 << 6
	IntentGuildVoiceStates            Intent = 1 << 7
	IntentGuildPresences              Intent = 1 << 8
	IntentGuildMessages               Intent = 1 << 9
	IntentGuildMessageReactions       Intent = 1 << 10
	IntentGuildMessageTyping          Intent = 1 << 11
	IntentDirectMessages              Intent = 1 << 12
	IntentDirectMessageReactions      Intent = 1 << 13
	IntentDirectMessageTyping         Intent = 1 << 14
	IntentMessageContent              Intent = 1 << 15
	IntentGuildScheduledEvents        Intent = 1 << 16
	IntentAutoModerationConfiguration Intent = 1 << 20
	IntentAutoModerationExecution     Intent = 1 << 21
	IntentGuildMessagePolls           Intent = 1 << 24
	IntentDirectMessagePolls          Intent = 1 << 25

	// IntentsPrivileged must be enabled for the application before use.
	IntentsPrivileged = IntentGuildMembers | IntentGuildPresences | IntentMessageContent
)

var intentNames = map[string]Intent{
	"guilds":                        IntentGuilds,
	"guild_members":                 IntentGuildMembers,
	"guild_moderation":              IntentGuildModeration,
	"guild_expressions":             IntentGuildExpressions,
	"guild_integrations":            IntentGuildIntegrations,
	"guild_webhooks":                IntentGuildWebhooks,
	"guild_invites":                 IntentGuildInvites,
	"guild_voice_states":            IntentGuildVoiceStates,
	"guild_presences":               IntentGuildPresences,
	"guild_messages":                IntentGuildMessages,
	"guild_message_reactions":       IntentGuildMessageReactions,
	"guild_message_typing":          IntentGuildMessageTyping,
	"direct_messages":               IntentDirectMessages,
	"direct_message_reactions":      IntentDirectMessageReactions,
	"direct_message_typing":         IntentDirectMessageTyping,
	"message_content":               IntentMessageContent,
	"guild_scheduled_events":        IntentGuildScheduledEvents,
	"auto_moderation_configuration": IntentAutoModerationConfiguration,
	"auto_moderation_execution":     IntentAutoModerationExecution,
	"guild_message_polls":           IntentGuildMessagePolls,
	"direct_message_polls":          IntentDirectMessagePolls,
}

// ParseIntents combines intent names into a bitmask. "all" selects every
// intent, "default" every non-privileged one.
func ParseIntents(names []string) (Intent, error) {
	var out Intent
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case "":
			continue
		case "all":
			out |= allIntents()
		case "default":
			out |= allIntents() &^ IntentsPrivileged
		default:
			bit, ok := intentNames[name]
			if !ok {
				return 0, fmt.Errorf("unknown intent %q", raw)
			}
			out |= bit
		}
	}
	return out, nil
}

func allIntents() Intent {
	var all Intent
	for _, bit := range intentNames {
		all |= bit
	}
	return all
}

// Has reports whether every bit of other is set.
func (i Intent) Has(other Intent) bool {
	return i&other == other
}

// Privileged returns the privileged intents included in i.
func (i Intent) Privileged() Intent {
	return i & IntentsPrivileged
}

// Names returns the sorted names of the intents set in i.
func (i Intent) Names() []string {
	var names []string
	for name, bit := range intentNames {
		if i&bit != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
