package events

// Kind is the closed set of gateway dispatch events this module understands.
// Anything else arrives as KindUnknown with its raw name preserved.
type Kind int

const (
	KindUnknown Kind = iota
	KindReady
	KindResumed
	KindMessageCreate
	KindMessageUpdate
	KindMessageDelete
	KindMessageReactionAdd
	KindMessageReactionRemove
	KindInteractionCreate
	KindGuildCreate
	KindGuildUpdate
	KindGuildDelete
	KindGuildMemberAdd
	KindGuildMemberRemove
	KindChannelCreate
	KindChannelUpdate
	KindChannelDelete
	KindThreadCreate
	KindPresenceUpdate
	KindTypingStart
	KindVoiceStateUpdate
	KindVoiceServerUpdate
	KindApplicationCommandPermissionsUpdate

	kindCount
)

var kindNames = [kindCount]string{
	KindUnknown:                             "UNKNOWN",
	KindReady:                               "READY",
	KindResumed:                             "RESUMED",
	KindMessageCreate:                       "MESSAGE_CREATE",
	KindMessageUpdate:                       "MESSAGE_UPDATE",
	KindMessageDelete:                       "MESSAGE_DELETE",
	KindMessageReactionAdd:                  "MESSAGE_REACTION_ADD",
	KindMessageReactionRemove:               "MESSAGE_REACTION_REMOVE",
	KindInteractionCreate:                   "INTERACTION_CREATE",
	KindGuildCreate:                         "GUILD_CREATE",
	KindGuildUpdate:                         "GUILD_UPDATE",
	KindGuildDelete:                         "GUILD_DELETE",
	KindGuildMemberAdd:                      "GUILD_MEMBER_ADD",
	KindGuildMemberRemove:                   "GUILD_MEMBER_REMOVE",
	KindChannelCreate:                       "CHANNEL_CREATE",
	KindChannelUpdate:                       "CHANNEL_UPDATE",
	KindChannelDelete:                       "CHANNEL_DELETE",
	KindThreadCreate:                        "THREAD_CREATE",
	KindPresenceUpdate:                      "PRESENCE_UPDATE",
	KindTypingStart:                         "TYPING_START",
	KindVoiceStateUpdate:                    "VOICE_STATE_UPDATE",
	KindVoiceServerUpdate:                   "VOICE_SERVER_UPDATE",
	KindApplicationCommandPermissionsUpdate: "APPLICATION_COMMAND_PERMISSIONS_UPDATE",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, kindCount)
	for k := KindUnknown + 1; k < kindCount; k++ {
		m[kindNames[k]] = k
	}
	return m
}()

// ParseKind maps a dispatch event name to its Kind.
func ParseKind(name string) Kind {
	if k, ok := kindsByName[name]; ok {
		return k
	}
	return KindUnknown
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Kinds returns every known kind, KindUnknown excluded.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindUnknown + 1; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}
