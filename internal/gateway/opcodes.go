package gateway

import "encoding/json"

// Opcode is a gateway payload opcode.
type Opcode int

const (
	OpDispatch            Opcode = 0
	OpHeartbeat           Opcode = 1
	OpIdentify            Opcode = 2
	OpPresenceUpdate      Opcode = 3
	OpVoiceStateUpdate    Opcode = 4
	OpResume              Opcode = 6
	OpReconnect           Opcode = 7
	OpRequestGuildMembers Opcode = 8
	OpInvalidSession      Opcode = 9
	OpHello               Opcode = 10
	OpHeartbeatAck        Opcode = 11
)

func (o Opcode) String() string {
	switch o {
	case OpDispatch:
		return "dispatch"
	case OpHeartbeat:
		return "heartbeat"
	case OpIdentify:
		return "identify"
	case OpPresenceUpdate:
		return "presence_update"
	case OpVoiceStateUpdate:
		return "voice_state_update"
	case OpResume:
		return "resume"
	case OpReconnect:
		return "reconnect"
	case OpRequestGuildMembers:
		return "request_guild_members"
	case OpInvalidSession:
		return "invalid_session"
	case OpHello:
		return "hello"
	case OpHeartbeatAck:
		return "heartbeat_ack"
	default:
		return "unknown"
	}
}

// Payload is an inbound gateway frame. S and T are only set on dispatches.
type Payload struct {
	Op Opcode          `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
}

// outbound is a frame written by the client. D is always present, possibly null.
type outbound struct {
	Op Opcode `json:"op"`
	D  any    `json:"d"`
}

// Hello is the opcode 10 payload.
type Hello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

// IdentifyProperties describes the connecting client.
type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// Identify is the opcode 2 payload.
type Identify struct {
	Token          string             `json:"token"`
	Intents        Intent             `json:"intents"`
	Properties     IdentifyProperties `json:"properties"`
	Compress       bool               `json:"compress,omitempty"`
	LargeThreshold int                `json:"large_threshold,omitempty"`
	Shard          [2]int             `json:"shard"`
	Presence       *PresenceUpdate    `json:"presence,omitempty"`
}

// Resume is the opcode 6 payload.
type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

// Activity is one entry of a presence update.
type Activity struct {
	Name  string `json:"name"`
	Type  int    `json:"type"`
	URL   string `json:"url,omitempty"`
	State string `json:"state,omitempty"`
}

// PresenceUpdate is the opcode 3 payload.
type PresenceUpdate struct {
	Since      *int64     `json:"since"`
	Activities []Activity `json:"activities"`
	Status     string     `json:"status"`
	AFK        bool       `json:"afk"`
}

// VoiceStateUpdate is the opcode 4 payload. A nil ChannelID disconnects.
type VoiceStateUpdate struct {
	GuildID   string  `json:"guild_id"`
	ChannelID *string `json:"channel_id"`
	SelfMute  bool    `json:"self_mute"`
	SelfDeaf  bool    `json:"self_deaf"`
}

// readyFields is the part of READY the connection itself needs.
type readyFields struct {
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
}
