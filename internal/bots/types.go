package bots

import (
	"github.com/ziadkadry99/shardgate/internal/gateway"
	"github.com/ziadkadry99/shardgate/internal/interactions"
)

// Option customizes a Bot.
type Option func(*Bot)

// WithSessionStore persists resume state in s instead of memory.
func WithSessionStore(s gateway.SessionStore) Option {
	return func(b *Bot) { b.store = s }
}

// WithAuditor records the interaction audit trail to a.
func WithAuditor(a interactions.Auditor) Option {
	return func(b *Bot) { b.auditor = a }
}

// WithDialer replaces the websocket dialer used by every shard.
func WithDialer(d gateway.Dialer) Option {
	return func(b *Bot) { b.dialer = d }
}

// WithPresence sets the presence sent with identify.
func WithPresence(p gateway.PresenceUpdate) Option {
	return func(b *Bot) { b.presence = &p }
}
