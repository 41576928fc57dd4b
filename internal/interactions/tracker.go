package interactions

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Tracker owns the Responders of interactions whose tokens are still valid.
type Tracker struct {
	client    REST
	appID     string
	deadlines Deadlines
	now       func() time.Time
	notify    func(Transition)
	logger    *zap.Logger

	mu     sync.Mutex
	active map[string]*Responder
	closed bool
}

// NewTracker creates a Tracker. appID is used when an interaction does not
// carry its application ID; notify, if set, observes every state change.
func NewTracker(client REST, appID string, deadlines Deadlines, notify func(Transition), logger *zap.Logger) *Tracker {
	if deadlines.Ack <= 0 {
		deadlines.Ack = DefaultDeadlines.Ack
	}
	if deadlines.Token <= 0 {
		deadlines.Token = DefaultDeadlines.Token
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		client:    client,
		appID:     appID,
		deadlines: deadlines,
		now:       time.Now,
		notify:    notify,
		logger:    logger.Named("interactions"),
		active:    make(map[string]*Responder),
	}
}

// Track starts a Responder for in. A redelivered interaction gets the
// existing Responder back with created false.
func (t *Tracker) Track(in *Interaction) (r *Responder, created bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.active[in.ID]; ok {
		return r, false
	}
	if t.closed {
		return nil, false
	}
	id := in.ID
	r = newResponder(in, t.appID, t.client, t.deadlines, t.now, t.notify, func() { t.forget(id) }, t.logger)
	t.active[id] = r
	return r, true
}

// Get returns the Responder of an active interaction.
func (t *Tracker) Get(id string) (*Responder, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.active[id]
	return r, ok
}

// Len returns the number of active interactions.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

func (t *Tracker) forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.active, id)
}

// Close tears down every active Responder. Track returns nil afterwards.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	rs := make([]*Responder, 0, len(t.active))
	for _, r := range t.active {
		rs = append(rs, r)
	}
	t.mu.Unlock()

	for _, r := range rs {
		r.Close()
	}
}
