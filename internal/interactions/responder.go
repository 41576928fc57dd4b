package interactions

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/shardgate/internal/commands"
	"github.com/ziadkadry99/shardgate/internal/rest"
)

// REST is the subset of the API client used to reply to interactions.
type REST interface {
	CreateInteractionResponse(ctx context.Context, interactionID, token string, resp rest.InteractionResponse) error
	EditOriginalResponse(ctx context.Context, appID, token string, data rest.MessageData) (*rest.Message, error)
	DeleteOriginalResponse(ctx context.Context, appID, token string) error
	CreateFollowup(ctx context.Context, appID, token string, data rest.MessageData) (*rest.Message, error)
	EditFollowup(ctx context.Context, appID, token, messageID string, data rest.MessageData) (*rest.Message, error)
	DeleteFollowup(ctx context.Context, appID, token, messageID string) error
}

// Deadlines are the platform's reply windows.
type Deadlines struct {
	// Ack is how long after receipt the initial response must be sent.
	Ack time.Duration
	// Token is how long the interaction token stays valid.
	Token time.Duration
}

// DefaultDeadlines are the platform's fixed windows.
var DefaultDeadlines = Deadlines{Ack: 3 * time.Second, Token: 15 * time.Minute}

// Transition is one state change of a Responder.
type Transition struct {
	Interaction *Interaction
	From        State
	To          State
	// MessageID is set for followups.
	MessageID string
	At        time.Time
}

type op struct {
	ctx context.Context
	fn  func(context.Context) error
	res chan error
}

// Responder drives the reply protocol of one interaction. Its operations
// run one at a time on a dedicated goroutine in the order they were
// submitted, so an edit issued before a followup reaches the API first.
type Responder struct {
	in      *Interaction
	appID   string
	client  REST
	now     func() time.Time
	ackBy   time.Time
	expires time.Time
	notify  func(Transition)
	logger  *zap.Logger

	mu        sync.Mutex
	state     State
	acking    bool
	closed    bool
	followups []string

	qmu     sync.Mutex
	stopped bool
	ops     chan op
	done    chan struct{}
	exited  chan struct{}

	ackTimer   *time.Timer
	tokenTimer *time.Timer
	closeOnce  sync.Once
	onClose    func()
}

func newResponder(in *Interaction, appID string, client REST, d Deadlines, now func() time.Time,
	notify func(Transition), onClose func(), logger *zap.Logger) *Responder {
	if in.ApplicationID != "" {
		appID = in.ApplicationID
	}
	if in.ReceivedAt.IsZero() {
		in.ReceivedAt = now()
	}
	r := &Responder{
		in:      in,
		appID:   appID,
		client:  client,
		now:     now,
		ackBy:   in.ReceivedAt.Add(d.Ack),
		expires: in.ReceivedAt.Add(d.Token),
		notify:  notify,
		onClose: onClose,
		logger:  logger.With(zap.String("interaction", in.ID)),
		ops:     make(chan op),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go r.run()
	r.ackTimer = time.AfterFunc(r.ackBy.Sub(now()), r.expireAck)
	r.tokenTimer = time.AfterFunc(r.expires.Sub(now()), r.expireToken)
	return r
}

// Interaction returns the interaction being answered.
func (r *Responder) Interaction() *Interaction { return r.in }

// State returns the current state.
func (r *Responder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Followups returns the IDs of followups created so far.
func (r *Responder) Followups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.followups)
}

// AckDeadline returns when the initial response is due.
func (r *Responder) AckDeadline() time.Time { return r.ackBy }

// TokenExpiry returns when the token stops being valid.
func (r *Responder) TokenExpiry() time.Time { return r.expires }

// SendResponse sends the initial reply with content. Valid only while Pending.
func (r *Responder) SendResponse(ctx context.Context, data rest.MessageData) error {
	return r.ack(ctx, StateResponded, rest.InteractionResponse{Type: rest.ResponseChannelMessage, Data: &data})
}

// SendDeferredResponse acknowledges the interaction without content. The
// reply follows through EditResponse.
func (r *Responder) SendDeferredResponse(ctx context.Context, ephemeral bool) error {
	resp := rest.InteractionResponse{Type: rest.ResponseDeferredChannelMessage}
	if ephemeral {
		resp.Data = &rest.MessageData{Flags: rest.FlagEphemeral}
	}
	return r.ack(ctx, StateDeferred, resp)
}

// SendAutocomplete answers an autocomplete interaction with choices.
func (r *Responder) SendAutocomplete(ctx context.Context, choices []commands.Choice) error {
	if choices == nil {
		choices = []commands.Choice{}
	}
	return r.ack(ctx, StateResponded, rest.InteractionResponse{
		Type: rest.ResponseAutocompleteResult,
		Data: &rest.MessageData{Choices: choices},
	})
}

func (r *Responder) ack(ctx context.Context, to State, resp rest.InteractionResponse) error {
	return r.do(ctx, func(ctx context.Context) error {
		r.mu.Lock()
		t, err := r.check()
		if err == nil && r.state != StatePending {
			err = ErrAlreadyResponded
		}
		if err == nil {
			r.acking = true
		}
		r.mu.Unlock()
		r.emit(t)
		if err != nil {
			return err
		}

		err = r.client.CreateInteractionResponse(ctx, r.in.ID, r.in.Token, resp)

		r.mu.Lock()
		r.acking = false
		switch {
		case err == nil:
			t = r.transition(to, "")
		case !r.now().Before(r.ackBy):
			t = r.transition(StateExpired, "")
		}
		r.mu.Unlock()
		r.emit(t)
		if err != nil {
			return fmt.Errorf("sending initial response: %w", err)
		}
		return nil
	})
}

// EditResponse edits the original reply. It does not change the state.
func (r *Responder) EditResponse(ctx context.Context, data rest.MessageData) (*rest.Message, error) {
	var msg *rest.Message
	err := r.do(ctx, func(ctx context.Context) error {
		if err := r.checkAcked(); err != nil {
			return err
		}
		var err error
		if msg, err = r.client.EditOriginalResponse(ctx, r.appID, r.in.Token, data); err != nil {
			return fmt.Errorf("editing response: %w", err)
		}
		return nil
	})
	return msg, err
}

// DeleteResponse deletes the original reply. It does not change the state.
func (r *Responder) DeleteResponse(ctx context.Context) error {
	return r.do(ctx, func(ctx context.Context) error {
		if err := r.checkAcked(); err != nil {
			return err
		}
		if err := r.client.DeleteOriginalResponse(ctx, r.appID, r.in.Token); err != nil {
			return fmt.Errorf("deleting response: %w", err)
		}
		return nil
	})
}

// SendFollowup creates an additional message and returns its ID.
func (r *Responder) SendFollowup(ctx context.Context, data rest.MessageData) (string, error) {
	var id string
	err := r.do(ctx, func(ctx context.Context) error {
		if err := r.checkAcked(); err != nil {
			return err
		}
		msg, err := r.client.CreateFollowup(ctx, r.appID, r.in.Token, data)
		if err != nil {
			return fmt.Errorf("sending followup: %w", err)
		}
		id = msg.ID

		r.mu.Lock()
		r.followups = append(r.followups, id)
		t := r.transition(StateFollowedUp, id)
		r.mu.Unlock()
		r.emit(t)
		return nil
	})
	return id, err
}

// EditFollowup edits a followup previously returned by SendFollowup.
func (r *Responder) EditFollowup(ctx context.Context, id string, data rest.MessageData) (*rest.Message, error) {
	var msg *rest.Message
	err := r.do(ctx, func(ctx context.Context) error {
		if err := r.checkFollowup(id); err != nil {
			return err
		}
		var err error
		if msg, err = r.client.EditFollowup(ctx, r.appID, r.in.Token, id, data); err != nil {
			return fmt.Errorf("editing followup %s: %w", id, err)
		}
		return nil
	})
	return msg, err
}

// DeleteFollowup deletes a followup previously returned by SendFollowup.
func (r *Responder) DeleteFollowup(ctx context.Context, id string) error {
	return r.do(ctx, func(ctx context.Context) error {
		if err := r.checkFollowup(id); err != nil {
			return err
		}
		if err := r.client.DeleteFollowup(ctx, r.appID, r.in.Token, id); err != nil {
			return fmt.Errorf("deleting followup %s: %w", id, err)
		}
		r.mu.Lock()
		r.followups = slices.DeleteFunc(r.followups, func(f string) bool { return f == id })
		r.mu.Unlock()
		return nil
	})
}

func (r *Responder) checkAcked() error {
	r.mu.Lock()
	t, err := r.check()
	if err == nil && r.state == StatePending {
		err = fmt.Errorf("%w: no initial response sent", ErrInvalidState)
	}
	r.mu.Unlock()
	r.emit(t)
	return err
}

func (r *Responder) checkFollowup(id string) error {
	if err := r.checkAcked(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(r.followups, id) {
		return fmt.Errorf("%w: %s", ErrUnknownFollowup, id)
	}
	return nil
}

// check applies the deadlines and fails for terminal states. It may return
// a transition to emit once r.mu is released.
func (r *Responder) check() (*Transition, error) {
	if r.state == StateTokenExpired {
		return nil, ErrTokenExpired
	}
	now := r.now()
	if r.closed {
		if !now.Before(r.expires) {
			return nil, ErrTokenExpired
		}
		return nil, ErrClosed
	}
	if !now.Before(r.expires) {
		// The worker running this check cannot wait for itself to exit.
		go r.Close()
		return r.transition(StateTokenExpired, ""), ErrTokenExpired
	}
	if r.state == StateExpired {
		return nil, ErrInteractionExpired
	}
	if r.state == StatePending && !r.acking && !now.Before(r.ackBy) {
		return r.transition(StateExpired, ""), ErrInteractionExpired
	}
	return nil, nil
}

// transition must be called with r.mu held.
func (r *Responder) transition(to State, messageID string) *Transition {
	if r.state == to && to != StateFollowedUp {
		return nil
	}
	t := &Transition{Interaction: r.in, From: r.state, To: to, MessageID: messageID, At: r.now()}
	r.state = to
	return t
}

func (r *Responder) emit(t *Transition) {
	if t == nil {
		return
	}
	r.logger.Debug("interaction state changed",
		zap.Stringer("from", t.From),
		zap.Stringer("to", t.To),
	)
	if r.notify != nil {
		r.notify(*t)
	}
}

func (r *Responder) expireAck() {
	r.mu.Lock()
	var t *Transition
	if !r.closed && r.state == StatePending && !r.acking {
		t = r.transition(StateExpired, "")
	}
	r.mu.Unlock()
	if t != nil {
		r.logger.Warn("interaction not acknowledged in time", zap.Time("deadline", r.ackBy))
	}
	r.emit(t)
}

func (r *Responder) expireToken() {
	r.mu.Lock()
	var t *Transition
	if !r.closed {
		t = r.transition(StateTokenExpired, "")
	}
	r.mu.Unlock()
	r.emit(t)
	r.Close()
}

// Close tears the responder down. Operations still queued fail and later
// calls return ErrTokenExpired or ErrClosed.
func (r *Responder) Close() {
	r.closeOnce.Do(func() {
		r.ackTimer.Stop()
		r.tokenTimer.Stop()

		r.qmu.Lock()
		r.stopped = true
		close(r.done)
		r.qmu.Unlock()
		<-r.exited

		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		if r.onClose != nil {
			r.onClose()
		}
	})
}

func (r *Responder) closedErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateTokenExpired || !r.now().Before(r.expires) {
		return ErrTokenExpired
	}
	return ErrClosed
}

func (r *Responder) do(ctx context.Context, fn func(context.Context) error) error {
	o := op{ctx: ctx, fn: fn, res: make(chan error, 1)}

	r.qmu.Lock()
	if r.stopped {
		r.qmu.Unlock()
		return r.closedErr()
	}
	select {
	case r.ops <- o:
	case <-ctx.Done():
		r.qmu.Unlock()
		return ctx.Err()
	}
	r.qmu.Unlock()
	return <-o.res
}

func (r *Responder) run() {
	defer close(r.exited)
	for {
		select {
		case o := <-r.ops:
			if err := o.ctx.Err(); err != nil {
				o.res <- err
				continue
			}
			o.res <- o.fn(o.ctx)
		case <-r.done:
			return
		}
	}
}
