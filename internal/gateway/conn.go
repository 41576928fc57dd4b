package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/shardgate/internal/events"
)

// State is the protocol state of a Conn.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateIdentifying
	StateResuming
	StateReady
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateIdentifying:
		return "identifying"
	case StateResuming:
		return "resuming"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options is everything one shard connection needs, fixed at construction.
type Options struct {
	Token                 string
	Intents               Intent
	ShardID               int
	ShardCount            int
	URL                   string
	APIVersion            int
	Compress              bool
	HandshakeTimeout      time.Duration
	KeepSessionOnShutdown bool
	Classifier            *Classifier
	Backoff               Backoff
	Presence              *PresenceUpdate
	Properties            IdentifyProperties
}

func (o *Options) setDefaults() {
	if o.ShardCount <= 0 {
		o.ShardCount = 1
	}
	if o.APIVersion == 0 {
		o.APIVersion = 10
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 20 * time.Second
	}
	if o.Backoff.MaxAttempts == 0 {
		o.Backoff = DefaultBackoff()
	}
	if o.Properties.OS == "" {
		o.Properties = IdentifyProperties{OS: runtime.GOOS, Browser: "shardgate", Device: "shardgate"}
	}
}

// EventSink receives dispatch events in arrival order. Publish runs on the
// connection loop, so it must not block for long.
type EventSink interface {
	Publish(ctx context.Context, ev events.Event)
}

// Status is a point-in-time view of a Conn, safe to read from any goroutine.
type Status struct {
	Shard      int       `json:"shard"`
	ShardCount int       `json:"shard_count"`
	State      string    `json:"state"`
	Seq        *int64    `json:"seq,omitempty"`
	HasSession bool      `json:"has_session"`
	LatencyMS  int64     `json:"latency_ms"`
	Reconnects int       `json:"reconnects"`
	Since      time.Time `json:"since"`
}

type outboundReq struct {
	data []byte
	errc chan error
}

type inbound struct {
	data []byte
	err  error
}

// Conn owns one gateway websocket session for one shard. Run drives the
// connect, identify, resume and reconnect state machine; all writes to the
// socket happen on that loop.
type Conn struct {
	opts   Options
	dialer Dialer
	sink   EventSink
	resume *ResumeManager
	logger *zap.Logger

	state    atomic.Int32
	status   atomic.Pointer[Status]
	running  atomic.Bool
	outbound chan outboundReq
	closed   chan struct{}

	// Owned by the Run loop.
	heart      HeartbeatState
	since      time.Time
	reconnects int
}

// NewConn creates a connection for one shard. A nil store keeps resume
// state in memory.
func NewConn(opts Options, dialer Dialer, sink EventSink, store SessionStore, logger *zap.Logger) *Conn {
	opts.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	if dialer == nil {
		dialer = &WebsocketDialer{HandshakeTimeout: opts.HandshakeTimeout, Compress: opts.Compress}
	}
	if store == nil {
		store = NewMemoryStore()
	}
	logger = logger.Named("gateway").With(zap.Int("shard", opts.ShardID))
	c := &Conn{
		opts:     opts,
		dialer:   dialer,
		sink:     sink,
		resume:   NewResumeManager(opts.ShardID, opts.ShardCount, store, logger),
		logger:   logger,
		outbound: make(chan outboundReq),
		closed:   make(chan struct{}),
		since:    time.Now(),
	}
	c.publishStatus()
	return c
}

// ShardID returns the shard index of c.
func (c *Conn) ShardID() int { return c.opts.ShardID }

// State returns the current protocol state.
func (c *Conn) State() State { return State(c.state.Load()) }

// Status returns the latest status snapshot.
func (c *Conn) Status() Status { return *c.status.Load() }

// Done is closed once Run has returned.
func (c *Conn) Done() <-chan struct{} { return c.closed }

func (c *Conn) setState(s State) {
	prev := c.State()
	if prev == StateClosed || prev == s {
		return
	}
	c.state.Store(int32(s))
	c.since = time.Now()
	c.publishStatus()
	if s == StateReady || s == StateClosed {
		c.logger.Info("state changed", zap.Stringer("from", prev), zap.Stringer("to", s))
	} else {
		c.logger.Debug("state changed", zap.Stringer("from", prev), zap.Stringer("to", s))
	}
}

func (c *Conn) publishStatus() {
	st := &Status{
		Shard:      c.opts.ShardID,
		ShardCount: c.opts.ShardCount,
		State:      c.State().String(),
		HasSession: c.resume.SessionID() != "",
		LatencyMS:  c.heart.Latency().Milliseconds(),
		Reconnects: c.reconnects,
		Since:      c.since,
	}
	if seq, ok := c.resume.Seq(); ok {
		st.Seq = &seq
	}
	c.status.Store(st)
}

// Send writes an arbitrary frame through the connection loop. It fails with
// ErrNotConnected unless the session is ready.
func (c *Conn) Send(ctx context.Context, op Opcode, d any) error {
	if c.State() == StateClosed {
		return ErrClosed
	}
	if c.State() != StateReady {
		return ErrNotConnected
	}
	data, err := json.Marshal(outbound{Op: op, D: d})
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", op, err)
	}
	req := outboundReq{data: data, errc: make(chan error, 1)}
	select {
	case c.outbound <- req:
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdatePresence sends an opcode 3 presence update.
func (c *Conn) UpdatePresence(ctx context.Context, p PresenceUpdate) error {
	if p.Activities == nil {
		p.Activities = []Activity{}
	}
	return c.Send(ctx, OpPresenceUpdate, p)
}

// UpdateVoiceState sends an opcode 4 voice state update.
func (c *Conn) UpdateVoiceState(ctx context.Context, v VoiceStateUpdate) error {
	return c.Send(ctx, OpVoiceStateUpdate, v)
}

// Run connects and keeps the shard connected until ctx is cancelled, a
// fatal close code is received, or the reconnect ceiling is reached.
// Cancellation returns nil. Run may be called once.
func (c *Conn) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("gateway: Run called more than once")
	}
	defer close(c.closed)
	defer c.setState(StateClosed)

	if err := c.resume.Load(ctx); err != nil {
		c.logger.Warn("loading stored session", zap.Error(err))
	}

	attempt := 0
	dropped := false
	for {
		if dropped || c.resume.Resumable() {
			c.setState(StateReconnecting)
		}
		if !c.resume.Resumable() {
			c.setState(StateConnecting)
		}

		reachedReady, err := c.runSession(ctx)
		if ctx.Err() != nil {
			c.persist(ctx)
			return nil
		}

		var fatal *FatalError
		switch {
		case errors.As(err, &fatal):
			c.logger.Error("gateway rejected the session", zap.Int("code", fatal.Code), zap.String("reason", fatal.Reason))
			c.resume.Clear()
			c.persist(ctx)
			return err
		case errors.Is(err, errReset):
			c.logger.Info("session reset", zap.Error(err))
			c.resume.Clear()
		case errors.Is(err, errResume):
			c.logger.Info("session interrupted", zap.Error(err))
		default:
			c.logger.Warn("connection failed", zap.Error(err), zap.Int("attempt", attempt+1))
		}
		c.persist(ctx)

		dropped = true
		c.reconnects++
		var delay time.Duration
		if reachedReady {
			attempt = 0
			if errors.Is(err, errReset) {
				delay = c.opts.Backoff.Delay(1)
			}
		} else {
			attempt++
			if c.opts.Backoff.Exhausted(attempt) {
				return fmt.Errorf("%w: shard %d gave up after %d attempts: %w", ErrConnectivity, c.opts.ShardID, attempt, err)
			}
			delay = c.opts.Backoff.Delay(attempt)
		}
		if delay > 0 {
			c.logger.Debug("backing off", zap.Duration("delay", delay))
			if !c.wait(ctx, delay) {
				c.persist(ctx)
				return nil
			}
		}
	}
}

// wait sleeps for d, refusing outbound frames meanwhile. It returns false
// if ctx ends first.
func (c *Conn) wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
			return true
		case req := <-c.outbound:
			req.errc <- ErrNotConnected
		}
	}
}

func (c *Conn) persist(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.resume.Persist(ctx); err != nil {
		c.logger.Warn("persisting session", zap.Error(err))
	}
}

// runSession runs one websocket connection from dial to disconnect. The
// returned error says how the next session should start.
func (c *Conn) runSession(ctx context.Context) (ready bool, err error) {
	resuming := c.resume.Resumable()
	target := c.opts.URL
	if resuming && c.resume.ResumeURL() != "" {
		target = c.resume.ResumeURL()
	}
	u, err := gatewayURL(target, c.opts.APIVersion)
	if err != nil {
		return false, err
	}

	tr, err := c.dialer.Dial(ctx, u)
	if err != nil {
		return false, err
	}

	frames := make(chan inbound)
	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go readLoop(tr, frames, stop, readerDone)

	var hb *heartbeater
	closeWith := CloseResumable
	defer func() {
		if hb != nil {
			hb.Stop()
		}
		close(stop)
		_ = tr.Close(closeWith)
		<-readerDone
		c.heart = HeartbeatState{}
	}()

	helloTimer := time.NewTimer(c.opts.HandshakeTimeout)
	defer helloTimer.Stop()

	var fire <-chan struct{}
	for {
		select {
		case <-ctx.Done():
			if c.opts.KeepSessionOnShutdown {
				closeWith = CloseKeepSession
			} else {
				closeWith = CloseNormal
				c.resume.Clear()
			}
			return ready, ctx.Err()

		case <-helloTimer.C:
			return false, fmt.Errorf("no hello within %s", c.opts.HandshakeTimeout)

		case <-fire:
			if c.heart.Missed() {
				c.logger.Warn("heartbeat ack missed, reconnecting")
				return ready, fmt.Errorf("%w: heartbeat ack missed", errResume)
			}
			if err := c.beat(tr); err != nil {
				return ready, fmt.Errorf("writing heartbeat: %w", err)
			}

		case req := <-c.outbound:
			if c.State() != StateReady {
				req.errc <- ErrNotConnected
				continue
			}
			req.errc <- tr.WriteFrame(req.data)

		case in := <-frames:
			if in.err != nil {
				return ready, c.classifyDisconnect(in.err)
			}

			var p Payload
			if err := json.Unmarshal(in.data, &p); err != nil {
				return ready, fmt.Errorf("decoding frame: %w", err)
			}

			switch p.Op {
			case OpHello:
				var h Hello
				if err := json.Unmarshal(p.D, &h); err != nil || h.HeartbeatInterval <= 0 {
					return false, fmt.Errorf("invalid hello payload: %s", p.D)
				}
				helloTimer.Stop()
				c.heart.Interval = time.Duration(h.HeartbeatInterval) * time.Millisecond
				if hb == nil {
					hb = startHeartbeat(c.heart.Interval, firstBeat(c.heart.Interval))
					fire = hb.fire
				}
				if err := c.handshake(tr, resuming); err != nil {
					return false, err
				}

			case OpHeartbeat:
				if err := c.beat(tr); err != nil {
					return ready, fmt.Errorf("answering heartbeat request: %w", err)
				}

			case OpHeartbeatAck:
				c.heart.Acked(time.Now())
				c.publishStatus()

			case OpDispatch:
				if c.dispatch(ctx, p) {
					ready = true
				}

			case OpReconnect:
				return ready, fmt.Errorf("%w: server requested reconnect", errResume)

			case OpInvalidSession:
				var resumable bool
				_ = json.Unmarshal(p.D, &resumable)
				c.logger.Warn("invalid session", zap.Bool("resumable", resumable))
				if resumable && c.resume.Resumable() {
					return ready, fmt.Errorf("%w: invalid session", errResume)
				}
				return ready, fmt.Errorf("%w: invalid session", errReset)

			default:
				c.logger.Debug("ignoring frame", zap.Stringer("op", p.Op))
			}
		}
	}
}

func readLoop(tr Transport, out chan<- inbound, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		data, err := tr.ReadFrame()
		select {
		case out <- inbound{data: data, err: err}:
		case <-stop:
			return
		}
		if err != nil {
			return
		}
	}
}

func (c *Conn) classifyDisconnect(err error) error {
	code := closeCode(err)
	switch c.opts.Classifier.Classify(code) {
	case ClassFatal:
		return &FatalError{Shard: c.opts.ShardID, Code: code, Reason: CloseReason(code)}
	case ClassReset:
		return fmt.Errorf("%w: closed with %d (%s)", errReset, code, CloseReason(code))
	default:
		if code == 0 {
			return fmt.Errorf("reading frame: %w", err)
		}
		return fmt.Errorf("%w: closed with %d (%s)", errResume, code, CloseReason(code))
	}
}

// handshake sends resume when a session is stored, identify otherwise.
func (c *Conn) handshake(tr Transport, resuming bool) error {
	if resuming {
		c.setState(StateResuming)
		seq, _ := c.resume.Seq()
		return c.write(tr, OpResume, Resume{
			Token:     c.opts.Token,
			SessionID: c.resume.SessionID(),
			Seq:       seq,
		})
	}
	c.setState(StateIdentifying)
	return c.write(tr, OpIdentify, Identify{
		Token:      c.opts.Token,
		Intents:    c.opts.Intents,
		Properties: c.opts.Properties,
		Compress:   c.opts.Compress,
		Shard:      [2]int{c.opts.ShardID, c.opts.ShardCount},
		Presence:   c.opts.Presence,
	})
}

// dispatch applies the sequence number and forwards the event. It returns
// true when the frame completed a handshake.
func (c *Conn) dispatch(ctx context.Context, p Payload) bool {
	var seq int64
	if p.S != nil {
		seq = *p.S
		if !c.resume.Observe(seq) {
			c.logger.Debug("dropping replayed dispatch", zap.String("event", p.T), zap.Int64("seq", seq))
			return false
		}
	}

	completed := false
	switch p.T {
	case "READY":
		var r readyFields
		if err := json.Unmarshal(p.D, &r); err != nil {
			c.logger.Warn("decoding READY", zap.Error(err))
		}
		c.resume.Ready(r.SessionID, r.ResumeGatewayURL)
		c.setState(StateReady)
		c.persist(ctx)
		completed = true
	case "RESUMED":
		c.setState(StateReady)
		c.persist(ctx)
		completed = true
	}
	c.publishStatus()

	c.logger.Debug("dispatch", zap.String("event", p.T), zap.Int64("seq", seq))
	if c.sink != nil {
		c.sink.Publish(ctx, events.New(p.T, c.opts.ShardID, seq, p.D))
	}
	return completed
}

func (c *Conn) beat(tr Transport) error {
	var d any
	if seq, ok := c.resume.Seq(); ok {
		d = seq
	}
	if err := c.write(tr, OpHeartbeat, d); err != nil {
		return err
	}
	c.heart.Sent(time.Now())
	return nil
}

func (c *Conn) write(tr Transport, op Opcode, d any) error {
	data, err := json.Marshal(outbound{Op: op, D: d})
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", op, err)
	}
	if err := tr.WriteFrame(data); err != nil {
		return fmt.Errorf("writing %s frame: %w", op, err)
	}
	return nil
}
