package interactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ziadkadry99/shardgate/internal/audit"
	"github.com/ziadkadry99/shardgate/internal/commands"
	"github.com/ziadkadry99/shardgate/internal/events"
	"github.com/ziadkadry99/shardgate/internal/rest"
)

// Handler answers one interaction through the embedded Responder.
type Handler func(ctx context.Context, inv *Invocation) error

// AutocompleteHandler returns the choices offered for the focused option.
type AutocompleteHandler func(ctx context.Context, inv *Invocation) ([]commands.Choice, error)

// Invocation is the handler's view of one interaction.
type Invocation struct {
	*Responder
	// ID identifies this handler run in logs.
	ID          string
	Interaction *Interaction
	// Command is nil for component and modal interactions.
	Command *commands.Resolution
}

// Options returns the resolved command options, or nil.
func (inv *Invocation) Options() commands.Options {
	if inv.Command == nil {
		return nil
	}
	return inv.Command.Options
}

// Path returns the resolved command path joined by spaces.
func (inv *Invocation) Path() string {
	return strings.Join(inv.Interaction.Path, " ")
}

// Auditor records the interaction audit trail.
type Auditor interface {
	Log(ctx context.Context, entry audit.Entry) error
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	ApplicationID string
	Deadlines     Deadlines
	// HandlerTimeout bounds each handler run; zero means no bound.
	HandlerTimeout time.Duration
	// ReplyOnError sends an ephemeral error reply when resolution or the
	// handler fails before anything was sent.
	ReplyOnError bool
}

// Dispatcher turns INTERACTION_CREATE events into handler runs.
type Dispatcher struct {
	registry *commands.Registry
	tracker  *Tracker
	auditor  Auditor
	cfg      DispatcherConfig
	logger   *zap.Logger

	mu           sync.RWMutex
	handlers     map[string]Handler
	autocomplete map[string]AutocompleteHandler
	fallback     Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher resolving against registry and
// replying through client. auditor may be nil.
func NewDispatcher(registry *commands.Registry, client REST, auditor Auditor, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		registry:     registry,
		auditor:      auditor,
		cfg:          cfg,
		logger:       logger.Named("dispatcher"),
		handlers:     make(map[string]Handler),
		autocomplete: make(map[string]AutocompleteHandler),
		ctx:          ctx,
		cancel:       cancel,
	}
	d.tracker = NewTracker(client, cfg.ApplicationID, cfg.Deadlines, d.recordTransition, logger)
	return d
}

// Tracker returns the tracker of active interactions.
func (d *Dispatcher) Tracker() *Tracker { return d.tracker }

// Handle routes the command path ("permission add") to h.
func (d *Dispatcher) Handle(path string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[normalizePath(path)] = h
}

// HandleAutocomplete routes autocomplete interactions of path to h.
func (d *Dispatcher) HandleAutocomplete(path string, h AutocompleteHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.autocomplete[normalizePath(path)] = h
}

// OnInteraction sets the handler for interactions no path handler claims,
// including component and modal interactions.
func (d *Dispatcher) OnInteraction(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fallback = h
}

func normalizePath(path string) string {
	return strings.Join(strings.Fields(path), " ")
}

func (d *Dispatcher) lookup(path string) Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if h, ok := d.handlers[path]; ok {
		return h
	}
	return d.fallback
}

func (d *Dispatcher) lookupAutocomplete(path string) AutocompleteHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.autocomplete[path]
}

// HandleEvent is an events.Handler for INTERACTION_CREATE. Handlers run on
// their own goroutines; HandleEvent itself only resolves and records.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev events.Event) error {
	if ev.Kind != events.KindInteractionCreate {
		return nil
	}
	in, err := Decode(ev.Data)
	if err != nil {
		return fmt.Errorf("decoding interaction: %w", err)
	}
	in.Shard = ev.Shard
	in.ReceivedAt = ev.ReceivedAt
	if in.Type == TypePing {
		return nil
	}
	if in.Data.GuildID == "" {
		in.Data.GuildID = in.GuildID
	}

	var (
		res        *commands.Resolution
		resolveErr error
	)
	switch in.Type {
	case TypeApplicationCommand:
		res, resolveErr = d.registry.Resolve(in.Data)
	case TypeAutocomplete:
		res, resolveErr = d.registry.ResolveAutocomplete(in.Data)
	}
	if res != nil {
		in.Path = res.Path
	}

	resp, created := d.tracker.Track(in)
	if resp == nil {
		return fmt.Errorf("interaction %s: %w", in.ID, ErrClosed)
	}
	if !created {
		d.logger.Debug("duplicate interaction ignored", zap.String("interaction", in.ID))
		return nil
	}
	d.record(ctx, in, audit.ActionReceived, in.Type.String())

	inv := &Invocation{Responder: resp, ID: uuid.NewString(), Interaction: in, Command: res}
	path := inv.Path()

	if resolveErr != nil {
		d.record(ctx, in, audit.ActionResolveFailed, resolveErr.Error())
		d.logger.Warn("interaction not resolved",
			zap.String("interaction", in.ID),
			zap.String("name", in.Data.Name),
			zap.Error(resolveErr),
		)
		if d.cfg.ReplyOnError && in.Type == TypeApplicationCommand {
			d.spawn(func() { d.replyError(inv, resolveErr) })
		}
		return nil
	}
	if res != nil {
		d.record(ctx, in, audit.ActionResolved, res.Scope.String())
	}

	if in.Type == TypeAutocomplete {
		h := d.lookupAutocomplete(path)
		if h == nil {
			d.logger.Debug("no autocomplete handler", zap.String("path", path))
			return nil
		}
		d.spawn(func() { d.runAutocomplete(inv, h) })
		return nil
	}

	h := d.lookup(path)
	if h == nil {
		d.logger.Warn("no handler for interaction",
			zap.String("interaction", in.ID),
			zap.String("path", path),
			zap.Stringer("type", in.Type),
		)
		return nil
	}
	d.spawn(func() { d.run(inv, h) })
	return nil
}

func (d *Dispatcher) spawn(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

func (d *Dispatcher) handlerContext() (context.Context, context.CancelFunc) {
	if d.cfg.HandlerTimeout > 0 {
		return context.WithTimeout(d.ctx, d.cfg.HandlerTimeout)
	}
	return context.WithCancel(d.ctx)
}

func (d *Dispatcher) run(inv *Invocation, h Handler) {
	ctx, cancel := d.handlerContext()
	defer cancel()

	logger := d.logger.With(zap.String("invocation", inv.ID), zap.String("path", inv.Path()))
	start := time.Now()
	err := safeCall(func() error { return h(ctx, inv) })
	if err == nil {
		logger.Debug("handler finished", zap.Duration("elapsed", time.Since(start)))
		return
	}

	logger.Error("handler failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
	d.record(context.Background(), inv.Interaction, audit.ActionHandlerFailed, err.Error())
	if d.cfg.ReplyOnError {
		d.replyError(inv, err)
	}
}

func (d *Dispatcher) runAutocomplete(inv *Invocation, h AutocompleteHandler) {
	ctx, cancel := d.handlerContext()
	defer cancel()

	var choices []commands.Choice
	err := safeCall(func() error {
		var err error
		choices, err = h(ctx, inv)
		return err
	})
	if err == nil {
		err = inv.SendAutocomplete(ctx, choices)
	}
	if err != nil {
		d.logger.Warn("autocomplete failed", zap.String("path", inv.Path()), zap.Error(err))
		d.record(context.Background(), inv.Interaction, audit.ActionHandlerFailed, err.Error())
	}
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return fn()
}

// replyError tells the user something went wrong, unless the handler
// already produced a reply. It runs after the handler context is gone, so
// the reply gets its own short deadline.
func (d *Dispatcher) replyError(inv *Invocation, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := rest.MessageData{Content: errorMessage(cause), Flags: rest.FlagEphemeral}
	var err error
	switch inv.State() {
	case StatePending:
		err = inv.SendResponse(ctx, msg)
	case StateDeferred:
		_, err = inv.EditResponse(ctx, msg)
	default:
		return
	}
	if err != nil && !errors.Is(err, ErrAlreadyResponded) {
		d.logger.Debug("error reply not delivered", zap.String("interaction", inv.Interaction.ID), zap.Error(err))
	}
}

func errorMessage(err error) string {
	var rerr *commands.ResolveError
	switch {
	case errors.As(err, &rerr) && errors.Is(err, commands.ErrUnknownCommand):
		return "This command is not available."
	case errors.As(err, &rerr) && rerr.Option != "":
		return fmt.Sprintf("Invalid option `%s`: %s", rerr.Option, rerr.Reason)
	case errors.As(err, &rerr):
		return fmt.Sprintf("Invalid command: %s", rerr.Reason)
	case errors.Is(err, context.DeadlineExceeded):
		return "This command took too long to complete."
	default:
		return "Something went wrong while running this command."
	}
}

func (d *Dispatcher) recordTransition(t Transition) {
	var action audit.Action
	switch t.To {
	case StateDeferred:
		action = audit.ActionDeferred
	case StateResponded:
		action = audit.ActionResponded
	case StateFollowedUp:
		action = audit.ActionFollowup
	case StateExpired:
		action = audit.ActionExpired
	case StateTokenExpired:
		action = audit.ActionTokenExpired
	default:
		return
	}
	d.record(context.Background(), t.Interaction, action, t.MessageID)
}

func (d *Dispatcher) record(ctx context.Context, in *Interaction, action audit.Action, detail string) {
	if d.auditor == nil {
		return
	}
	err := d.auditor.Log(context.WithoutCancel(ctx), audit.Entry{
		InteractionID: in.ID,
		Action:        action,
		UserID:        in.AuthorID(),
		GuildID:       in.GuildID,
		CommandPath:   strings.Join(in.Path, " "),
		ShardID:       in.Shard,
		Detail:        detail,
	})
	if err != nil {
		d.logger.Warn("writing audit entry", zap.String("action", string(action)), zap.Error(err))
	}
}

// Close cancels running handlers, waits for them and tears down every
// active interaction.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
	d.tracker.Close()
}

// Wait blocks until every running handler has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
