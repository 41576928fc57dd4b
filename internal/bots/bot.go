package bots

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ziadkadry99/shardgate/internal/commands"
	"github.com/ziadkadry99/shardgate/internal/config"
	"github.com/ziadkadry99/shardgate/internal/events"
	"github.com/ziadkadry99/shardgate/internal/gateway"
	"github.com/ziadkadry99/shardgate/internal/interactions"
	"github.com/ziadkadry99/shardgate/internal/rest"
)

// Bot is the host-facing entry point: it owns the REST client, the event
// router, the command registry and the interaction dispatcher, and runs
// the shards that feed them.
type Bot struct {
	cfg        *config.Config
	client     *rest.Client
	router     *events.Router
	registry   *commands.Registry
	dispatcher *interactions.Dispatcher
	store      gateway.SessionStore
	dialer     gateway.Dialer
	auditor    interactions.Auditor
	presence   *gateway.PresenceUpdate
	logger     *zap.Logger

	selfID  atomic.Value
	manager atomic.Pointer[gateway.Manager]
	running atomic.Bool

	mu    sync.Mutex
	appID string
}

// New creates a Bot from cfg. The config is expected to be validated.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bot{
		cfg: cfg,
		client: rest.NewClient(rest.Options{
			BaseURL:    cfg.APIBaseURL,
			APIVersion: cfg.APIVersion,
			Token:      cfg.Token,
			Timeout:    cfg.REST.Timeout,
			MaxRetries: cfg.REST.MaxRetries,
			GlobalRate: cfg.REST.GlobalRate,
		}, logger),
		router:   events.NewRouter(logger),
		registry: commands.NewRegistry(),
		logger:   logger.Named("bot"),
		appID:    cfg.ApplicationID,
	}
	b.selfID.Store("")
	for _, opt := range opts {
		opt(b)
	}
	if b.store == nil {
		b.store = gateway.NewMemoryStore()
	}
	if b.dialer == nil {
		b.dialer = &gateway.WebsocketDialer{HandshakeTimeout: cfg.Gateway.HandshakeTimeout, Compress: cfg.Compress}
	}

	b.dispatcher = interactions.NewDispatcher(b.registry, b.client, b.auditor, interactions.DispatcherConfig{
		ApplicationID:  cfg.ApplicationID,
		Deadlines:      interactions.Deadlines{Ack: cfg.Interactions.AckDeadline, Token: cfg.Interactions.TokenTTL},
		HandlerTimeout: cfg.Interactions.HandlerTimeout,
		ReplyOnError:   cfg.Interactions.ReplyOnError,
	}, logger)
	b.router.Subscribe(events.KindReady, b.onReady)
	b.router.Subscribe(events.KindInteractionCreate, b.dispatcher.HandleEvent)
	return b
}

// Client returns the REST client.
func (b *Bot) Client() *rest.Client { return b.client }

// Registry returns the command registry.
func (b *Bot) Registry() *commands.Registry { return b.registry }

// Router returns the event router.
func (b *Bot) Router() *events.Router { return b.router }

// Dispatcher returns the interaction dispatcher.
func (b *Bot) Dispatcher() *interactions.Dispatcher { return b.dispatcher }

// RegisterCommand builds spec and registers it in every scope the config
// lists for its name. A command configured for no scope is built but not
// registered.
func (b *Bot) RegisterCommand(spec *commands.Spec) (*commands.Tree, error) {
	tree, err := commands.Build(spec)
	if err != nil {
		return nil, err
	}
	for _, s := range b.cfg.ScopesFor(tree.Name()) {
		scope := commands.GlobalScope
		if s != config.GlobalScope {
			scope = commands.GuildScope(s)
		}
		if err := b.registry.Register(scope, tree); err != nil {
			return nil, err
		}
		b.logger.Debug("command registered", zap.String("name", tree.Name()), zap.Stringer("scope", scope))
	}
	return tree, nil
}

// Handle runs h for the command path, e.g. "permission add".
func (b *Bot) Handle(path string, h interactions.Handler) {
	b.dispatcher.Handle(path, h)
}

// HandleAutocomplete answers autocomplete interactions for the command path.
func (b *Bot) HandleAutocomplete(path string, h interactions.AutocompleteHandler) {
	b.dispatcher.HandleAutocomplete(path, h)
}

// OnInteraction runs h for interactions without a path handler.
func (b *Bot) OnInteraction(h interactions.Handler) {
	b.dispatcher.OnInteraction(h)
}

// OnGatewayEvent subscribes h to one event kind. Handlers run on the shard's
// connection loop in subscription order and must not block.
func (b *Bot) OnGatewayEvent(kind events.Kind, h events.Handler) {
	b.router.Subscribe(kind, h)
}

// OnAnyGatewayEvent subscribes h to every event, including unknown kinds.
func (b *Bot) OnAnyGatewayEvent(h events.Handler) {
	b.router.SubscribeAll(h)
}

// Publish implements gateway.EventSink.
func (b *Bot) Publish(ctx context.Context, ev events.Event) {
	if ev.Kind == events.KindMessageCreate && !b.cfg.HandleSelfMessages && b.isSelf(ev) {
		return
	}
	b.router.Publish(ctx, ev)
}

func (b *Bot) isSelf(ev events.Event) bool {
	self, _ := b.selfID.Load().(string)
	if self == "" {
		return false
	}
	var msg struct {
		Author struct {
			ID string `json:"id"`
		} `json:"author"`
	}
	if err := json.Unmarshal(ev.Data, &msg); err != nil {
		return false
	}
	return msg.Author.ID == self
}

func (b *Bot) onReady(_ context.Context, ev events.Event) error {
	var ready events.Ready
	if err := json.Unmarshal(ev.Data, &ready); err != nil {
		return fmt.Errorf("decoding READY: %w", err)
	}
	b.selfID.Store(ready.User.ID)
	b.mu.Lock()
	if b.appID == "" {
		b.appID = ready.Application.ID
	}
	b.mu.Unlock()
	b.logger.Info("shard ready",
		zap.Int("shard", ev.Shard),
		zap.String("user", ready.User.Username),
		zap.Int("guilds", len(ready.Guilds)),
	)
	return nil
}

// ApplicationID returns the configured application ID, or the one learned
// from READY or the API.
func (b *Bot) ApplicationID(ctx context.Context) (string, error) {
	b.mu.Lock()
	id := b.appID
	b.mu.Unlock()
	if id != "" {
		return id, nil
	}
	app, err := b.client.GetCurrentApplication(ctx)
	if err != nil {
		return "", fmt.Errorf("looking up application id: %w", err)
	}
	b.mu.Lock()
	b.appID = app.ID
	b.mu.Unlock()
	return app.ID, nil
}

// Statuses returns a snapshot of every shard run by this process, or nil
// before Run.
func (b *Bot) Statuses() []gateway.Status {
	if m := b.manager.Load(); m != nil {
		return m.Statuses()
	}
	return nil
}

// Shard returns the connection of shard id, nil if not run here.
func (b *Bot) Shard(id int) *gateway.Conn {
	if m := b.manager.Load(); m != nil {
		return m.Shard(id)
	}
	return nil
}

// Run connects every configured shard and blocks until all of them have
// stopped, on cancellation or after a fatal close. Running handlers are
// cancelled on return.
func (b *Bot) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return fmt.Errorf("bot is already running")
	}
	defer b.dispatcher.Close()

	if b.cfg.Commands.SyncOnStart {
		if _, err := b.SyncCommands(ctx, nil); err != nil {
			return err
		}
	}

	plan, err := b.plan(ctx)
	if err != nil {
		return err
	}
	conns, err := b.connections(plan)
	if err != nil {
		return err
	}

	m := gateway.NewManager(conns, plan.maxConcurrency, b.logger)
	b.manager.Store(m)
	b.logger.Info("starting shards",
		zap.Int("shard_count", plan.shardCount),
		zap.Ints("shards", plan.shardIDs),
		zap.Int("max_concurrency", plan.maxConcurrency),
	)
	return m.Run(ctx)
}
