package gateway

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// IdentifySpacing separates identify buckets.
const IdentifySpacing = 5 * time.Second

// Manager runs a set of shard connections in parallel. Shards are started in
// buckets of maxConcurrency, one bucket per IdentifySpacing.
type Manager struct {
	conns          []*Conn
	maxConcurrency int
	spacing        time.Duration
	logger         *zap.Logger
}

// NewManager creates a Manager over conns.
func NewManager(conns []*Conn, maxConcurrency int, logger *zap.Logger) *Manager {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		conns:          conns,
		maxConcurrency: maxConcurrency,
		spacing:        IdentifySpacing,
		logger:         logger.Named("shards"),
	}
}

// Run starts every shard and blocks until all have stopped. Shards fail
// independently: one that exhausts its reconnect attempts is reported while
// the others keep running. A FatalError applies to the token, so it stops
// every shard. The shard errors are joined; cancellation returns nil.
func (m *Manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	run := func(conn *Conn) error {
		err := conn.Run(ctx)
		if err == nil {
			return nil
		}
		var fe *FatalError
		if errors.As(err, &fe) {
			m.logger.Error("shard failed fatally, stopping all shards",
				zap.Int("shard", conn.ShardID()), zap.Error(err))
			cancel()
		} else {
			m.logger.Error("shard stopped", zap.Int("shard", conn.ShardID()), zap.Error(err))
		}
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
		return nil
	}

start:
	for i, conn := range m.conns {
		if i > 0 && i%m.maxConcurrency == 0 {
			select {
			case <-ctx.Done():
				break start
			case <-time.After(m.spacing):
			}
		}
		m.logger.Info("starting shard", zap.Int("shard", conn.ShardID()), zap.Int("of", len(m.conns)))
		g.Go(func() error { return run(conn) })
	}

	_ = g.Wait()
	return errors.Join(errs...)
}

// Shards returns the managed connections.
func (m *Manager) Shards() []*Conn {
	return m.conns
}

// Shard returns the connection for shard id, nil if not managed here.
func (m *Manager) Shard(id int) *Conn {
	for _, c := range m.conns {
		if c.ShardID() == id {
			return c
		}
	}
	return nil
}

// Statuses returns a status snapshot of every shard.
func (m *Manager) Statuses() []Status {
	out := make([]Status, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c.Status())
	}
	return out
}

// ShardForGuild returns the shard index that receives events for guildID.
func ShardForGuild(guildID string, shardCount int) (int, error) {
	id, err := strconv.ParseUint(guildID, 10, 64)
	if err != nil {
		return 0, err
	}
	if shardCount <= 0 {
		return 0, nil
	}
	return int((id >> 22) % uint64(shardCount)), nil
}
