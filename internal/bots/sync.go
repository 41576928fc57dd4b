package bots

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/shardgate/internal/commands"
	"github.com/ziadkadry99/shardgate/internal/progress"
)

// syncConcurrency bounds parallel bulk overwrites; each guild is its own
// rate-limit bucket.
const syncConcurrency = 4

// SyncResult is the outcome of overwriting one scope's command set.
type SyncResult struct {
	Scope    commands.Scope `json:"scope"`
	Commands int            `json:"commands"`
	Err      error          `json:"-"`
}

// SyncCommands replaces the platform's command set of every registered
// scope with the registry's. reporter may be nil.
func (b *Bot) SyncCommands(ctx context.Context, reporter progress.Reporter) ([]SyncResult, error) {
	if reporter == nil {
		reporter = progress.Nop()
	}
	appID, err := b.ApplicationID(ctx)
	if err != nil {
		return nil, err
	}

	scopes := b.registry.Scopes()
	results := make([]SyncResult, len(scopes))

	reporter.Start(len(scopes))
	defer reporter.Finish()

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)
	for i, scope := range scopes {
		g.Go(func() error {
			payloads := b.registry.Payloads(scope)
			var err error
			if guild := scope.GuildID(); guild != "" {
				_, err = b.client.BulkOverwriteGuildCommands(gctx, appID, guild, payloads)
			} else {
				_, err = b.client.BulkOverwriteGlobalCommands(gctx, appID, payloads)
			}
			results[i] = SyncResult{Scope: scope, Commands: len(payloads), Err: err}

			mu.Lock()
			done++
			reporter.Update(done, scope.String())
			mu.Unlock()

			if err != nil {
				return fmt.Errorf("syncing %s commands: %w", scope, err)
			}
			b.logger.Info("commands synced", zap.Stringer("scope", scope), zap.Int("count", len(payloads)))
			return nil
		})
	}
	return results, g.Wait()
}
