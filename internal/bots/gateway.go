package bots

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ziadkadry99/shardgate/internal/gateway"
)

// shardPlan is the outcome of gateway discovery.
type shardPlan struct {
	url            string
	shardCount     int
	shardIDs       []int
	maxConcurrency int
}

// plan decides the gateway URL, shard count and identify concurrency. With
// both gateway_url and shards.count configured discovery is skipped.
func (b *Bot) plan(ctx context.Context) (shardPlan, error) {
	p := shardPlan{url: b.cfg.GatewayURL, shardCount: b.cfg.Shards.Count, maxConcurrency: 1}

	if p.url == "" || p.shardCount == 0 {
		gb, err := b.client.GetGatewayBot(ctx)
		if err != nil {
			return p, fmt.Errorf("discovering gateway: %w", err)
		}
		limit := gb.SessionStartLimit
		if limit.Remaining == 0 && limit.Total > 0 {
			reset := time.Duration(limit.ResetAfter) * time.Millisecond
			return p, fmt.Errorf("%w: resets in %s", gateway.ErrSessionLimit, reset)
		}
		b.logger.Info("gateway discovered",
			zap.Int("recommended_shards", gb.Shards),
			zap.Int("sessions_remaining", limit.Remaining),
			zap.Int("max_concurrency", limit.MaxConcurrency),
		)
		if p.url == "" {
			p.url = gb.URL
		}
		if p.shardCount == 0 {
			p.shardCount = gb.Shards
		}
		if limit.MaxConcurrency > 0 {
			p.maxConcurrency = limit.MaxConcurrency
		}
	}
	if p.shardCount <= 0 {
		p.shardCount = 1
	}

	p.shardIDs = b.cfg.Shards.IDs
	if len(p.shardIDs) == 0 {
		p.shardIDs = make([]int, p.shardCount)
		for i := range p.shardIDs {
			p.shardIDs[i] = i
		}
	}
	for _, id := range p.shardIDs {
		if id < 0 || id >= p.shardCount {
			return p, fmt.Errorf("shard id %d out of range for %d shards", id, p.shardCount)
		}
	}
	return p, nil
}

// connections builds one Conn per planned shard, all sharing the router,
// session store and dialer.
func (b *Bot) connections(p shardPlan) ([]*gateway.Conn, error) {
	intents, err := gateway.ParseIntents(b.cfg.Intents)
	if err != nil {
		return nil, err
	}
	if priv := intents.Privileged(); priv != 0 {
		b.logger.Info("requesting privileged intents", zap.Strings("intents", priv.Names()))
	}

	cc := b.cfg.Gateway.CloseCodes
	classifier := gateway.NewClassifier(cc.Resumable, cc.Reset, cc.Fatal)
	backoff := gateway.Backoff{
		MaxAttempts: b.cfg.Reconnect.MaxAttempts,
		Base:        b.cfg.Reconnect.BaseDelay,
		Max:         b.cfg.Reconnect.MaxDelay,
		Multiplier:  b.cfg.Reconnect.Multiplier,
		Jitter:      b.cfg.Reconnect.Jitter,
	}
	if err := backoff.Validate(); err != nil {
		return nil, err
	}

	conns := make([]*gateway.Conn, 0, len(p.shardIDs))
	for _, id := range p.shardIDs {
		conns = append(conns, gateway.NewConn(gateway.Options{
			Token:                 b.cfg.Token,
			Intents:               intents,
			ShardID:               id,
			ShardCount:            p.shardCount,
			URL:                   p.url,
			APIVersion:            b.cfg.APIVersion,
			Compress:              b.cfg.Compress,
			HandshakeTimeout:      b.cfg.Gateway.HandshakeTimeout,
			KeepSessionOnShutdown: b.cfg.Gateway.KeepSessionOnShutdown,
			Classifier:            classifier,
			Backoff:               backoff,
			Presence:              b.presence,
		}, b.dialer, b, b.store, b.logger))
	}
	return conns, nil
}
