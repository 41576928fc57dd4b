package bots

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ziadkadry99/shardgate/internal/commands"
	"github.com/ziadkadry99/shardgate/internal/interactions"
	"github.com/ziadkadry99/shardgate/internal/rest"
)

// permAdministrator is the ADMINISTRATOR permission bit.
const permAdministrator = "8"

// RegisterBuiltins registers the ping and shards commands.
func (b *Bot) RegisterBuiltins() error {
	if _, err := b.RegisterCommand(commands.Command("ping", "Check the gateway heartbeat latency")); err != nil {
		return err
	}
	b.Handle("ping", b.handlePing)

	shards := commands.Command("shards", "Show the status of every shard").RequirePermissions(permAdministrator)
	if _, err := b.RegisterCommand(shards); err != nil {
		return err
	}
	b.Handle("shards", b.handleShards)
	return nil
}

func (b *Bot) handlePing(ctx context.Context, inv *interactions.Invocation) error {
	shard := inv.Interaction.Shard
	content := fmt.Sprintf("Pong! Shard %d", shard)
	if conn := b.Shard(shard); conn != nil {
		if ms := conn.Status().LatencyMS; ms > 0 {
			content += fmt.Sprintf(", heartbeat latency %dms", ms)
		}
	}
	return inv.SendResponse(ctx, rest.MessageData{Content: content})
}

func (b *Bot) handleShards(ctx context.Context, inv *interactions.Invocation) error {
	statuses := b.Statuses()
	embed := rest.Embed{Title: "Shards", Description: fmt.Sprintf("%d shard(s) in this process", len(statuses))}
	for _, st := range statuses {
		seq := "-"
		if st.Seq != nil {
			seq = strconv.FormatInt(*st.Seq, 10)
		}
		embed.Fields = append(embed.Fields, rest.EmbedField{
			Name: fmt.Sprintf("Shard %d/%d", st.Shard, st.ShardCount),
			Value: fmt.Sprintf("state: %s\nseq: %s\nlatency: %dms\nreconnects: %d",
				st.State, seq, st.LatencyMS, st.Reconnects),
			Inline: true,
		})
	}
	return inv.SendResponse(ctx, rest.MessageData{Embeds: []rest.Embed{embed}, Flags: rest.FlagEphemeral})
}
