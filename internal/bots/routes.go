package bots

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/shardgate/internal/commands"
	"github.com/ziadkadry99/shardgate/internal/gateway"
)

// RegisterRoutes mounts the shard and command status endpoints.
func (b *Bot) RegisterRoutes(r chi.Router) {
	r.Get("/api/shards", b.handleShardStatus)
	r.Get("/api/commands", b.handleCommandList)
}

func (b *Bot) handleShardStatus(w http.ResponseWriter, r *http.Request) {
	statuses := b.Statuses()
	if statuses == nil {
		statuses = []gateway.Status{}
	}
	writeJSON(w, http.StatusOK, statuses)
}

type commandInfo struct {
	Scope string   `json:"scope"`
	Name  string   `json:"name"`
	Type  string   `json:"type"`
	Paths []string `json:"paths"`
}

func (b *Bot) handleCommandList(w http.ResponseWriter, r *http.Request) {
	out := []commandInfo{}
	for _, scope := range b.registry.Scopes() {
		if guild := r.URL.Query().Get("guild"); guild != "" && scope != commands.GuildScope(guild) {
			continue
		}
		for _, tree := range b.registry.Trees(scope) {
			info := commandInfo{Scope: scope.String(), Name: tree.Name(), Type: tree.Type().String()}
			for _, leaf := range tree.Leaves() {
				info.Paths = append(info.Paths, strings.Join(leaf, " "))
			}
			out = append(out, info)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
