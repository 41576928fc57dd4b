package sessions

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type sessionView struct {
	ShardID    int       `json:"shard_id"`
	ShardCount int       `json:"shard_count"`
	SessionID  string    `json:"session_id"`
	Seq        *int64    `json:"seq"`
	ResumeURL  string    `json:"resume_url"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RegisterRoutes mounts GET /api/sessions, listing stored resume state.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Get("/api/sessions", func(w http.ResponseWriter, r *http.Request) {
		states, err := store.List(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out := make([]sessionView, 0, len(states))
		for _, st := range states {
			out = append(out, sessionView{
				ShardID:    st.ShardID,
				ShardCount: st.ShardCount,
				SessionID:  st.SessionID,
				Seq:        st.Seq,
				ResumeURL:  st.ResumeURL,
				UpdatedAt:  st.UpdatedAt,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	})
}
