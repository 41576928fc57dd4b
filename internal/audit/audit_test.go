package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ziadkadry99/shardgate/internal/db"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestLogAndGetByID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	entry := Entry{
		ID:            "test-1",
		InteractionID: "1100",
		Action:        ActionResolved,
		UserID:        "alice",
		GuildID:       "42",
		CommandPath:   "permission add",
		ShardID:       3,
		Detail:        "plugin=foo",
	}

	if err := store.Log(ctx, entry); err != nil {
		t.Fatalf("Log: %v", err)
	}

	got, err := store.GetByID(ctx, "test-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if got.InteractionID != "1100" {
		t.Errorf("InteractionID = %q, want %q", got.InteractionID, "1100")
	}
	if got.Action != ActionResolved {
		t.Errorf("Action = %q, want %q", got.Action, ActionResolved)
	}
	if got.CommandPath != "permission add" {
		t.Errorf("CommandPath = %q, want %q", got.CommandPath, "permission add")
	}
	if got.ShardID != 3 {
		t.Errorf("ShardID = %d, want 3", got.ShardID)
	}
	if got.Detail != "plugin=foo" {
		t.Errorf("Detail = %q, want %q", got.Detail, "plugin=foo")
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be parsed")
	}
}

func TestLogGeneratesUUID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if err := store.Log(ctx, Entry{InteractionID: "1", Action: ActionReceived}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := store.Query(ctx, QueryFilter{InteractionID: "1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].ID == "" {
		t.Error("expected generated ID, got empty string")
	}
}

func TestLogRejectsUnknownAction(t *testing.T) {
	store := setupStore(t)
	if err := store.Log(context.Background(), Entry{InteractionID: "1", Action: "exploded"}); err == nil {
		t.Error("expected constraint error for unknown action")
	}
}

func TestQueryOrdersNewestFirst(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	actions := []Action{ActionReceived, ActionResolved, ActionDeferred, ActionFollowup}
	for i, a := range actions {
		if err := store.Log(ctx, Entry{
			InteractionID: "7",
			Action:        a,
			Timestamp:     base.Add(time.Duration(i) * time.Millisecond),
		}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := store.Query(ctx, QueryFilter{InteractionID: "7"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != len(actions) {
		t.Fatalf("expected %d entries, got %d", len(actions), len(entries))
	}
	for i, e := range entries {
		want := actions[len(actions)-1-i]
		if e.Action != want {
			t.Errorf("[%d] Action = %q, want %q", i, e.Action, want)
		}
	}
}

func TestQueryFilterByAction(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	actions := []Action{ActionResponded, ActionExpired, ActionResponded}
	for i, a := range actions {
		if err := store.Log(ctx, Entry{
			InteractionID: string(rune('a' + i)),
			Action:        a,
		}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := store.Query(ctx, QueryFilter{Action: ActionResponded})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 responded entries, got %d", len(entries))
	}
}

func TestQueryFilterByGuildAndUser(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	rows := []Entry{
		{InteractionID: "1", Action: ActionReceived, GuildID: "42", UserID: "alice"},
		{InteractionID: "2", Action: ActionReceived, GuildID: "42", UserID: "bob"},
		{InteractionID: "3", Action: ActionReceived, GuildID: "43", UserID: "alice"},
	}
	for _, e := range rows {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := store.Query(ctx, QueryFilter{GuildID: "42", UserID: "alice"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].InteractionID != "1" {
		t.Errorf("expected interaction 1, got %+v", entries)
	}
}

func TestQueryTimeRange(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	if err := store.Log(ctx, Entry{InteractionID: "old", Action: ActionReceived, Timestamp: old}); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if err := store.Log(ctx, Entry{InteractionID: "new", Action: ActionReceived}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	since := time.Now().Add(-time.Hour)
	entries, err := store.Query(ctx, QueryFilter{Since: &since})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].InteractionID != "new" {
		t.Errorf("since filter: got %+v", entries)
	}

	until := time.Now().Add(-24 * time.Hour)
	entries, err = store.Query(ctx, QueryFilter{Until: &until})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].InteractionID != "old" {
		t.Errorf("until filter: got %+v", entries)
	}
}

func TestQueryLimitAndOffset(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := store.Log(ctx, Entry{InteractionID: "p", Action: ActionFollowup}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	entries, err := store.Query(ctx, QueryFilter{Limit: 2})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("limit: expected 2 entries, got %d", len(entries))
	}

	entries, err = store.Query(ctx, QueryFilter{Offset: 3})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("offset: expected 2 entries, got %d", len(entries))
	}
}

func TestDeleteBefore(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Log(ctx, Entry{InteractionID: "d", Action: ActionTokenExpired}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	deleted, err := store.DeleteBefore(ctx, time.Now().Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 deleted, got %d", deleted)
	}

	entries, err := store.Query(ctx, QueryFilter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected 0 remaining entries, got %d", len(entries))
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := setupStore(t)

	if _, err := store.GetByID(context.Background(), "nonexistent"); err == nil {
		t.Error("expected error for nonexistent ID, got nil")
	}
}

// --- HTTP handler tests ---

func setupRouter(t *testing.T) (chi.Router, *Store) {
	t.Helper()
	store := setupStore(t)
	r := chi.NewRouter()
	RegisterRoutes(r, store)
	return r, store
}

func TestHTTPGetByID(t *testing.T) {
	r, store := setupRouter(t)

	if err := store.Log(context.Background(), Entry{
		ID:            "http-1",
		InteractionID: "900",
		Action:        ActionDeferred,
		CommandPath:   "ping",
	}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/audit/http-1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got Entry
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "http-1" {
		t.Errorf("ID = %q, want %q", got.ID, "http-1")
	}
	if got.Action != ActionDeferred {
		t.Errorf("Action = %q, want %q", got.Action, ActionDeferred)
	}
}

func TestHTTPGetByIDNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audit/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHTTPQueryEmpty(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/audit", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", body)
	}
}

func TestHTTPQueryWithFilter(t *testing.T) {
	r, store := setupRouter(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "1"} {
		if err := store.Log(ctx, Entry{InteractionID: id, Action: ActionReceived}); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/audit?interaction=1&limit=10", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var entries []Entry
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries for interaction 1, got %d", len(entries))
	}
}
