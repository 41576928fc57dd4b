package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ziadkadry99/shardgate/internal/commands"
)

const secretToken = "aW50ZXJhY3Rpb24tdG9rZW4"

func newTestClient(t *testing.T, h http.Handler, retries int) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL:    srv.URL + "/api",
		Token:      "bot-token",
		Timeout:    5 * time.Second,
		MaxRetries: retries,
	}, zaptest.NewLogger(t))
}

func TestGetGatewayBot(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v10/gateway/bot", r.URL.Path)
		assert.Equal(t, "Bot bot-token", r.Header.Get("Authorization"))
		assert.Contains(t, r.Header.Get("User-Agent"), "DiscordBot")
		io.WriteString(w, `{"url":"wss://gateway.example","shards":3,"session_start_limit":{"total":1000,"remaining":998,"reset_after":100,"max_concurrency":2}}`)
	}), 0)

	gb, err := c.GetGatewayBot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wss://gateway.example", gb.URL)
	assert.Equal(t, 3, gb.Shards)
	assert.Equal(t, 998, gb.SessionStartLimit.Remaining)
	assert.Equal(t, 2, gb.SessionStartLimit.MaxConcurrency)
}

func TestRetriesAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"message":"You are being rate limited.","retry_after":0.02,"global":false}`)
			return
		}
		io.WriteString(w, `{"id":"1","username":"shardgate","bot":true}`)
	}), 2)

	u, err := c.GetCurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "shardgate", u.Username)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRateLimitRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0.01")
		w.WriteHeader(http.StatusTooManyRequests)
	}), 1)

	_, err := c.GetCurrentApplication(context.Background())
	require.Error(t, err)
	herr, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.True(t, herr.IsRateLimited())
	assert.Equal(t, 10*time.Millisecond, herr.RetryAfter)
	assert.Equal(t, int32(2), calls.Load())
}

func TestInteractionRepliesAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1)%2 == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"message":"You are being rate limited.","retry_after":0.02,"global":false}`)
			return
		}
		io.WriteString(w, `{"id":"m1","channel_id":"c","content":"late"}`)
	}), 3)
	ctx := context.Background()

	err := c.CreateInteractionResponse(ctx, "99", secretToken, InteractionResponse{Type: ResponseDeferredChannelMessage})
	require.Error(t, err)
	herr, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.True(t, herr.IsRateLimited())
	assert.Equal(t, 20*time.Millisecond, herr.RetryAfter)
	assert.Equal(t, int32(1), calls.Load())

	calls.Store(0)
	_, err = c.CreateFollowup(ctx, "app", secretToken, MessageData{Content: "late"})
	require.Error(t, err)
	herr, ok = AsHTTPError(err)
	require.True(t, ok)
	assert.True(t, herr.IsRateLimited())
	assert.Equal(t, 20*time.Millisecond, herr.RetryAfter)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPErrorOmitsToken(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"Unknown Webhook","code":10015}`)
	}), 0)

	_, err := c.EditOriginalResponse(context.Background(), "app", secretToken, MessageData{Content: "x"})
	require.Error(t, err)
	herr, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.True(t, herr.IsNotFound())
	assert.Equal(t, 10015, herr.Code)
	assert.Equal(t, "/webhooks/{app}/{token}/messages/@original", herr.Path)
	assert.NotContains(t, err.Error(), secretToken)
}

func TestTransportErrorOmitsToken(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(Options{BaseURL: base, Token: "bot-token", Timeout: time.Second}, nil)
	err := c.DeleteFollowup(context.Background(), "app", secretToken, "42")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), secretToken)
}

func TestBucketWaitsForReset(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset-After", "0.1")
		io.WriteString(w, `{"id":"1","username":"a"}`)
	}), 0)

	ctx := context.Background()
	_, err := c.GetCurrentUser(ctx)
	require.NoError(t, err)

	start := time.Now()
	_, err = c.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBucketWaitRespectsContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset-After", "60")
		io.WriteString(w, `{}`)
	}), 0)

	_, err := c.GetCurrentUser(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.GetCurrentUser(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInteractionCallback(t *testing.T) {
	var got InteractionResponse
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v10/interactions/99/"+secretToken+"/callback", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}), 0)

	err := c.CreateInteractionResponse(context.Background(), "99", secretToken, InteractionResponse{
		Type: ResponseChannelMessage,
		Data: &MessageData{Content: "pong", Flags: FlagEphemeral},
	})
	require.NoError(t, err)
	assert.Equal(t, ResponseChannelMessage, got.Type)
	require.NotNil(t, got.Data)
	assert.Equal(t, "pong", got.Data.Content)
	assert.Equal(t, FlagEphemeral, got.Data.Flags)
}

func TestCreateFollowupWaitsForMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v10/webhooks/app/"+secretToken, r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		io.WriteString(w, `{"id":"555","channel_id":"1","content":"more"}`)
	}), 0)

	m, err := c.CreateFollowup(context.Background(), "app", secretToken, MessageData{Content: "more"})
	require.NoError(t, err)
	assert.Equal(t, "555", m.ID)
}

func TestBulkOverwriteSendsEmptyList(t *testing.T) {
	var body string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v10/applications/app/guilds/42/commands", r.URL.Path)
		data, _ := io.ReadAll(r.Body)
		body = strings.TrimSpace(string(data))
		io.WriteString(w, `[]`)
	}), 0)

	out, err := c.BulkOverwriteGuildCommands(context.Background(), "app", "42", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, "[]", body)
}

func TestBulkOverwriteGlobalCommands(t *testing.T) {
	var got []commands.ApplicationCommand
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v10/applications/app/commands", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		got[0].ID = "1001"
		json.NewEncoder(w).Encode(got)
	}), 0)

	tree, err := commands.Build(commands.Command("ping", "Check latency"))
	require.NoError(t, err)

	out, err := c.BulkOverwriteGlobalCommands(context.Background(), "app", []commands.ApplicationCommand{tree.Payload()})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "1001", out[0].ID)
	assert.Equal(t, "ping", got[0].Name)
}

func TestGlobalRateLimitPausesAllRoutes(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://unused"}, nil)
	c.pauseGlobal(50 * time.Millisecond)
	assert.Greater(t, c.globalWait(time.Now()), time.Duration(0))
	assert.Zero(t, c.globalWait(time.Now().Add(time.Second)))
}
