package gateway

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziadkadry99/shardgate/internal/events"
)

const waitFor = 5 * time.Second

func defaultClassifier() *Classifier {
	return NewClassifier(
		[]int{4000, 4001, 4002, 4003, 4005, 4008},
		[]int{1000, 1001, 4007, 4009, 4011},
		[]int{4004, 4010, 4012, 4013, 4014},
	)
}

func testOptions(url string) Options {
	return Options{
		Token:            "secret-token",
		Intents:          IntentGuilds | IntentGuildMessages,
		ShardID:          0,
		ShardCount:       1,
		URL:              url,
		HandshakeTimeout: 2 * time.Second,
		Classifier:       defaultClassifier(),
		Backoff:          Backoff{MaxAttempts: 3, Base: 10 * time.Millisecond, Max: 50 * time.Millisecond, Multiplier: 2},
	}
}

// fakeGateway is a scripted gateway server. Each accepted websocket is
// handed to the test through conns.
type fakeGateway struct {
	srv   *httptest.Server
	conns chan *serverConn
}

type serverConn struct {
	ws       *websocket.Conn
	compress bool
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	g := &fakeGateway{conns: make(chan *serverConn, 8)}
	upgrader := websocket.Upgrader{}
	g.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("v") != "10" || r.URL.Query().Get("encoding") != "json" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		g.conns <- &serverConn{ws: ws}
	}))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) URL() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http")
}

func (g *fakeGateway) accept(t *testing.T) *serverConn {
	t.Helper()
	select {
	case c := <-g.conns:
		t.Cleanup(func() { c.ws.Close() })
		return c
	case <-time.After(waitFor):
		t.Fatal("client never connected")
		return nil
	}
}

func (s *serverConn) write(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	if s.compress {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		_, _ = zw.Write(data)
		require.NoError(t, zw.Close())
		require.NoError(t, s.ws.WriteMessage(websocket.BinaryMessage, buf.Bytes()))
		return
	}
	require.NoError(t, s.ws.WriteMessage(websocket.TextMessage, data))
}

func (s *serverConn) send(t *testing.T, op Opcode, d any) {
	t.Helper()
	s.write(t, map[string]any{"op": op, "d": d})
}

func (s *serverConn) hello(t *testing.T, interval time.Duration) {
	t.Helper()
	s.send(t, OpHello, Hello{HeartbeatInterval: interval.Milliseconds()})
}

func (s *serverConn) dispatch(t *testing.T, name string, seq int64, d any) {
	t.Helper()
	s.write(t, map[string]any{"op": OpDispatch, "t": name, "s": seq, "d": d})
}

func (s *serverConn) ready(t *testing.T, seq int64, sessionID, resumeURL string) {
	t.Helper()
	s.dispatch(t, "READY", seq, map[string]any{
		"v":                  10,
		"session_id":         sessionID,
		"resume_gateway_url": resumeURL,
		"user":               map[string]any{"id": "1", "username": "bot", "bot": true},
		"application":        map[string]any{"id": "99"},
	})
}

func (s *serverConn) next(t *testing.T) Payload {
	t.Helper()
	require.NoError(t, s.ws.SetReadDeadline(time.Now().Add(waitFor)))
	_, data, err := s.ws.ReadMessage()
	require.NoError(t, err)
	var p Payload
	require.NoError(t, json.Unmarshal(data, &p))
	return p
}

// expect returns the next frame with op, skipping heartbeats unless asked for.
func (s *serverConn) expect(t *testing.T, op Opcode) Payload {
	t.Helper()
	for {
		p := s.next(t)
		if p.Op == OpHeartbeat && op != OpHeartbeat {
			continue
		}
		require.Equal(t, op, p.Op, "unexpected frame %s", p.D)
		return p
	}
}

// expectClose reads until the client closes and returns the close code.
func (s *serverConn) expectClose(t *testing.T) int {
	t.Helper()
	require.NoError(t, s.ws.SetReadDeadline(time.Now().Add(waitFor)))
	for {
		_, _, err := s.ws.ReadMessage()
		if err == nil {
			continue
		}
		var ce *websocket.CloseError
		require.True(t, errors.As(err, &ce), "expected close frame, got %v", err)
		return ce.Code
	}
}

type recordSink struct {
	ch chan events.Event
}

func newRecordSink() *recordSink {
	return &recordSink{ch: make(chan events.Event, 64)}
}

func (s *recordSink) Publish(_ context.Context, ev events.Event) {
	s.ch <- ev
}

func (s *recordSink) next(t *testing.T) events.Event {
	t.Helper()
	select {
	case ev := <-s.ch:
		return ev
	case <-time.After(waitFor):
		t.Fatal("no event delivered")
		return events.Event{}
	}
}

func startConn(t *testing.T, opts Options, sink EventSink, store SessionStore) (*Conn, context.CancelFunc, <-chan error) {
	t.Helper()
	c := NewConn(opts, nil, sink, store, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-c.Done()
	})
	return c, cancel, errc
}

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestConnIdentifyAndDispatch(t *testing.T) {
	gw := newFakeGateway(t)
	sink := newRecordSink()
	c, cancel, errc := startConn(t, testOptions(gw.URL()), sink, nil)

	sc := gw.accept(t)
	sc.hello(t, 45*time.Second)

	p := sc.expect(t, OpIdentify)
	var id Identify
	require.NoError(t, json.Unmarshal(p.D, &id))
	assert.Equal(t, "secret-token", id.Token)
	assert.Equal(t, IntentGuilds|IntentGuildMessages, id.Intents)
	assert.Equal(t, [2]int{0, 1}, id.Shard)
	assert.False(t, id.Compress)
	assert.Equal(t, "shardgate", id.Properties.Browser)

	sc.ready(t, 1, "abc", gw.URL())
	sc.dispatch(t, "MESSAGE_CREATE", 2, map[string]any{"id": "m1", "content": "hi"})
	sc.dispatch(t, "SOMETHING_NEW", 3, map[string]any{})

	ev := sink.next(t)
	assert.Equal(t, events.KindReady, ev.Kind)
	assert.Equal(t, int64(1), ev.Seq)
	ev = sink.next(t)
	assert.Equal(t, events.KindMessageCreate, ev.Kind)
	ev = sink.next(t)
	assert.Equal(t, events.KindUnknown, ev.Kind)
	assert.Equal(t, "SOMETHING_NEW", ev.Name)

	assert.Eventually(t, func() bool { return c.State() == StateReady }, waitFor, 5*time.Millisecond)
	st := c.Status()
	require.NotNil(t, st.Seq)
	assert.Equal(t, int64(3), *st.Seq)
	assert.True(t, st.HasSession)
	assert.Equal(t, "ready", st.State)

	cancel()
	assert.NoError(t, waitErr(t, errc))
	assert.Equal(t, StateClosed, c.State())
	assert.Equal(t, CloseNormal, sc.expectClose(t))
}

func TestConnResumesAfterReconnectRequest(t *testing.T) {
	gw := newFakeGateway(t)
	sink := newRecordSink()
	c, _, _ := startConn(t, testOptions(gw.URL()), sink, nil)

	first := gw.accept(t)
	first.hello(t, 45*time.Second)
	first.expect(t, OpIdentify)
	first.ready(t, 1, "abc", gw.URL())
	first.dispatch(t, "MESSAGE_CREATE", 2, map[string]any{"id": "m1"})
	assert.Equal(t, int64(1), sink.next(t).Seq)
	assert.Equal(t, int64(2), sink.next(t).Seq)

	first.send(t, OpReconnect, nil)
	assert.Equal(t, CloseResumable, first.expectClose(t))

	second := gw.accept(t)
	second.hello(t, 45*time.Second)
	p := second.expect(t, OpResume)
	var r Resume
	require.NoError(t, json.Unmarshal(p.D, &r))
	assert.Equal(t, "abc", r.SessionID)
	assert.Equal(t, int64(2), r.Seq)
	assert.Equal(t, "secret-token", r.Token)

	// The server replays seq 2; it has been delivered already.
	second.dispatch(t, "MESSAGE_CREATE", 2, map[string]any{"id": "m1"})
	second.dispatch(t, "MESSAGE_CREATE", 3, map[string]any{"id": "m2"})
	second.dispatch(t, "RESUMED", 4, nil)

	ev := sink.next(t)
	assert.Equal(t, int64(3), ev.Seq)
	ev = sink.next(t)
	assert.Equal(t, events.KindResumed, ev.Kind)
	assert.Equal(t, int64(4), ev.Seq)

	assert.Eventually(t, func() bool { return c.State() == StateReady }, waitFor, 5*time.Millisecond)
	assert.Equal(t, 1, c.Status().Reconnects)
}

func TestConnMissedHeartbeatAckForcesResume(t *testing.T) {
	gw := newFakeGateway(t)
	c, _, _ := startConn(t, testOptions(gw.URL()), newRecordSink(), nil)

	first := gw.accept(t)
	first.hello(t, 50*time.Millisecond)
	first.expect(t, OpIdentify)
	first.ready(t, 1, "abc", gw.URL())

	// Heartbeats are never acknowledged.
	assert.Equal(t, CloseResumable, first.expectClose(t))

	second := gw.accept(t)
	second.hello(t, 45*time.Second)
	second.expect(t, OpResume)
	assert.NotEqual(t, StateClosed, c.State())
}

func TestConnAnswersHeartbeatRequest(t *testing.T) {
	gw := newFakeGateway(t)
	c, _, _ := startConn(t, testOptions(gw.URL()), newRecordSink(), nil)

	sc := gw.accept(t)
	sc.hello(t, 45*time.Second)
	sc.expect(t, OpIdentify)
	sc.ready(t, 7, "abc", gw.URL())
	assert.Eventually(t, func() bool { return c.State() == StateReady }, waitFor, 5*time.Millisecond)

	sc.send(t, OpHeartbeat, nil)
	p := sc.expect(t, OpHeartbeat)
	var seq int64
	require.NoError(t, json.Unmarshal(p.D, &seq))
	assert.Equal(t, int64(7), seq)
}

func TestConnInvalidSessionIdentifiesFresh(t *testing.T) {
	gw := newFakeGateway(t)
	c, _, _ := startConn(t, testOptions(gw.URL()), newRecordSink(), nil)

	first := gw.accept(t)
	first.hello(t, 45*time.Second)
	first.expect(t, OpIdentify)
	first.ready(t, 1, "abc", gw.URL())
	assert.Eventually(t, func() bool { return c.State() == StateReady }, waitFor, 5*time.Millisecond)

	first.send(t, OpInvalidSession, false)

	second := gw.accept(t)
	second.hello(t, 45*time.Second)
	second.expect(t, OpIdentify)
	assert.False(t, c.Status().HasSession)
}

func TestConnFatalCloseCode(t *testing.T) {
	gw := newFakeGateway(t)
	c, _, errc := startConn(t, testOptions(gw.URL()), newRecordSink(), nil)

	sc := gw.accept(t)
	sc.hello(t, 45*time.Second)
	sc.expect(t, OpIdentify)
	msg := websocket.FormatCloseMessage(4004, "Authentication failed.")
	require.NoError(t, sc.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	err := waitErr(t, errc)
	var fe *FatalError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Equal(t, 4004, fe.Code)
	assert.Equal(t, "authentication failed", fe.Reason)
	assert.Equal(t, StateClosed, c.State())
}

func TestConnResetCloseCodeClearsSession(t *testing.T) {
	gw := newFakeGateway(t)
	store := NewMemoryStore()
	c, _, _ := startConn(t, testOptions(gw.URL()), newRecordSink(), store)

	first := gw.accept(t)
	first.hello(t, 45*time.Second)
	first.expect(t, OpIdentify)
	first.ready(t, 1, "abc", gw.URL())
	assert.Eventually(t, func() bool { return c.State() == StateReady }, waitFor, 5*time.Millisecond)

	msg := websocket.FormatCloseMessage(4009, "Session timed out.")
	require.NoError(t, first.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	second := gw.accept(t)
	second.hello(t, 45*time.Second)
	second.expect(t, OpIdentify)

	st, err := store.Load(context.Background(), 0, 1)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestConnResumesStoredSession(t *testing.T) {
	gw := newFakeGateway(t)
	store := NewMemoryStore()
	seq := int64(55)
	require.NoError(t, store.Save(context.Background(), SessionState{
		ShardID: 0, ShardCount: 1, SessionID: "persisted", Seq: &seq, ResumeURL: gw.URL(),
	}))

	startConn(t, testOptions(gw.URL()), newRecordSink(), store)

	sc := gw.accept(t)
	sc.hello(t, 45*time.Second)
	p := sc.expect(t, OpResume)
	var r Resume
	require.NoError(t, json.Unmarshal(p.D, &r))
	assert.Equal(t, "persisted", r.SessionID)
	assert.Equal(t, int64(55), r.Seq)
}

func TestConnKeepSessionOnShutdown(t *testing.T) {
	gw := newFakeGateway(t)
	store := NewMemoryStore()
	opts := testOptions(gw.URL())
	opts.KeepSessionOnShutdown = true
	_, cancel, errc := startConn(t, opts, newRecordSink(), store)

	sc := gw.accept(t)
	sc.hello(t, 45*time.Second)
	sc.expect(t, OpIdentify)
	sc.ready(t, 3, "keep", gw.URL())
	assert.Eventually(t, func() bool {
		st, _ := store.Load(context.Background(), 0, 1)
		return st != nil && st.SessionID == "keep"
	}, waitFor, 5*time.Millisecond)

	cancel()
	require.NoError(t, waitErr(t, errc))
	assert.Equal(t, CloseKeepSession, sc.expectClose(t))

	st, err := store.Load(context.Background(), 0, 1)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, "keep", st.SessionID)
}

func TestConnCompressedFrames(t *testing.T) {
	gw := newFakeGateway(t)
	opts := testOptions(gw.URL())
	opts.Compress = true
	sink := newRecordSink()
	startConn(t, opts, sink, nil)

	sc := gw.accept(t)
	sc.compress = true
	sc.hello(t, 45*time.Second)
	p := sc.expect(t, OpIdentify)
	var id Identify
	require.NoError(t, json.Unmarshal(p.D, &id))
	assert.True(t, id.Compress)

	sc.ready(t, 1, "abc", gw.URL())
	assert.Equal(t, events.KindReady, sink.next(t).Kind)
}

func TestConnSendSerializesThroughLoop(t *testing.T) {
	gw := newFakeGateway(t)
	c, _, _ := startConn(t, testOptions(gw.URL()), newRecordSink(), nil)

	err := c.UpdatePresence(context.Background(), PresenceUpdate{Status: "online"})
	assert.ErrorIs(t, err, ErrNotConnected)

	sc := gw.accept(t)
	sc.hello(t, 45*time.Second)
	sc.expect(t, OpIdentify)
	sc.ready(t, 1, "abc", gw.URL())
	assert.Eventually(t, func() bool { return c.State() == StateReady }, waitFor, 5*time.Millisecond)

	sendErr := make(chan error, 1)
	go func() {
		sendErr <- c.UpdatePresence(context.Background(), PresenceUpdate{Status: "idle"})
	}()
	p := sc.expect(t, OpPresenceUpdate)
	require.NoError(t, <-sendErr)
	var pu PresenceUpdate
	require.NoError(t, json.Unmarshal(p.D, &pu))
	assert.Equal(t, "idle", pu.Status)
	assert.NotNil(t, pu.Activities)
}

func TestConnGivesUpAfterAttemptCeiling(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	c := NewConn(testOptions(url), nil, nil, nil, nil)
	err := c.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectivity)
	assert.Equal(t, StateClosed, c.State())

	assert.ErrorIs(t, c.Send(context.Background(), OpHeartbeat, nil), ErrClosed)
	assert.Error(t, c.Run(context.Background()), "Run twice")
}

func TestManagerStartsAllShards(t *testing.T) {
	gw := newFakeGateway(t)
	var conns []*Conn
	for id := 0; id < 2; id++ {
		opts := testOptions(gw.URL())
		opts.ShardID = id
		opts.ShardCount = 2
		conns = append(conns, NewConn(opts, nil, newRecordSink(), nil, nil))
	}
	m := NewManager(conns, 1, nil)
	m.spacing = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.Run(ctx) }()

	seen := map[int]bool{}
	for i := 0; i < 2; i++ {
		sc := gw.accept(t)
		sc.hello(t, 45*time.Second)
		var id Identify
		require.NoError(t, json.Unmarshal(sc.expect(t, OpIdentify).D, &id))
		assert.Equal(t, 2, id.Shard[1])
		seen[id.Shard[0]] = true
		sc.ready(t, 1, "s", gw.URL())
	}
	assert.True(t, seen[0] && seen[1])
	assert.Eventually(t, func() bool {
		for _, st := range m.Statuses() {
			if st.State != "ready" {
				return false
			}
		}
		return true
	}, waitFor, 5*time.Millisecond)
	assert.NotNil(t, m.Shard(1))
	assert.Nil(t, m.Shard(5))

	cancel()
	assert.NoError(t, waitErr(t, errc))
}

func unreachableURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()
	return url
}

func TestManagerKeepsHealthyShardsWhenOneGivesUp(t *testing.T) {
	gw := newFakeGateway(t)
	healthy := testOptions(gw.URL())
	healthy.ShardCount = 2
	lost := testOptions(unreachableURL(t))
	lost.ShardID = 1
	lost.ShardCount = 2

	m := NewManager([]*Conn{
		NewConn(healthy, nil, newRecordSink(), nil, nil),
		NewConn(lost, nil, newRecordSink(), nil, nil),
	}, 2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- m.Run(ctx) }()

	sc := gw.accept(t)
	sc.hello(t, 45*time.Second)
	sc.expect(t, OpIdentify)
	sc.ready(t, 1, "s", gw.URL())
	require.Eventually(t, func() bool {
		return m.Shard(0).State() == StateReady
	}, waitFor, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return m.Shard(1).State() == StateClosed
	}, waitFor, 5*time.Millisecond)
	assert.Never(t, func() bool {
		return m.Shard(0).State() != StateReady
	}, 100*time.Millisecond, 10*time.Millisecond, "healthy shard must keep running")

	select {
	case err := <-errc:
		t.Fatalf("Run returned while a shard was still running: %v", err)
	default:
	}

	cancel()
	err := waitErr(t, errc)
	assert.ErrorIs(t, err, ErrConnectivity)
}

func TestManagerFatalErrorStopsAllShards(t *testing.T) {
	gw := newFakeGateway(t)
	var conns []*Conn
	for id := 0; id < 2; id++ {
		opts := testOptions(gw.URL())
		opts.ShardID = id
		opts.ShardCount = 2
		conns = append(conns, NewConn(opts, nil, newRecordSink(), nil, nil))
	}
	m := NewManager(conns, 2, nil)

	errc := make(chan error, 1)
	go func() { errc <- m.Run(context.Background()) }()

	var fatal *serverConn
	for i := 0; i < 2; i++ {
		sc := gw.accept(t)
		sc.hello(t, 45*time.Second)
		var id Identify
		require.NoError(t, json.Unmarshal(sc.expect(t, OpIdentify).D, &id))
		if id.Shard[0] == 1 {
			fatal = sc
		} else {
			sc.ready(t, 1, "s", gw.URL())
		}
	}
	require.NotNil(t, fatal)
	msg := websocket.FormatCloseMessage(4004, "Authentication failed.")
	require.NoError(t, fatal.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	err := waitErr(t, errc)
	var fe *FatalError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Equal(t, 1, fe.Shard)
	assert.Equal(t, StateClosed, m.Shard(0).State())
}
