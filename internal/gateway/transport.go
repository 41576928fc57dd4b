package gateway

import (
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is one websocket connection carrying JSON frames.
type Transport interface {
	// ReadFrame blocks for the next frame, already decompressed.
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
	// Close sends a close frame with code and tears the connection down.
	Close(code int) error
}

// Dialer opens Transports.
type Dialer interface {
	Dial(ctx context.Context, rawURL string) (Transport, error)
}

// WebsocketDialer dials the gateway with gorilla/websocket.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
	// Compress decompresses binary frames as zlib, matching identify's compress flag.
	Compress bool
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context, rawURL string) (Transport, error) {
	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, rawURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialing gateway: %w", err)
	}
	return &wsTransport{conn: conn, compress: d.Compress}, nil
}

type wsTransport struct {
	conn     *websocket.Conn
	compress bool
}

func (t *wsTransport) ReadFrame() ([]byte, error) {
	kind, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if kind == websocket.BinaryMessage {
		return inflate(data)
	}
	return data, nil
}

func (t *wsTransport) WriteFrame(data []byte) error {
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close(code int) error {
	msg := websocket.FormatCloseMessage(code, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}

// inflate decompresses one zlib-compressed payload.
func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening compressed frame: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflating frame: %w", err)
	}
	return out, nil
}

// closeCode extracts the close code carried by a read error, 0 if none.
func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		if ce.Code == websocket.CloseAbnormalClosure || ce.Code == websocket.CloseNoStatusReceived {
			return 0
		}
		return ce.Code
	}
	return 0
}

// gatewayURL appends the version and encoding query to base.
func gatewayURL(base string, version int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing gateway url %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("gateway url %q must be absolute", base)
	}
	q := u.Query()
	q.Set("v", strconv.Itoa(version))
	q.Set("encoding", "json")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
