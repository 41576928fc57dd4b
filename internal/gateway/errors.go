package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectivity is returned by Run once the reconnect attempt ceiling is reached.
	ErrConnectivity = errors.New("gateway unreachable")
	// ErrNotConnected is returned by Send while no session is ready.
	ErrNotConnected = errors.New("gateway not connected")
	// ErrClosed is returned for operations on a connection that has shut down.
	ErrClosed = errors.New("gateway connection closed")
	// ErrSessionLimit is returned when the daily session start limit is used up.
	ErrSessionLimit = errors.New("session start limit reached")
)

// FatalError is a protocol-level rejection that must not be retried:
// bad token, invalid shard, invalid intents and the like.
type FatalError struct {
	Shard  int
	Code   int
	Reason string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("shard %d: gateway closed with %d (%s)", e.Shard, e.Code, e.Reason)
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// errResume and errReset end one session and tell Run how to start the next.
var (
	errResume = errors.New("session interrupted, resuming")
	errReset  = errors.New("session invalidated, identifying")
)
