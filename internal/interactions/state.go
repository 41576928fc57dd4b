package interactions

import "errors"

// State is the reply state of one interaction.
type State int

const (
	StatePending State = iota
	StateDeferred
	StateResponded
	StateFollowedUp
	StateExpired
	StateTokenExpired
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateDeferred:
		return "deferred"
	case StateResponded:
		return "responded"
	case StateFollowedUp:
		return "followed_up"
	case StateExpired:
		return "expired"
	case StateTokenExpired:
		return "token_expired"
	default:
		return "unknown"
	}
}

// Acknowledged reports whether an initial response was sent.
func (s State) Acknowledged() bool {
	return s == StateDeferred || s == StateResponded || s == StateFollowedUp
}

var (
	// ErrAlreadyResponded is returned by an initial response sent after another.
	ErrAlreadyResponded = errors.New("interaction already responded")
	// ErrInteractionExpired is returned once the acknowledgement deadline
	// passed with nothing sent.
	ErrInteractionExpired = errors.New("interaction expired")
	// ErrTokenExpired is returned once the interaction token is no longer valid.
	ErrTokenExpired = errors.New("interaction token expired")
	// ErrUnknownFollowup is returned for a followup ID this interaction never created.
	ErrUnknownFollowup = errors.New("unknown followup")
	// ErrInvalidState is returned for an operation that needs an initial
	// response first, such as editing before any reply.
	ErrInvalidState = errors.New("invalid interaction state")
	// ErrClosed is returned after the responder was shut down.
	ErrClosed = errors.New("responder closed")
)
