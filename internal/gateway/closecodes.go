package gateway

import "fmt"

// CloseClass is how a disconnect is recovered from.
type CloseClass int

const (
	// ClassResumable reconnects and resumes the stored session.
	ClassResumable CloseClass = iota
	// ClassReset drops the stored session and identifies from scratch.
	ClassReset
	// ClassFatal stops the connection and surfaces a FatalError.
	ClassFatal
)

func (c CloseClass) String() string {
	switch c {
	case ClassResumable:
		return "resumable"
	case ClassReset:
		return "reset"
	case ClassFatal:
		return "fatal"
	default:
		return fmt.Sprintf("CloseClass(%d)", int(c))
	}
}

// Close codes the client sends itself.
const (
	CloseNormal = 1000
	// CloseResumable is any non-1000 code; the server keeps the session alive.
	CloseResumable = 4000
	// CloseKeepSession ends the connection on shutdown without invalidating the session.
	CloseKeepSession = 4900
)

var closeReasons = map[int]string{
	4000: "unknown error",
	4001: "unknown opcode",
	4002: "decode error",
	4003: "not authenticated",
	4004: "authentication failed",
	4005: "already authenticated",
	4007: "invalid seq",
	4008: "rate limited",
	4009: "session timed out",
	4010: "invalid shard",
	4011: "sharding required",
	4012: "invalid api version",
	4013: "invalid intents",
	4014: "disallowed intents",
}

// CloseReason describes a platform close code.
func CloseReason(code int) string {
	if r, ok := closeReasons[code]; ok {
		return r
	}
	return "unrecognized close code"
}

// Classifier maps close codes onto recovery classes. Codes it does not
// know, and disconnects without a code, are resumable.
type Classifier struct {
	classes map[int]CloseClass
}

// NewClassifier builds a Classifier from the three code lists.
func NewClassifier(resumable, reset, fatal []int) *Classifier {
	c := &Classifier{classes: make(map[int]CloseClass, len(resumable)+len(reset)+len(fatal))}
	for _, code := range resumable {
		c.classes[code] = ClassResumable
	}
	for _, code := range reset {
		c.classes[code] = ClassReset
	}
	for _, code := range fatal {
		c.classes[code] = ClassFatal
	}
	return c
}

// Classify returns the class of code. Zero means no close code was received.
func (c *Classifier) Classify(code int) CloseClass {
	if c == nil || code == 0 {
		return ClassResumable
	}
	if class, ok := c.classes[code]; ok {
		return class
	}
	return ClassResumable
}
