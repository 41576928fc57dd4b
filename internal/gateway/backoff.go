package gateway

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff is the reconnect policy: exponential growth from Base, capped at
// Max, plus up to Jitter*delay of random spread on top of the capped delay.
type Backoff struct {
	MaxAttempts int
	Base        time.Duration
	Max         time.Duration
	Multiplier  float64
	Jitter      float64
}

// DefaultBackoff returns the policy used when none is configured.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts: 10,
		Base:        time.Second,
		Max:         2 * time.Minute,
		Multiplier:  2.0,
		Jitter:      0.2,
	}
}

// Delay returns the wait before the given attempt. Attempt 1 waits Base.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := math.Min(float64(b.Base)*math.Pow(b.Multiplier, float64(attempt-1)), float64(b.Max))
	if b.Jitter > 0 {
		delay += delay * b.Jitter * rand.Float64()
	}
	return time.Duration(delay)
}

// Exhausted reports whether attempt has reached the ceiling.
func (b Backoff) Exhausted(attempt int) bool {
	return attempt >= b.MaxAttempts
}

// Validate checks that the policy is usable.
func (b Backoff) Validate() error {
	if b.MaxAttempts <= 0 {
		return errors.New("MaxAttempts must be positive")
	}
	if b.Base <= 0 {
		return errors.New("Base must be positive")
	}
	if b.Max <= 0 {
		return errors.New("Max must be positive")
	}
	if b.Base > b.Max {
		return errors.New("Base cannot be greater than Max")
	}
	if b.Multiplier < 1 {
		return errors.New("Multiplier must be at least 1")
	}
	if b.Jitter < 0 || b.Jitter > 1 {
		return errors.New("Jitter must be within [0, 1]")
	}
	return nil
}
