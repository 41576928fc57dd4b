package gateway

import (
	"math/rand/v2"
	"time"
)

// HeartbeatState is the liveness bookkeeping of one connection. It is
// mutated only by the connection's own loop.
type HeartbeatState struct {
	Interval   time.Duration
	LastSent   time.Time
	LastAck    time.Time
	AckPending bool
}

// Sent records a heartbeat written at now.
func (h *HeartbeatState) Sent(now time.Time) {
	h.LastSent = now
	h.AckPending = true
}

// Acked records a heartbeat ack received at now.
func (h *HeartbeatState) Acked(now time.Time) {
	h.LastAck = now
	h.AckPending = false
}

// Missed reports whether the previous heartbeat was never acknowledged.
func (h *HeartbeatState) Missed() bool {
	return h.AckPending
}

// Latency is the round trip of the last acknowledged heartbeat.
func (h *HeartbeatState) Latency() time.Duration {
	if h.LastSent.IsZero() || h.LastAck.Before(h.LastSent) {
		return 0
	}
	return h.LastAck.Sub(h.LastSent)
}

// heartbeater ticks at the server-provided interval. It never touches the
// transport; each tick is a signal on fire for the connection loop.
type heartbeater struct {
	fire chan struct{}
	stop chan struct{}
	done chan struct{}
}

// firstBeat returns interval*jitter for a random jitter in [0, 1).
func firstBeat(interval time.Duration) time.Duration {
	return time.Duration(float64(interval) * rand.Float64())
}

func startHeartbeat(interval, first time.Duration) *heartbeater {
	h := &heartbeater{
		fire: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go h.run(interval, first)
	return h
}

func (h *heartbeater) run(interval, first time.Duration) {
	defer close(h.done)
	timer := time.NewTimer(first)
	defer timer.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-timer.C:
			// Coalesce: a tick the loop has not consumed yet stands for this one too.
			select {
			case h.fire <- struct{}{}:
			default:
			}
			timer.Reset(interval)
		}
	}
}

// Stop halts the ticker and waits for its goroutine to exit.
func (h *heartbeater) Stop() {
	close(h.stop)
	<-h.done
}
