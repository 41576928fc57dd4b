package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Handler consumes one event. Returned errors are logged, never propagated
// back to the connection.
type Handler func(ctx context.Context, ev Event) error

// Router fans dispatch events out to subscribers by kind. Subscribers of one
// kind run in registration order, followed by catch-all subscribers.
type Router struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	all      []Handler
	logger   *zap.Logger
}

// NewRouter creates an empty Router.
func NewRouter(logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		handlers: make(map[Kind][]Handler),
		logger:   logger.Named("events"),
	}
}

// Subscribe appends h to the subscribers of kind.
func (r *Router) Subscribe(kind Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Publish holds on to the old slice without the lock, so never append in place.
	cur := r.handlers[kind]
	next := make([]Handler, len(cur), len(cur)+1)
	copy(next, cur)
	r.handlers[kind] = append(next, h)
}

// SubscribeAll registers h for every event, KindUnknown included.
func (r *Router) SubscribeAll(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make([]Handler, len(r.all), len(r.all)+1)
	copy(next, r.all)
	r.all = append(next, h)
}

// Count returns the number of subscribers registered for kind.
func (r *Router) Count(kind Kind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[kind])
}

// Publish delivers ev to its subscribers synchronously. A failing or
// panicking subscriber does not stop delivery to the rest.
func (r *Router) Publish(ctx context.Context, ev Event) {
	r.mu.RLock()
	kinded := r.handlers[ev.Kind]
	all := r.all
	r.mu.RUnlock()

	if len(kinded) == 0 && len(all) == 0 {
		r.logger.Debug("no subscribers", zap.String("event", ev.Name), zap.Int("shard", ev.Shard))
		return
	}

	for _, h := range kinded {
		r.call(ctx, h, ev)
	}
	for _, h := range all {
		r.call(ctx, h, ev)
	}
}

func (r *Router) call(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("subscriber panicked",
				zap.String("event", ev.Name),
				zap.Int("shard", ev.Shard),
				zap.String("panic", fmt.Sprint(rec)),
			)
		}
	}()
	if err := h(ctx, ev); err != nil {
		r.logger.Warn("subscriber failed",
			zap.String("event", ev.Name),
			zap.Int("shard", ev.Shard),
			zap.Error(err),
		)
	}
}
