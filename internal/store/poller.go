package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// PollHandle drives a poll-emulated subscription for backends with no
// client-reachable push channel. It re-runs fetch on a fixed interval and
// delivers the full current result every tick, changed or not; the next tick
// is scheduled only after the current fetch completes, so at most one fetch
// per handle is in flight. Observed staleness is bounded by the interval.
//
// fetch returns a deliver closure instead of delivering itself: delivery runs
// while holding the handle's mutex and is gated on the active flag, which is
// what makes the unsubscribe guarantee hold. Once Stop returns, no callback
// can fire, even for a fetch that was already in flight.
type PollHandle struct {
	interval time.Duration
	fetch    func(ctx context.Context) (deliver func(), err error)
	onError  func(error)
	logger   *zap.Logger
	cancel   context.CancelFunc

	mu     sync.Mutex
	active bool
	timer  *time.Timer
}

// NewPollHandle builds a handle; call Start to begin polling.
func NewPollHandle(interval time.Duration, logger *zap.Logger,
	fetch func(ctx context.Context) (func(), error), onError func(error)) *PollHandle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PollHandle{interval: interval, fetch: fetch, onError: onError, logger: logger}
}

// Start runs the first fetch immediately (the initial snapshot delivery) and
// then keeps polling until Stop or ctx teardown.
func (h *PollHandle) Start(ctx context.Context) {
	ctx, h.cancel = context.WithCancel(ctx)
	h.active = true
	go h.tick(ctx)
}

func (h *PollHandle) tick(ctx context.Context) {
	// Cancellation is cooperative: checked before each scheduled fetch,
	// never a hard preemption of an issued call.
	if ctx.Err() != nil {
		return
	}
	deliver, err := h.fetch(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.active {
		return
	}
	if err != nil {
		h.logger.Warn("poll subscription fetch failed", zap.Error(err))
		if h.onError != nil {
			h.onError(err)
		}
	} else {
		deliver()
	}
	h.timer = time.AfterFunc(h.interval, func() { h.tick(ctx) })
}

// Stop tears the handle down. It must not be called from inside the
// subscription's own callback.
func (h *PollHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.active {
		return
	}
	h.active = false
	if h.timer != nil {
		h.timer.Stop()
	}
	if h.cancel != nil {
		h.cancel()
	}
}
