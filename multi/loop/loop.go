// Package loop implements the single-threaded, readiness-driven core event
// loop of spec.md §4.9/§5: one iteration services whichever of {listener
// readable, TUN readable, wakeup schedule due, reap cadence due} is ready,
// then checks the shutdown flag, with a single blocking suspension point
// per iteration (the readiness wait).
//
// Grounded on infrastructure/routing/server_routing/routing/udp_chacha20/
// transport_handler.go's HandleTransport select{ <-ctx.Done(); default: ... }
// shape, generalized to also bound the wait on the broker's Schedule
// instead of blocking forever on a single read.
package loop

import (
	"context"
	"time"

	"tungo/multi/broker"
)

// MaxWait is the ceiling on how long a single readiness wait may block
// (spec.md §4.9), so a reap or shutdown check is never starved.
const MaxWait = 10 * time.Second

// Waiter blocks until at least one registered source is ready, or until
// timeout elapses, returning which sources fired. Implementations live
// behind build tags: an epoll-backed one on Linux, a portable net-based
// fallback elsewhere.
type Waiter interface {
	// Wait blocks up to timeout and reports whether the listener and/or
	// the TUN device became readable.
	Wait(timeout time.Duration) (listenerReady, tunReady bool, err error)
}

// Listener processes one readiness event on the transport listener.
type Listener interface {
	HandleReadable() error
}

// TUNHandler processes one readiness event on the TUN device.
type TUNHandler interface {
	HandleReadable() error
}

// Loop drives the core single-threaded iteration.
type Loop struct {
	b        *broker.Broker
	waiter   Waiter
	listener Listener
	tun      TUNHandler
}

// New builds a Loop over the given broker, readiness waiter, and handlers.
func New(b *broker.Broker, waiter Waiter, listener Listener, tun TUNHandler) *Loop {
	return &Loop{b: b, waiter: waiter, listener: listener, tun: tun}
}

// Run iterates until ctx is cancelled, returning ctx.Err() at that point.
// Each iteration: compute the wait ceiling from the schedule, block in the
// readiness wait, service whichever sources fired, drain expired
// timeouts, run the reaper at most once per second, then check ctx.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := time.Now()
		wait := l.b.Schedule().NextWait(now, MaxWait)

		listenerReady, tunReady, err := l.waiter.Wait(wait)
		if err != nil {
			return err
		}

		if listenerReady {
			_ = l.listener.HandleReadable()
		}
		if tunReady {
			_ = l.tun.HandleReadable()
		}

		l.serviceTimeouts(time.Now())

		now = time.Now()
		if l.b.ShouldReap(now) {
			l.b.Reap(now)
		}
	}
}

// serviceTimeouts pops every expired schedule entry and invokes its
// on-timeout callback, if the payload implements one. Entries whose
// payload doesn't implement OnTimeout are silently dropped — they were
// scheduled by a caller that forgot to wire a handler, which is a bug in
// that caller, not something the loop should crash over.
func (l *Loop) serviceTimeouts(now time.Time) {
	for _, e := range l.b.Schedule().PopExpired(now) {
		if handler, ok := e.Payload().(interface{ OnTimeout(time.Time) }); ok {
			handler.OnTimeout(now)
		}
	}
}
