package rangeindex

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lilothar/gamma/internal/resource"
)

// reclaimToken wraps a superseded Node buffer with the deadline after which
// it is safe to drop the last reference to it.
type reclaimToken struct {
	bytes    int64
	deadline time.Time
}

// Reclaimer runs the background reclamation worker described in the
// deferred-reclamation design: superseded Node buffers are retired into a
// token stamped with a grace deadline rather than freed in place, so a
// reader that captured a buffer handle before the retirement never observes
// a mutated or freed buffer.
//
// Go's garbage collector already keeps a retired buffer alive for as long as
// any reader's slice header references it; Reclaimer exists to bound pending
// memory, rate-limit frees under churn (Run waits on the resource
// controller's free-rate limiter right before releasing each token), and
// give the grace period observable timing for tests, not to provide memory
// safety itself.
type Reclaimer struct {
	queue chan reclaimToken
	grace time.Duration
	ctrl  *resource.Controller
	log   *Logger

	stopping atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewReclaimer creates a Reclaimer with the given queue capacity and grace
// period. ctrl may be nil to disable pending-byte accounting and free-rate
// limiting.
func NewReclaimer(capacity int, grace time.Duration, ctrl *resource.Controller, log *Logger) *Reclaimer {
	if log == nil {
		log = NoopLogger()
	}
	r := &Reclaimer{
		queue: make(chan reclaimToken, capacity),
		grace: grace,
		ctrl:  ctrl,
		log:   log,
		done:  make(chan struct{}),
	}
	return r
}

// Submit enqueues bytesFreed for reclamation after the grace period. If the
// queue is full or the pending-memory budget is exhausted, the token is
// dropped and the bytes are released immediately instead of after the grace
// period - always a safe degeneration since the mutation worker is the sole
// writer and holds no reader-visible pointer to the retiring buffer at this
// point, only a (logged) latency cost.
func (r *Reclaimer) Submit(ctx context.Context, bytesFreed int64) {
	if bytesFreed <= 0 {
		return
	}

	if err := r.ctrl.Reserve(bytesFreed); err != nil {
		r.log.LogReclaim(ctx, int(bytesFreed), true)
		return
	}

	tok := reclaimToken{bytes: bytesFreed, deadline: time.Now().Add(r.grace)}
	select {
	case r.queue <- tok:
	default:
		r.ctrl.Release(bytesFreed)
		r.log.LogReclaim(ctx, int(bytesFreed), true)
	}
}

// Run executes the reclamation worker loop until Stop is called and the
// queue drains. It should be launched in its own goroutine.
func (r *Reclaimer) Run(ctx context.Context) {
	r.wg.Add(1)
	defer r.wg.Done()
	defer close(r.done)

	for {
		select {
		case tok, ok := <-r.queue:
			if !ok {
				return
			}
			if wait := time.Until(tok.deadline); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
				}
			}
			ioErr := r.ctrl.WaitFreeRate(ctx, int(tok.bytes))
			r.ctrl.Release(tok.bytes)
			r.log.LogReclaim(ctx, int(tok.bytes), ioErr != nil)
		case <-time.After(1 * time.Second):
			if r.stopping.Load() && len(r.queue) == 0 {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the reclamation worker to exit once the queue drains.
func (r *Reclaimer) Stop() {
	r.stopping.Store(true)
}

// Wait blocks until the reclamation worker goroutine has exited.
func (r *Reclaimer) Wait() {
	<-r.done
}

// PendingBytes reports bytes currently awaiting reclamation.
func (r *Reclaimer) PendingBytes() int64 {
	return r.ctrl.Pending()
}
