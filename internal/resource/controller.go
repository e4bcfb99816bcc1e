package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrPendingLimitExceeded is returned when reserving would push the
// pending-reclamation byte count past its configured limit.
var ErrPendingLimitExceeded = errors.New("resource: pending-reclamation limit exceeded")

// Config holds the reclamation pipeline's resource limits.
type Config struct {
	// PendingLimitBytes caps the bytes a Controller will track as reserved
	// (awaiting their grace deadline) before Reserve starts refusing new
	// buffers. 0 disables the cap; bytes are still tracked, just never
	// rejected.
	PendingLimitBytes int64

	// FreeRateBytesPerSec caps how many bytes WaitFreeRate lets the
	// reclamation worker release per second. 0 disables the cap.
	FreeRateBytesPerSec int64
}

// Controller tracks the reclamation pipeline's pending-reclamation byte
// budget (one Controller serves every field of a Coordinator) and throttles
// the rate at which its reclamation worker is allowed to actually free
// retired buffers.
//
// Unlike a general-purpose memory/IO governor, Controller has exactly one
// caller pattern: Reserve happens once per retired buffer (Reclaimer.Submit),
// WaitFreeRate happens once per queued buffer right before it's dropped
// (Reclaimer.Run), and Release follows on the same buffer. When Submit finds
// the reclamation queue full, Release follows Reserve directly. There is no concurrent-worker-slot concern here, only a pending
// budget and a free-rate gate.
type Controller struct {
	cfg Config

	reserved     *semaphore.Weighted // nil if PendingLimitBytes is 0 (unlimited)
	pendingBytes atomic.Int64

	freeRate *rate.Limiter
}

// NewController creates a Controller for the given limits.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.PendingLimitBytes > 0 {
		c.reserved = semaphore.NewWeighted(cfg.PendingLimitBytes)
	}
	if cfg.FreeRateBytesPerSec > 0 {
		c.freeRate = rate.NewLimiter(rate.Limit(cfg.FreeRateBytesPerSec), int(cfg.FreeRateBytesPerSec))
	}

	return c
}

// Reserve claims bytes against the pending-reclamation budget. It never
// blocks: a caller that can't reserve (ErrPendingLimitExceeded) is expected
// to free the buffer inline instead of queuing it, which is always a safe,
// only-slower fallback for this pipeline.
func (c *Controller) Reserve(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.reserved != nil && !c.reserved.TryAcquire(bytes) {
		return ErrPendingLimitExceeded
	}
	c.pendingBytes.Add(bytes)
	return nil
}

// Release gives back bytes previously claimed with Reserve.
func (c *Controller) Release(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.reserved != nil {
		c.reserved.Release(bytes)
	}
	c.pendingBytes.Add(-bytes)
}

// Pending reports the byte count currently reserved (awaiting its grace
// deadline or a free-rate slot).
func (c *Controller) Pending() int64 {
	if c == nil {
		return 0
	}
	return c.pendingBytes.Load()
}

// PendingLimit reports the configured pending-reclamation byte cap, 0 if
// unlimited.
func (c *Controller) PendingLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.PendingLimitBytes
}

// WaitFreeRate blocks until the free-rate budget has room for bytes, or ctx
// is done. Called once per buffer, right before it is actually freed.
func (c *Controller) WaitFreeRate(ctx context.Context, bytes int) error {
	if c == nil || c.freeRate == nil {
		return nil
	}
	return c.freeRate.WaitN(ctx, bytes)
}

// AllowFreeRate reports whether bytes fits the free-rate budget right now,
// without waiting.
func (c *Controller) AllowFreeRate(bytes int) bool {
	if c == nil || c.freeRate == nil {
		return true
	}
	return c.freeRate.AllowN(time.Now(), bytes)
}
