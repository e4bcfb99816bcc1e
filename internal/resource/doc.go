// Package resource implements the Controller used by the range/tag index's
// reclamation worker for pending-byte accounting and free-rate governance.
//
// The Controller tracks two things relevant to the deferred-reclamation
// pipeline:
//
//   - Pending bytes: buffers retired by Node growth or Dense/Sparse
//     conversion but not yet past their grace deadline.
//   - Free rate: how fast the reclamation worker is allowed to actually
//     drop those buffers, so a burst of conversions cannot monopolize a CPU
//     core doing nothing but frees.
//
// # Pending-buffer accounting
//
//	rc := resource.NewController(resource.Config{
//	    PendingLimitBytes: 64 << 20, // cap pending-reclaim bytes at 64MB
//	})
//
//	if err := rc.Reserve(int64(len(buf)) * 8); err != nil {
//	    // ErrPendingLimitExceeded - the reclaimer is backed up; free inline instead
//	}
//	defer rc.Release(int64(len(buf)) * 8)
//
// # Free-rate limiting
//
//	rc := resource.NewController(resource.Config{
//	    FreeRateBytesPerSec: 256 << 20,
//	})
//
//	if err := rc.WaitFreeRate(ctx, len(buf)*8); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// All Controller methods are safe for concurrent use.
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully - they become no-ops. This
// lets the reclamation worker run with resource governance disabled by simply
// passing a nil *Controller.
package resource
