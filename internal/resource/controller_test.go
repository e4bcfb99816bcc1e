package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Reserve(t *testing.T) {
	c := NewController(Config{PendingLimitBytes: 100})

	require.NoError(t, c.Reserve(50))
	assert.Equal(t, int64(50), c.Pending())

	require.NoError(t, c.Reserve(40))
	assert.Equal(t, int64(90), c.Pending())

	err := c.Reserve(20)
	assert.ErrorIs(t, err, ErrPendingLimitExceeded)
	assert.Equal(t, int64(90), c.Pending(), "a rejected reservation must not change the pending count")

	c.Release(50)
	assert.Equal(t, int64(40), c.Pending())

	require.NoError(t, c.Reserve(20))
	assert.Equal(t, int64(60), c.Pending())
}

func TestController_UnlimitedPending(t *testing.T) {
	c := NewController(Config{PendingLimitBytes: 0})

	require.NoError(t, c.Reserve(1000))
	assert.Equal(t, int64(1000), c.Pending())

	c.Release(500)
	assert.Equal(t, int64(500), c.Pending())
}

func TestController_PendingLimit(t *testing.T) {
	c := NewController(Config{PendingLimitBytes: 1024})
	assert.Equal(t, int64(1024), c.PendingLimit())

	unlimited := NewController(Config{})
	assert.Equal(t, int64(0), unlimited.PendingLimit())

	var nilController *Controller
	assert.Equal(t, int64(0), nilController.PendingLimit())
	assert.Equal(t, int64(0), nilController.Pending())
}

func TestController_NonPositiveAmountsAreNoOps(t *testing.T) {
	c := NewController(Config{PendingLimitBytes: 10})

	require.NoError(t, c.Reserve(-1))
	assert.Equal(t, int64(0), c.Pending())

	c.Release(-1)
	assert.Equal(t, int64(0), c.Pending())
}

func TestController_FreeRate(t *testing.T) {
	limited := NewController(Config{FreeRateBytesPerSec: 1000})
	require.NoError(t, limited.WaitFreeRate(context.Background(), 100))
	assert.True(t, limited.AllowFreeRate(100))

	unlimited := NewController(Config{})
	require.NoError(t, unlimited.WaitFreeRate(context.Background(), 1_000_000))
	assert.True(t, unlimited.AllowFreeRate(1_000_000))
}

func TestController_NilSafe(t *testing.T) {
	var c *Controller

	assert.NoError(t, c.Reserve(100))
	c.Release(100)
	assert.Equal(t, int64(0), c.Pending())

	assert.NoError(t, c.WaitFreeRate(context.Background(), 100))
	assert.True(t, c.AllowFreeRate(100))
}

func TestController_WaitFreeRateRespectsContextCancellation(t *testing.T) {
	c := NewController(Config{FreeRateBytesPerSec: 1}) // one byte/sec, burst 1
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// Drain the single-byte burst, then a second wait has nothing left and
	// must respect the context deadline rather than blocking forever.
	require.NoError(t, c.WaitFreeRate(context.Background(), 1))
	err := c.WaitFreeRate(ctx, 1)
	assert.Error(t, err)
}
