package phlex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackpressure_DisabledNeverBlocks(t *testing.T) {
	bp := newBackpressure(0, 0)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		require.NoError(t, bp.acquire(ctx))
	}
}

// Once in-flight reaches high, further acquisitions block
// until in-flight has drained back down to low.
func TestBackpressure_HighWatermarkBlocksUntilLowDrain(t *testing.T) {
	bp := newBackpressure(2, 1)
	ctx := context.Background()

	require.NoError(t, bp.acquire(ctx))
	require.NoError(t, bp.acquire(ctx))

	unblocked := make(chan struct{})
	go func() {
		_ = bp.acquire(ctx)
		close(unblocked)
	}()

	select {
	case <-unblocked:
		t.Fatal("acquire should have blocked at the high watermark")
	case <-time.After(50 * time.Millisecond):
	}

	bp.release() // inFlight drops to 1, == low, unblocks waiters
	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("acquire never unblocked after draining to the low watermark")
	}
	bp.release()
	bp.release()
}

// acquire checks ctx at loop entry, before ever calling cond.Wait — so an
// already-cancelled context is honored immediately rather than blocking at
// all. (A context cancelled only *while* parked in cond.Wait is the
// documented gap: it's re-checked on the next wakeup, not observed until
// then, since sync.Cond has no cancellation channel of its own.)
func TestBackpressure_AcquireHonorsAlreadyCancelledContext(t *testing.T) {
	bp := newBackpressure(1, 1)
	require.NoError(t, bp.acquire(context.Background())) // fills the single slot

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bp.acquire(cancelCtx)
	require.Error(t, err)
}
