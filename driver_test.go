package phlex

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// Finish closes every level a run opened, deepest first,
// fully draining each one (via Scheduler.Wait) before flushing its
// parent — so a fold finalized at "run" is visible to an observer at
// "job" without the caller manually flushing anything.
func TestDriver_FinishFlushesDeepestFirstAndCascades(t *testing.T) {
	catalog := NewCatalog()
	proxy := NewProxy(catalog, "demo")

	Fold1[int, int](proxy, "sum", func() int { return 0 }, func(state, v int) (int, error) {
		return state + v, nil
	}).InputFamily(Label("v")).OutputProducts("total").Partition("run")

	captured := &recorder{}
	Observer1[int](proxy, "capture_total", func(total int) error {
		captured.add(total)
		return nil
	}).InputFamily(Label("total"))

	require.NoError(t, catalog.Freeze())

	sched, err := NewScheduler(context.Background(), catalog)
	require.NoError(t, err)
	driver := NewDriver(sched, nil)

	base := Base("job", "driver")
	run := base.MakeChild("run", 0, "driver")

	ctx := context.Background()
	for i, v := range []int{1, 2, 3, 4} {
		event := run.MakeChild("event", i, "driver")
		require.NoError(t, event.Put("v", "int", v))
		event.Seal()
		require.NoError(t, driver.Yield(ctx, event))
	}

	require.NoError(t, driver.Finish(ctx))
	require.Equal(t, []any{10}, captured.snapshot())
}

// Run drains a PullSource (adapted via AsSource) by calling
// Next until it reports no more stores, then always closes every opened
// level before returning.
func TestDriver_RunDrivesPullSourceToExhaustion(t *testing.T) {
	catalog := NewCatalog()
	proxy := NewProxy(catalog, "demo")

	Transform1[int, int](proxy, "double", func(x int) (int, error) { return x * 2, nil }).
		InputFamily(Label("x")).OutputProducts("y")

	captured := &recorder{}
	Observer1[int](proxy, "capture", func(y int) error {
		captured.add(y)
		return nil
	}).InputFamily(Label("y"))

	require.NoError(t, catalog.Freeze())

	sched, err := NewScheduler(context.Background(), catalog)
	require.NoError(t, err)
	driver := NewDriver(sched, nil)

	base := Base("job", "driver")
	values := []int{1, 2, 3}
	idx := 0
	var mu sync.Mutex

	source := AsSource(PullSourceFunc(func() (*Store, bool, error) {
		mu.Lock()
		defer mu.Unlock()
		if idx >= len(values) {
			return nil, false, nil
		}
		s := base.MakeChild("run", idx, "driver")
		_ = s.Put("x", "int", values[idx])
		s.Seal()
		idx++
		return s, true, nil
	}))

	require.NoError(t, driver.Run(context.Background(), source))

	got := captured.snapshot()
	require.Len(t, got, 3)
	sum := 0
	for _, v := range got {
		sum += v.(int)
	}
	require.Equal(t, 12, sum) // (1+2+3)*2
}

func TestPullSourceFunc_SatisfiesPullSource(t *testing.T) {
	var ps PullSource = PullSourceFunc(func() (*Store, bool, error) {
		return nil, false, nil
	})
	_, more, err := ps.Next()
	require.NoError(t, err)
	require.False(t, more)
}
