package phlex

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var errFoldBoom = errors.New("fold combine boom")

func sumFoldAlgo() *foldAlgo {
	return &foldAlgo{
		n: 1,
		combine: func(state any, ins []any) (any, error) {
			return state.(int) + ins[0].(int), nil
		},
		finalize: func(state any) ([]any, error) {
			return []any{state}, nil
		},
		initial: func() any { return 0 },
	}
}

// Every test here drives each key to Finalize so the worker goroutine it
// starts always exits before the test returns (see partitionWorker.run);
// leaving one running would trip the package's goleak-backed TestMain.

func TestPartitionManager_CombineThenFinalize(t *testing.T) {
	mgr := newPartitionManager()
	algo := sumFoldAlgo()

	require.NoError(t, mgr.Combine("k1", algo, []any{1}))
	require.NoError(t, mgr.Combine("k1", algo, []any{2}))
	require.NoError(t, mgr.Combine("k1", algo, []any{3}))

	outs, err := mgr.Finalize("k1", algo)
	require.NoError(t, err)
	require.Equal(t, []any{6}, outs)
}

// A partition key never combined finalizes straight from the
// fold's initial state, since no worker was ever started for it.
func TestPartitionManager_FinalizeWithoutCombineUsesInitialState(t *testing.T) {
	mgr := newPartitionManager()
	algo := sumFoldAlgo()

	outs, err := mgr.Finalize("never-seen", algo)
	require.NoError(t, err)
	require.Equal(t, []any{0}, outs)
}

func TestPartitionManager_DistinctKeysDoNotInterfere(t *testing.T) {
	mgr := newPartitionManager()
	algo := sumFoldAlgo()

	require.NoError(t, mgr.Combine("a", algo, []any{10}))
	require.NoError(t, mgr.Combine("b", algo, []any{100}))

	outsA, err := mgr.Finalize("a", algo)
	require.NoError(t, err)
	outsB, err := mgr.Finalize("b", algo)
	require.NoError(t, err)

	require.Equal(t, []any{10}, outsA)
	require.Equal(t, []any{100}, outsB)
}

// Invocations sharing a partition key are serialized FIFO
// against the same running state, even when submitted concurrently.
func TestPartitionManager_CombineSerializesConcurrentCallers(t *testing.T) {
	mgr := newPartitionManager()
	algo := sumFoldAlgo()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, mgr.Combine("shared", algo, []any{1}))
		}()
	}
	wg.Wait()

	outs, err := mgr.Finalize("shared", algo)
	require.NoError(t, err)
	require.Equal(t, []any{50}, outs)
}

func TestPartitionManager_CombineErrorLeavesStateUnchanged(t *testing.T) {
	mgr := newPartitionManager()
	calls := 0
	algo := &foldAlgo{
		n: 1,
		combine: func(state any, ins []any) (any, error) {
			calls++
			if calls == 2 {
				return nil, errFoldBoom
			}
			return state.(int) + ins[0].(int), nil
		},
		finalize: func(state any) ([]any, error) { return []any{state}, nil },
		initial:  func() any { return 0 },
	}

	require.NoError(t, mgr.Combine("k", algo, []any{1}))
	require.Error(t, mgr.Combine("k", algo, []any{1}))
	require.NoError(t, mgr.Combine("k", algo, []any{1}))

	outs, err := mgr.Finalize("k", algo)
	require.NoError(t, err)
	require.Equal(t, []any{2}, outs)
}
