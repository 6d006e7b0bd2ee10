package phlex

import "sync"

// partitionManager serializes fold invocations sharing a partition key
// in arrival order while letting distinct keys proceed concurrently.
// Each observed key gets a dedicated goroutine reading off a small
// buffered channel, started lazily on first Combine and torn down once
// Finalize fires for that key.
type partitionManager struct {
	mu      sync.Mutex
	workers map[string]*partitionWorker
}

func newPartitionManager() *partitionManager {
	return &partitionManager{workers: make(map[string]*partitionWorker)}
}

type foldJobKind int

const (
	foldJobCombine foldJobKind = iota
	foldJobFinalize
)

type foldResult struct {
	outputs []any
	err     error
}

type foldJob struct {
	kind foldJobKind
	ins  []any
	done chan foldResult
}

type partitionWorker struct {
	key   string
	jobs  chan foldJob
	state any
	algo  *foldAlgo
	mgr   *partitionManager
}

func (m *partitionManager) worker(key string, algo *foldAlgo) *partitionWorker {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[key]
	if !ok {
		w = &partitionWorker{key: key, jobs: make(chan foldJob, 64), state: algo.initial(), algo: algo, mgr: m}
		m.workers[key] = w
		go w.run()
	}
	return w
}

func (w *partitionWorker) run() {
	for job := range w.jobs {
		switch job.kind {
		case foldJobCombine:
			s, err := w.algo.combine(w.state, job.ins)
			if err == nil {
				w.state = s
			}
			job.done <- foldResult{err: err}
		case foldJobFinalize:
			outs, err := w.algo.finalize(w.state)
			job.done <- foldResult{outputs: outs, err: err}
			w.mgr.reap(w.key)
			close(w.jobs)
			return
		}
	}
}

func (m *partitionManager) reap(key string) {
	m.mu.Lock()
	delete(m.workers, key)
	m.mu.Unlock()
}

// Combine serializes one invocation of algo's combiner against the
// running state for key, blocking until its turn in that key's FIFO.
func (m *partitionManager) Combine(key string, algo *foldAlgo, ins []any) error {
	w := m.worker(key, algo)
	done := make(chan foldResult, 1)
	w.jobs <- foldJob{kind: foldJobCombine, ins: ins, done: done}
	return (<-done).err
}

// Finalize runs algo's finalizer against key's terminal state and
// discards the partition's worker, so per-key state lives exactly from
// first combine to flush. A key that never saw a Combine call
// finalizes directly from algo's initial state, since no worker was ever
// started for it.
func (m *partitionManager) Finalize(key string, algo *foldAlgo) ([]any, error) {
	m.mu.Lock()
	w, ok := m.workers[key]
	m.mu.Unlock()
	if !ok {
		return algo.finalize(algo.initial())
	}
	done := make(chan foldResult, 1)
	w.jobs <- foldJob{kind: foldJobFinalize, done: done}
	res := <-done
	return res.outputs, res.err
}
