package phlex

import "sync"

// DispatchRecord is one completed dispatch of a node against a store,
// kept for tests and the debug extension to inspect after the fact.
type DispatchRecord struct {
	Node   string
	Level  LevelID
	Stage  Stage
	Failed bool
}

// History is a bounded ring of recently-dispatched (node, store) pairs
// for inspection after the fact. It carries no parent/child structure —
// the product-store hierarchy itself already is that tree (store.go) —
// so this is a flat ring keyed by insertion order.
type History struct {
	mu      sync.Mutex
	records []DispatchRecord
	limit   int
}

// NewHistory returns a History that keeps at most limit records,
// evicting the oldest once full.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = 1024
	}
	return &History{limit: limit}
}

// Record appends rec, evicting the oldest entry if the ring is full.
func (h *History) Record(rec DispatchRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) >= h.limit {
		h.records = h.records[1:]
	}
	h.records = append(h.records, rec)
}

// ForNode returns every recorded dispatch for nodeName, oldest first.
func (h *History) ForNode(nodeName string) []DispatchRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]DispatchRecord, 0)
	for _, r := range h.records {
		if r.Node == nodeName {
			out = append(out, r)
		}
	}
	return out
}

// Failed returns every recorded failed dispatch, oldest first.
func (h *History) Failed() []DispatchRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]DispatchRecord, 0)
	for _, r := range h.records {
		if r.Failed {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of records currently retained.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
