package engine

import (
	"sync"

	"github.com/flowgrid/flowgrid/types"
)

// defaultHistorySize bounds the in-memory run history.
const defaultHistorySize = 100

// History is a bounded, thread-safe ring of the most recent execution
// records. It is in-memory only; durable run storage lives outside the
// engine.
type History struct {
	mu      sync.RWMutex
	records []*types.ExecutionRecord
	limit   int
}

// NewHistory creates a history keeping at most limit records. A
// non-positive limit falls back to the default.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = defaultHistorySize
	}
	return &History{limit: limit}
}

// Add appends a record, evicting the oldest when over the limit.
func (h *History) Add(record *types.ExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, record)
	if len(h.records) > h.limit {
		h.records = h.records[len(h.records)-h.limit:]
	}
}

// Get returns the record with the given execution ID.
func (h *History) Get(id string) (*types.ExecutionRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for i := len(h.records) - 1; i >= 0; i-- {
		if h.records[i].ID == id {
			return h.records[i], true
		}
	}
	return nil, false
}

// Recent returns up to n records, newest first.
func (h *History) Recent(n int) []*types.ExecutionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.records) {
		n = len(h.records)
	}
	out := make([]*types.ExecutionRecord, 0, n)
	for i := len(h.records) - 1; i >= len(h.records)-n; i-- {
		out = append(out, h.records[i])
	}
	return out
}

// Len returns the number of retained records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}
