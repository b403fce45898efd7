package queue

import (
	"sync"

	"uxtrace/src/internal/core"
)

// Queue is the in-memory ordered buffer between capture and delivery.
// A flush takes an atomic snapshot of the live buffer; a failed
// delivery puts its whole snapshot back at the front, ahead of records
// appended in the meantime, so older records are always attempted
// before newer ones.
type Queue struct {
	mu      sync.Mutex
	records []core.Record
}

func New() *Queue {
	return &Queue{}
}

// Append adds a record at the tail and returns the new length.
func (q *Queue) Append(rec core.Record) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records = append(q.records, rec)
	return len(q.records)
}

// Snapshot takes the current buffer and clears it in one step.
// Returns nil when the queue is empty.
func (q *Queue) Snapshot() []core.Record {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.records) == 0 {
		return nil
	}
	snap := q.records
	q.records = nil
	return snap
}

// RequeueFront puts a failed snapshot back ahead of everything appended
// since it was taken, preserving the snapshot's internal order.
func (q *Queue) RequeueFront(batch []core.Record) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := make([]core.Record, 0, len(batch)+len(q.records))
	merged = append(merged, batch...)
	merged = append(merged, q.records...)
	q.records = merged
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

// Clear drops everything. Only the explicit reset path uses this.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records = nil
}
