package sink

import (
	"context"
	"time"

	"uxtrace/src/internal/core"
)

// Sink delivers a batch of records to its destination. A nil error
// means the whole batch was accepted; any other outcome leaves the
// caller responsible for re-queuing.
type Sink interface {
	// Deliver attempts one delivery of the batch.
	Deliver(ctx context.Context, batch []core.Record) error

	// GetStats returns sink statistics
	GetStats() SinkStats
}

// SinkStats contains statistics about a sink.
type SinkStats struct {
	Type           string
	TotalDelivered uint64
	TotalBatches   uint64
	FailedBatches  uint64
	LastDelivery   time.Time
	Details        map[string]any
}
