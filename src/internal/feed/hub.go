package feed

import (
	"sync"
	"sync/atomic"

	"uxtrace/src/internal/core"

	"github.com/google/uuid"
	"github.com/lixenwraith/log"
)

// Live feed event types.
const (
	EventNewLog = "new_log"
	EventBuffer = "logs_buffer"
	EventReset  = "logs_reset"
)

// Event is one push to connected viewers.
type Event struct {
	Type string `json:"type"`

	// new_log
	Record *core.Record `json:"record,omitempty"`

	// logs_buffer backfill snapshot
	Records []core.Record `json:"records,omitempty"`
}

// Hub mirrors newly accepted records to every connected viewer and
// hands late joiners a backfill of recent history. Slow viewers drop
// events rather than stall the pipeline.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]chan Event
	backfill    []core.Record
	maxBackfill int
	bufferSize  int
	logger      *log.Logger

	// Statistics
	totalPublished atomic.Uint64
	totalDropped   atomic.Uint64
}

func NewHub(maxBackfill, bufferSize int, logger *log.Logger) *Hub {
	if maxBackfill < 0 {
		maxBackfill = 0
	}
	if bufferSize < 1 {
		bufferSize = core.DefaultBackfillSize
	}
	return &Hub{
		subscribers: make(map[string]chan Event),
		maxBackfill: maxBackfill,
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Subscribe registers a viewer. The first event on the channel is the
// logs_buffer backfill, so a new viewer sees history accumulated
// before it connected.
func (h *Hub) Subscribe() (string, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.NewString()
	// One extra slot so the backfill never competes with live pushes
	ch := make(chan Event, h.bufferSize+1)

	snapshot := make([]core.Record, len(h.backfill))
	copy(snapshot, h.backfill)
	ch <- Event{Type: EventBuffer, Records: snapshot}

	h.subscribers[id] = ch

	h.logger.Debug("msg", "Viewer subscribed",
		"component", "feed",
		"subscriber_id", id,
		"backfill", len(snapshot),
		"viewers", len(h.subscribers))
	return id, ch
}

// Unsubscribe removes a viewer and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
}

// Publish mirrors one accepted record to all viewers and records it in
// the backfill.
func (h *Hub) Publish(rec core.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.maxBackfill > 0 {
		h.backfill = append(h.backfill, rec)
		if len(h.backfill) > h.maxBackfill {
			h.backfill = h.backfill[len(h.backfill)-h.maxBackfill:]
		}
	}

	h.totalPublished.Add(1)
	event := Event{Type: EventNewLog, Record: &rec}
	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			h.totalDropped.Add(1)
			h.logger.Debug("msg", "Dropped event for slow viewer",
				"component", "feed",
				"subscriber_id", id)
		}
	}
}

// Reset clears the backfill and broadcasts the reset signal, so every
// viewer discards its state and fresh joiners see an empty buffer.
func (h *Hub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.backfill = nil
	event := Event{Type: EventReset}
	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			h.totalDropped.Add(1)
		}
	}
}

// Viewers reports the number of connected subscribers.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// GetStats returns hub statistics.
func (h *Hub) GetStats() map[string]any {
	h.mu.Lock()
	backfill := len(h.backfill)
	viewers := len(h.subscribers)
	h.mu.Unlock()

	return map[string]any{
		"viewers":         viewers,
		"backfill":        backfill,
		"total_published": h.totalPublished.Load(),
		"total_dropped":   h.totalDropped.Load(),
	}
}
