package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"uxtrace/src/internal/config"
	"uxtrace/src/internal/core"
	"uxtrace/src/internal/format"
	"uxtrace/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
)

// CSVSink mirrors accepted records into the flat CSV delivery path.
// It buffers serialized lines independently of the JSON sink; a failed
// flush is logged and the lines go back to the front of its own
// buffer, never touching the JSON pipeline.
type CSVSink struct {
	config    *config.CSVConfig
	client    *fasthttp.Client
	formatter *format.CSVFormatter
	logger    *log.Logger

	mu    sync.Mutex
	lines []string

	// Serializes flushes so a re-queued batch is attempted before
	// anything newer
	flushMu sync.Mutex

	// Statistics
	totalDelivered atomic.Uint64
	totalBatches   atomic.Uint64
	failedBatches  atomic.Uint64
	lastDelivery   atomic.Value // time.Time
}

func NewCSVSink(cfg *config.CSVConfig, logger *log.Logger) (*CSVSink, error) {
	if cfg == nil {
		return nil, fmt.Errorf("csv config cannot be nil")
	}

	s := &CSVSink{
		config:    cfg,
		formatter: format.NewCSVFormatter(),
		logger:    logger,
		client: &fasthttp.Client{
			MaxConnsPerHost:     10,
			MaxIdleConnDuration: 10 * time.Second,
			ReadTimeout:         time.Duration(cfg.TimeoutSeconds) * time.Second,
			WriteTimeout:        time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
	s.lastDelivery.Store(time.Time{})
	return s, nil
}

// Append serializes the record into the sink's buffer and flushes in
// the background once the buffer reaches its threshold. Callers never
// wait on network completion.
func (s *CSVSink) Append(rec core.Record) {
	if !s.config.Enabled {
		return
	}

	line, err := s.formatter.Format(rec)
	if err != nil {
		s.logger.Warn("msg", "Failed to serialize record to CSV",
			"component", "csv_sink",
			"event_name", rec.EventName,
			"error", err)
		return
	}

	s.mu.Lock()
	s.lines = append(s.lines, string(line))
	full := int64(len(s.lines)) >= s.config.BatchSize
	s.mu.Unlock()

	if full {
		go s.Flush(context.Background())
	}
}

// Flush sends everything currently buffered. On failure the lines are
// re-queued at the front of the buffer ahead of newer appends. Only one
// flush runs at a time, so a failed batch is re-queued before any
// later snapshot is taken.
func (s *CSVSink) Flush(ctx context.Context) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if len(s.lines) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.lines
	s.lines = nil
	s.mu.Unlock()

	if err := s.sendLines(ctx, batch); err != nil {
		s.failedBatches.Add(1)
		s.logger.Warn("msg", "CSV flush failed, re-queuing lines",
			"component", "csv_sink",
			"lines", len(batch),
			"error", err)

		s.mu.Lock()
		merged := make([]string, 0, len(batch)+len(s.lines))
		merged = append(merged, batch...)
		merged = append(merged, s.lines...)
		s.lines = merged
		s.mu.Unlock()
		return
	}

	s.totalDelivered.Add(uint64(len(batch)))
	s.lastDelivery.Store(time.Now())
}

// Deliver satisfies Sink for callers that hand over a whole batch at
// once instead of mirroring record by record.
func (s *CSVSink) Deliver(ctx context.Context, batch []core.Record) error {
	lines := make([]string, 0, len(batch))
	for _, rec := range batch {
		line, err := s.formatter.Format(rec)
		if err != nil {
			s.logger.Warn("msg", "Failed to serialize record to CSV",
				"component", "csv_sink",
				"event_name", rec.EventName,
				"error", err)
			continue
		}
		lines = append(lines, string(line))
	}
	if err := s.sendLines(ctx, lines); err != nil {
		s.failedBatches.Add(1)
		return err
	}
	s.totalDelivered.Add(uint64(len(lines)))
	s.lastDelivery.Store(time.Now())
	return nil
}

// Buffered reports how many lines await delivery.
func (s *CSVSink) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}

func (s *CSVSink) sendLines(ctx context.Context, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.totalBatches.Add(1)

	body, err := json.Marshal(core.CSVBatch{
		CSVData: lines,
		Headers: format.CSVHeaders,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal CSV batch: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.config.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.SetBody(body)

	timeout := time.Duration(s.config.TimeoutSeconds) * time.Second
	if err := s.client.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("collector returned status %d", statusCode)
	}
	return nil
}

// GetStats returns the sink's statistics.
func (s *CSVSink) GetStats() SinkStats {
	lastDelivery, _ := s.lastDelivery.Load().(time.Time)
	return SinkStats{
		Type:           "csv",
		TotalDelivered: s.totalDelivered.Load(),
		TotalBatches:   s.totalBatches.Load(),
		FailedBatches:  s.failedBatches.Load(),
		LastDelivery:   lastDelivery,
		Details: map[string]any{
			"url":      s.config.URL,
			"buffered": s.Buffered(),
		},
	}
}
