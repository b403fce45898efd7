package sink

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"uxtrace/src/internal/config"
	"uxtrace/src/internal/core"
	"uxtrace/src/internal/format"
	"uxtrace/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
)

// HTTPSink posts record batches as the JSON ingest envelope to the
// collector. Transient failures are retried with backoff inside one
// Deliver call; an exhausted Deliver returns the last error and the
// caller re-queues the snapshot.
type HTTPSink struct {
	config    *config.DeliveryConfig
	client    *fasthttp.Client
	formatter *format.JSONFormatter
	logger    *log.Logger

	// Statistics
	totalDelivered atomic.Uint64
	totalBatches   atomic.Uint64
	failedBatches  atomic.Uint64
	lastDelivery   atomic.Value // time.Time
}

func NewHTTPSink(cfg *config.DeliveryConfig, logger *log.Logger) (*HTTPSink, error) {
	if cfg == nil {
		return nil, fmt.Errorf("delivery config cannot be nil")
	}

	h := &HTTPSink{
		config:    cfg,
		formatter: format.NewJSONFormatter(),
		logger:    logger,
		client: &fasthttp.Client{
			MaxConnsPerHost:     10,
			MaxIdleConnDuration: 10 * time.Second,
			ReadTimeout:         time.Duration(cfg.TimeoutSeconds) * time.Second,
			WriteTimeout:        time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
	h.lastDelivery.Store(time.Time{})
	return h, nil
}

// Deliver sends the batch, retrying transient failures with backoff.
func (h *HTTPSink) Deliver(ctx context.Context, batch []core.Record) error {
	if len(batch) == 0 {
		return nil
	}

	h.totalBatches.Add(1)

	body, err := h.formatter.FormatBatch(batch)
	if err != nil {
		h.failedBatches.Add(1)
		return fmt.Errorf("failed to format batch: %w", err)
	}

	timeout := time.Duration(h.config.TimeoutSeconds) * time.Second
	retryDelay := time.Duration(h.config.RetryDelayMS) * time.Millisecond

	var lastErr error
	for attempt := int64(0); attempt <= h.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				h.failedBatches.Add(1)
				return ctx.Err()
			}

			// Back off, capped at the request timeout to avoid overflow
			newDelay := time.Duration(float64(retryDelay) * h.config.RetryBackoff)
			if newDelay > timeout || newDelay < retryDelay {
				retryDelay = timeout
			} else {
				retryDelay = newDelay
			}
		}

		statusCode, sendErr := h.send(body)
		if sendErr != nil {
			lastErr = fmt.Errorf("request failed: %w", sendErr)
			h.logger.Warn("msg", "Log delivery request failed",
				"component", "http_sink",
				"attempt", attempt+1,
				"max_retries", h.config.MaxRetries,
				"error", sendErr)
			continue
		}

		if statusCode >= 200 && statusCode < 300 {
			h.totalDelivered.Add(uint64(len(batch)))
			h.lastDelivery.Store(time.Now())
			h.logger.Debug("msg", "Batch delivered",
				"component", "http_sink",
				"batch_size", len(batch),
				"status_code", statusCode,
				"attempt", attempt+1)
			return nil
		}

		lastErr = fmt.Errorf("collector returned status %d", statusCode)
		h.logger.Warn("msg", "Collector rejected batch",
			"component", "http_sink",
			"attempt", attempt+1,
			"status_code", statusCode)
	}

	h.failedBatches.Add(1)
	return fmt.Errorf("failed to deliver batch after %d retries: %w", h.config.MaxRetries, lastErr)
}

func (h *HTTPSink) send(body []byte) (int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(h.config.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.SetBody(body)

	timeout := time.Duration(h.config.TimeoutSeconds) * time.Second
	if err := h.client.DoTimeout(req, resp, timeout); err != nil {
		return 0, err
	}
	return resp.StatusCode(), nil
}

// GetStats returns the sink's statistics.
func (h *HTTPSink) GetStats() SinkStats {
	lastDelivery, _ := h.lastDelivery.Load().(time.Time)
	return SinkStats{
		Type:           "http",
		TotalDelivered: h.totalDelivered.Load(),
		TotalBatches:   h.totalBatches.Load(),
		FailedBatches:  h.failedBatches.Load(),
		LastDelivery:   lastDelivery,
		Details: map[string]any{
			"url": h.config.URL,
		},
	}
}
