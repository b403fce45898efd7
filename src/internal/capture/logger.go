package capture

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"uxtrace/src/internal/config"
	"uxtrace/src/internal/core"
	"uxtrace/src/internal/debounce"
	"uxtrace/src/internal/noise"
	"uxtrace/src/internal/queue"
	"uxtrace/src/internal/sink"

	"github.com/google/uuid"
	"github.com/lixenwraith/log"
)

// Logger is the event capture layer. Every UI signal or manual log call
// funnels through LogInteraction: classify, sanitize, enqueue, mirror
// to the CSV path, and flush on size or timer. All failures stay inside
// this layer; callers never see an error and never wait on delivery.
type Logger struct {
	cfg        config.CaptureConfig
	classifier *noise.Classifier
	tracker    *debounce.Tracker
	queue      *queue.Queue
	delivery   sink.Sink
	csv        *sink.CSVSink
	logger     *log.Logger

	sessionID string
	browserID string
	userID    atomic.Value // string
	enabled   atomic.Bool
	dropNoise atomic.Bool

	route    atomic.Value // string
	pageURL  atomic.Value // string
	viewport atomic.Value // core.Viewport

	scrollThrottle *throttle
	resizeThrottle *throttle

	// Serializes deliveries so a re-queued batch is attempted before
	// anything newer
	flushMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup

	// Statistics
	totalCaptured atomic.Uint64
	totalDropped  atomic.Uint64
	totalFlushes  atomic.Uint64
}

// New creates the capture layer. The session id is generated once here
// and stays constant for the logger's lifetime.
func New(cfg config.CaptureConfig, delivery sink.Sink, csv *sink.CSVSink, logger *log.Logger) *Logger {
	l := &Logger{
		cfg: cfg,
		classifier: noise.New(noise.Config{
			StrictBusinessFilter: cfg.StrictBusinessFilter,
			BusinessPrefixes:     cfg.BusinessPrefixes,
		}),
		queue:     queue.New(),
		delivery:  delivery,
		csv:       csv,
		logger:    logger,
		sessionID: uuid.NewString(),
		browserID: uuid.NewString(),
		done:      make(chan struct{}),
	}
	l.enabled.Store(cfg.Enabled)
	l.dropNoise.Store(cfg.DropNoise)
	l.userID.Store(core.AnonymousUser)
	l.route.Store("")
	l.pageURL.Store("")
	l.viewport.Store(core.Viewport{})

	throttleInterval := time.Duration(cfg.ThrottleMS) * time.Millisecond
	l.scrollThrottle = newThrottle(throttleInterval)
	l.resizeThrottle = newThrottle(throttleInterval)

	l.tracker = debounce.NewTracker(
		time.Duration(cfg.SettleDelayMS)*time.Millisecond,
		l.onFieldSettled,
	)

	return l
}

// Start launches the periodic flush loop and records the initial page
// view.
func (l *Logger) Start(ctx context.Context) {
	l.ctx, l.cancel = context.WithCancel(ctx)

	l.wg.Add(1)
	go l.flushLoop()

	l.PageView()

	l.logger.Info("msg", "Capture layer started",
		"component", "capture",
		"session_id", l.sessionID,
		"batch_size", l.cfg.BatchSize,
		"flush_interval_ms", l.cfg.FlushIntervalMS)
}

// Stop flushes pending debounce state and delivers whatever is still
// queued, then shuts the flush loop down.
func (l *Logger) Stop() {
	l.tracker.Stop()
	close(l.done)
	l.wg.Wait()

	l.Flush()
	if l.csv != nil {
		l.csv.Flush(context.Background())
	}
	if l.cancel != nil {
		l.cancel()
	}

	l.logger.Info("msg", "Capture layer stopped",
		"component", "capture",
		"total_captured", l.totalCaptured.Load(),
		"total_dropped", l.totalDropped.Load())
}

// SessionID returns the stable per-instance session identifier.
func (l *Logger) SessionID() string {
	return l.sessionID
}

// SetUserID attaches the actor identity after authentication.
func (l *Logger) SetUserID(id string) {
	if id == "" {
		id = core.AnonymousUser
	}
	l.userID.Store(id)
}

// SetEnabled toggles capture globally. Disabled means every log call
// is a no-op.
func (l *Logger) SetEnabled(enabled bool) {
	l.enabled.Store(enabled)
}

// SetDropNoise switches between discarding noise records and keeping
// them tagged. Takes effect for the next log call.
func (l *Logger) SetDropNoise(drop bool) {
	l.dropNoise.Store(drop)
}

// SetPage updates the route and URL context attached to new records.
func (l *Logger) SetPage(route, url string) {
	l.route.Store(route)
	l.pageURL.Store(url)
}

// SetViewport updates the viewport snapshot attached to new records.
func (l *Logger) SetViewport(v core.Viewport) {
	l.viewport.Store(v)
}

// LogInteraction is the generic entry point. The record is fully
// constructed, classified, and sanitized before enqueue; afterwards it
// is immutable.
func (l *Logger) LogInteraction(eventName string, details map[string]any) {
	if !l.enabled.Load() {
		return
	}

	verdict := l.classifier.Classify(eventName, details)
	if verdict.Noise && l.dropNoise.Load() {
		l.totalDropped.Add(1)
		l.logger.Debug("msg", "Noise record dropped before enqueue",
			"component", "capture",
			"event_name", eventName,
			"noise_reason", verdict.Reason)
		return
	}

	rec := l.buildRecord(eventName, details, verdict)
	l.totalCaptured.Add(1)

	n := l.queue.Append(rec)
	if l.csv != nil {
		l.csv.Append(rec)
	}

	if int64(n) >= l.cfg.BatchSize {
		go l.Flush()
	}
}

// LogButtonClick records a click on a named control.
func (l *Logger) LogButtonClick(buttonID, buttonText string) {
	l.LogInteraction(core.EventButtonClick, map[string]any{
		"button_id":   buttonID,
		"button_text": buttonText,
	})
}

// LogNavigation records a route change.
func (l *Logger) LogNavigation(from, to string) {
	l.LogInteraction(core.EventNavigation, map[string]any{
		"from": from,
		"to":   to,
	})
}

// LogError records a client-side error.
func (l *Logger) LogError(message, stack string, context map[string]any) {
	details := map[string]any{
		"message": message,
		"stack":   stack,
	}
	for k, v := range context {
		if _, exists := details[k]; !exists {
			details[k] = v
		}
	}
	l.LogInteraction(core.EventError, details)
}

// LogPerformance records a latency measurement.
func (l *Logger) LogPerformance(metric string, durationMS float64, context map[string]any) {
	details := map[string]any{
		"metric":      metric,
		"duration_ms": durationMS,
	}
	for k, v := range context {
		if _, exists := details[k]; !exists {
			details[k] = v
		}
	}
	l.LogInteraction(core.EventPerformance, details)
}

// LogHTTPRequest records an application HTTP call. These are the main
// subjects of noise classification.
func (l *Logger) LogHTTPRequest(method, url string, statusCode int, durationMS float64) {
	l.LogInteraction(core.EventHTTPRequest, map[string]any{
		"method":      method,
		"url":         url,
		"statusCode":  statusCode,
		"duration_ms": durationMS,
	})
}

// PageView records the current page context.
func (l *Logger) PageView() {
	l.LogInteraction(core.EventPageView, map[string]any{
		"route": l.route.Load().(string),
		"url":   l.pageURL.Load().(string),
	})
}

// Flush snapshots the queue and attempts one delivery per configured
// sink. A failed snapshot goes back to the front of the live queue,
// ahead of records appended during the attempt.
func (l *Logger) Flush() {
	l.flushMu.Lock()
	defer l.flushMu.Unlock()

	snapshot := l.queue.Snapshot()
	if snapshot == nil {
		return
	}
	l.totalFlushes.Add(1)

	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := l.delivery.Deliver(ctx, snapshot); err != nil {
		l.queue.RequeueFront(snapshot)
		l.logger.Warn("msg", "Delivery failed, batch re-queued",
			"component", "capture",
			"batch_size", len(snapshot),
			"queued", l.queue.Len(),
			"error", err)
	}
}

// QueueLen reports how many records await delivery.
func (l *Logger) QueueLen() int {
	return l.queue.Len()
}

// Reset drops all queued records. The explicit reset is the only path
// that discards captured data.
func (l *Logger) Reset() {
	l.queue.Clear()
}

// GetStats returns capture statistics.
func (l *Logger) GetStats() map[string]any {
	return map[string]any{
		"session_id":     l.sessionID,
		"total_captured": l.totalCaptured.Load(),
		"total_dropped":  l.totalDropped.Load(),
		"total_flushes":  l.totalFlushes.Load(),
		"queued":         l.queue.Len(),
	}
}

func (l *Logger) flushLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Duration(l.cfg.FlushIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Flush()
		case <-l.done:
			return
		}
	}
}

func (l *Logger) buildRecord(eventName string, details map[string]any, verdict noise.Verdict) core.Record {
	now := core.NowISO()
	sanitized := sanitizeDetails(details)

	rec := core.Record{
		ID:          uuid.NewString(),
		Timestamp:   now,
		EventTime:   now,
		EventName:   eventName,
		SessionID:   l.sessionID,
		BrowserID:   l.browserID,
		UserID:      l.userID.Load().(string),
		Route:       l.route.Load().(string),
		URL:         l.pageURL.Load().(string),
		Details:     sanitized,
		SystemNoise: verdict.Noise,
		NoiseReason: verdict.Reason,
		Viewport:    l.viewport.Load().(core.Viewport),
	}
	if c, ok := sanitized["component"].(string); ok {
		rec.Component = c
	}
	return rec
}

// onFieldSettled turns a debounce emission into an input_change record.
func (l *Logger) onFieldSettled(e debounce.Emission) {
	l.LogInteraction(core.EventInputChange, map[string]any{
		"field_id":         e.Field.ID,
		"input_type":       e.Field.Type,
		"inputValue":       e.Value,
		"finalValueLength": e.FinalLength,
		"trigger":          e.Trigger,
	})
}

// sanitizeDetails copies the payload, masks sensitive values, and
// derives length counts so raw secrets never reach a sink.
func sanitizeDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if isSensitiveKey(k) {
			if s, ok := v.(string); ok {
				out[k] = core.MaskToken
				out[k+"_length"] = len(s)
				continue
			}
			out[k] = core.MaskToken
			continue
		}
		out[k] = v
	}
	if username, ok := details["username"].(string); ok {
		out["username_length"] = len(username)
	}
	return out
}

func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") ||
		strings.Contains(k, "secret") ||
		strings.Contains(k, "token")
}
