package capture

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uxtrace/src/internal/config"
	"uxtrace/src/internal/core"
	"uxtrace/src/internal/sink"
)

type fakeSink struct {
	mu      sync.Mutex
	batches [][]core.Record
	fail    bool
}

func (f *fakeSink) Deliver(_ context.Context, batch []core.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("delivery refused")
	}
	snap := make([]core.Record, len(batch))
	copy(snap, batch)
	f.batches = append(f.batches, snap)
	return nil
}

func (f *fakeSink) GetStats() sink.SinkStats {
	return sink.SinkStats{Type: "fake"}
}

func (f *fakeSink) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeSink) delivered() [][]core.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]core.Record, len(f.batches))
	copy(out, f.batches)
	return out
}

func testConfig() config.CaptureConfig {
	return config.CaptureConfig{
		Enabled:         true,
		BatchSize:       3,
		FlushIntervalMS: 60_000, // timer out of the way; tests drive flushes
		SettleDelayMS:   20,
		ThrottleMS:      20,
	}
}

func newTestLogger(t *testing.T, cfg config.CaptureConfig) (*Logger, *fakeSink) {
	t.Helper()
	fs := &fakeSink{}
	l := New(cfg, fs, nil, log.NewLogger())
	return l, fs
}

func TestLogger_ThresholdTriggersFlush(t *testing.T) {
	l, fs := newTestLogger(t, testConfig())

	l.LogInteraction("click", map[string]any{"x": 1})
	l.LogInteraction("click", map[string]any{"x": 2})
	assert.Empty(t, fs.delivered())

	l.LogInteraction("click", map[string]any{"x": 3})

	require.Eventually(t, func() bool {
		return len(fs.delivered()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	batch := fs.delivered()[0]
	require.Len(t, batch, 3)
	assert.Equal(t, 0, l.QueueLen())
}

func TestLogger_FailedDeliveryRequeuesInOrder(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 100 // manual flushes only
	l, fs := newTestLogger(t, cfg)
	fs.setFail(true)

	l.LogInteraction("click", map[string]any{"n": 1})
	l.LogInteraction("scroll", map[string]any{"n": 2})
	l.Flush()

	// Whole batch is back, ahead of anything appended afterwards
	assert.Equal(t, 2, l.QueueLen())
	l.LogInteraction("click", map[string]any{"n": 3})

	fs.setFail(false)
	l.Flush()

	batches := fs.delivered()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)
	assert.Equal(t, "click", batches[0][0].EventName)
	assert.Equal(t, "scroll", batches[0][1].EventName)
	assert.Equal(t, "click", batches[0][2].EventName)
	assert.Equal(t, 0, l.QueueLen())
}

func TestLogger_DisabledIsNoop(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	l, fs := newTestLogger(t, cfg)

	l.LogInteraction("click", nil)
	l.Flush()
	assert.Empty(t, fs.delivered())

	l.SetEnabled(true)
	l.LogInteraction("click", nil)
	l.Flush()
	assert.Len(t, fs.delivered(), 1)
}

func TestLogger_DropNoiseToggle(t *testing.T) {
	cfg := testConfig()
	cfg.DropNoise = true
	cfg.BatchSize = 100
	l, fs := newTestLogger(t, cfg)

	l.LogInteraction("http_request", map[string]any{"method": "OPTIONS"})
	l.Flush()
	assert.Empty(t, fs.delivered())

	// Flipped at runtime the same record is stored, tagged
	l.SetDropNoise(false)
	l.LogInteraction("http_request", map[string]any{"method": "OPTIONS"})
	l.Flush()

	batches := fs.delivered()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.True(t, batches[0][0].SystemNoise)
	assert.Equal(t, "cors_preflight", batches[0][0].NoiseReason)

	// And back again
	l.SetDropNoise(true)
	l.LogInteraction("http_request", map[string]any{"method": "OPTIONS"})
	l.Flush()
	assert.Len(t, fs.delivered(), 1)
}

func TestLogger_RecordShape(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 100
	l, fs := newTestLogger(t, cfg)
	l.SetPage("/menu", "http://localhost:3000/menu")
	l.SetViewport(core.Viewport{Width: 1280, Height: 720})
	l.SetUserID("user-42")

	l.LogInteraction("click", map[string]any{"component": "MenuPage"})
	l.Flush()

	batches := fs.delivered()
	require.Len(t, batches, 1)
	rec := batches[0][0]
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, rec.Timestamp, rec.EventTime)
	assert.Equal(t, l.SessionID(), rec.SessionID)
	assert.Equal(t, "user-42", rec.UserID)
	assert.Equal(t, "/menu", rec.Route)
	assert.Equal(t, "MenuPage", rec.Component)
	assert.Equal(t, core.Viewport{Width: 1280, Height: 720}, rec.Viewport)
}

func TestLogger_UniqueIDs(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 1000
	l, fs := newTestLogger(t, cfg)

	for i := 0; i < 50; i++ {
		l.LogInteraction("click", nil)
	}
	l.Flush()

	seen := make(map[string]bool)
	for _, rec := range fs.delivered()[0] {
		assert.False(t, seen[rec.ID], "duplicate id %s", rec.ID)
		seen[rec.ID] = true
	}
}

func TestLogger_SensitiveDetailsMasked(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 100
	l, fs := newTestLogger(t, cfg)

	l.LogInteraction("form_submit", map[string]any{
		"username": "alice",
		"password": "hunter2",
	})
	l.Flush()

	batches := fs.delivered()
	require.Len(t, batches, 1)
	rec := batches[0][0]

	assert.Equal(t, core.MaskToken, rec.Details["password"])
	assert.Equal(t, 7, rec.Details["password_length"])
	assert.Equal(t, 5, rec.Details["username_length"])

	// The raw secret never appears in the serialized form
	serialized, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.NotContains(t, string(serialized), "hunter2")
}

func TestLogger_InputBurstEmitsOneInputChange(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 100
	l, fs := newTestLogger(t, cfg)

	for _, v := range []string{"p", "pi", "piz", "pizz", "pizza"} {
		l.HandleInput("search-box", "text", v)
	}

	require.Eventually(t, func() bool {
		return l.QueueLen() == 1
	}, 2*time.Second, 10*time.Millisecond)
	l.Flush()

	batches := fs.delivered()
	require.Len(t, batches, 1)
	rec := batches[0][0]
	assert.Equal(t, core.EventInputChange, rec.EventName)
	assert.Equal(t, "pizza", rec.Details["inputValue"])
	assert.Equal(t, 5, rec.Details["finalValueLength"])
}

func TestLogger_BlurFlushesPendingInput(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 100
	cfg.SettleDelayMS = 60_000
	l, fs := newTestLogger(t, cfg)

	l.HandleInput("login-password", "password", "hunter2")
	l.HandleBlur("login-password", "password", "")
	assert.Equal(t, 1, l.QueueLen())
	l.Flush()

	rec := fs.delivered()[0][0]
	assert.Equal(t, core.EventInputChange, rec.EventName)
	assert.Equal(t, core.MaskToken, rec.Details["inputValue"])
	assert.Equal(t, 7, rec.Details["finalValueLength"])
	assert.Equal(t, "blur", rec.Details["trigger"])
}

func TestLogger_SubmitFieldPresence(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 100
	l, fs := newTestLogger(t, cfg)

	l.HandleSubmit("checkout", []FormControl{
		{Name: "address", Type: "text", Value: "12 High St"},
		{Name: "notes", Type: "text", Value: ""},
		{Name: "save_card", Type: "checkbox", Checked: true},
		{Name: "gift", Type: "checkbox", Checked: false},
	})
	l.Flush()

	rec := fs.delivered()[0][0]
	assert.Equal(t, core.EventFormSubmit, rec.EventName)
	assert.Equal(t, 4, rec.Details["field_count"])
	presence := rec.Details["field_presence"].(map[string]any)
	assert.Equal(t, true, presence["address"])
	assert.Equal(t, false, presence["notes"])
	assert.Equal(t, true, presence["save_card"])
	assert.Equal(t, false, presence["gift"])
	// Only presence is stored, never the value
	assert.NotContains(t, rec.Details, "address")
}

func TestLogger_ScrollThrottled(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 100
	l, _ := newTestLogger(t, cfg)

	for i := 0; i < 20; i++ {
		l.HandleScroll(0, i*10)
	}

	require.Eventually(t, func() bool {
		return l.QueueLen() == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Trailing edge only, one record per burst
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, l.QueueLen())
}

func TestLogger_AttachDispatchesSignals(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 100
	l, fs := newTestLogger(t, cfg)

	src := make(chan Signal, 4)
	l.Attach(src)
	src <- Signal{Kind: SignalClick, TargetID: "order-btn", X: 5, Y: 6}
	src <- Signal{Kind: SignalNavigation, From: "/", To: "/menu", Trigger: "link"}
	close(src)

	require.Eventually(t, func() bool {
		return l.QueueLen() == 2
	}, 2*time.Second, 10*time.Millisecond)
	l.Flush()

	batch := fs.delivered()[0]
	assert.Equal(t, core.EventClick, batch[0].EventName)
	assert.Equal(t, core.EventNavigation, batch[1].EventName)
}

func TestLogger_StartStopLifecycle(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 100
	cfg.SettleDelayMS = 60_000
	l, fs := newTestLogger(t, cfg)

	l.Start(context.Background())
	l.HandleInput("notes", "text", "wip")
	l.Stop()

	// Initial page_view plus the flushed pending input
	var names []string
	for _, batch := range fs.delivered() {
		for _, rec := range batch {
			names = append(names, rec.EventName)
		}
	}
	assert.Contains(t, names, core.EventPageView)
	assert.Contains(t, names, core.EventInputChange)
	assert.Equal(t, 0, l.QueueLen())
}
