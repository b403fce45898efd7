package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"uxtrace/src/internal/config"
	"uxtrace/src/internal/core"
	"uxtrace/src/internal/feed"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func newTestViewer(baseURL string) *Viewer {
	return NewViewer(config.DashboardConfig{
		BaseURL:        baseURL,
		FetchLimit:     100,
		TimeoutSeconds: 5,
	}, newTestLogger())
}

func TestViewer_Fetch(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/logs", r.URL.Path)
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]any{
			"logs": []core.Record{
				{ID: "a", EventName: core.EventButtonClick, SessionID: "s1"},
				{ID: "b", EventName: core.EventClick, SessionID: "s1"},
			},
			"total": 2,
		})
	}))
	defer server.Close()

	v := newTestViewer(server.URL)

	logs, err := v.Fetch(context.Background(), Filter{Action: "button_click", Limit: 50})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "a", logs[0].ID)
	assert.Contains(t, gotQuery, "limit=50")
	assert.Contains(t, gotQuery, "action=button_click")
}

func TestViewer_FetchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	v := newTestViewer(server.URL)

	_, err := v.Fetch(context.Background(), Filter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestViewer_Stats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/logs/stats", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"total_logs":     42,
			"total_sessions": 3,
		})
	}))
	defer server.Close()

	v := newTestViewer(server.URL)

	stats, err := v.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(42), stats["total_logs"])
}

func TestViewer_Subscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/logs/stream", r.URL.Path)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		fmt.Fprintf(w, "event: connected\ndata: {\"client_id\":\"c1\"}\n\n")
		fmt.Fprintf(w, "event: logs_buffer\ndata: {\"records\":[{\"id\":\"a\"},{\"id\":\"b\"}]}\n\n")
		fmt.Fprintf(w, ": heartbeat\n\n")
		fmt.Fprintf(w, "event: new_log\ndata: {\"id\":\"c\",\"event_name\":\"click\"}\n\n")
		fmt.Fprintf(w, "event: logs_reset\ndata: {}\n\n")
		flusher.Flush()
	}))
	defer server.Close()

	v := newTestViewer(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := v.Subscribe(ctx)
	require.NoError(t, err)

	event := <-events
	require.Equal(t, feed.EventBuffer, event.Type)
	require.Len(t, event.Records, 2)
	assert.Equal(t, "a", event.Records[0].ID)

	event = <-events
	require.Equal(t, feed.EventNewLog, event.Type)
	require.NotNil(t, event.Record)
	assert.Equal(t, "c", event.Record.ID)

	event = <-events
	assert.Equal(t, feed.EventReset, event.Type)

	// Server closed the stream; channel drains and closes
	_, open := <-events
	assert.False(t, open)
}

func TestFilter_Match(t *testing.T) {
	rec := core.Record{
		ID:        "a",
		EventName: core.EventButtonClick,
		SessionID: "sess-1",
		UserID:    "user-1",
		Component: "MenuPage",
	}

	testCases := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter matches", Filter{}, true},
		{"action match", Filter{Action: "button_click"}, true},
		{"action mismatch", Filter{Action: "scroll"}, false},
		{"component match", Filter{Component: "MenuPage"}, true},
		{"session mismatch", Filter{SessionID: "other"}, false},
		{"user match", Filter{UserID: "user-1"}, true},
		{"combined", Filter{Action: "button_click", UserID: "user-1"}, true},
		{"combined mismatch", Filter{Action: "button_click", UserID: "other"}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.filter.Match(rec))
		})
	}
}

func TestRecordAction_Fallbacks(t *testing.T) {
	assert.Equal(t, "click", core.Record{EventName: "click"}.Action())
	assert.Equal(t, "submit", core.Record{Details: map[string]any{"event": "submit"}}.Action())
	assert.Equal(t, "nav", core.Record{Details: map[string]any{"action": "nav"}}.Action())
	assert.Equal(t, core.UnknownAction, core.Record{}.Action())
}

func TestFormatRecord(t *testing.T) {
	rec := core.Record{
		ID:        "a",
		Timestamp: "2026-08-30T10:00:00Z",
		EventName: core.EventButtonClick,
		SessionID: "sess-12345678",
		UserID:    "user-1",
		Component: "MenuPage",
		Route:     "/menu",
	}

	line := FormatRecord(rec)
	assert.Contains(t, line, "button_click")
	assert.Contains(t, line, "user=user-1")
	assert.Contains(t, line, "component=MenuPage")
	assert.Contains(t, line, "route=/menu")
}

func TestDisplayFallbacks(t *testing.T) {
	assert.Equal(t, "Unknown time", DisplayTime(core.Record{}))
	assert.Equal(t, "anonymous", DisplayUser(core.Record{}))

	// Unparseable timestamps show raw
	assert.Equal(t, "not-a-time", DisplayTime(core.Record{Timestamp: "not-a-time"}))

	noise := core.Record{EventName: "request", SystemNoise: true, NoiseReason: "cors_preflight"}
	assert.Contains(t, FormatRecord(noise), "[noise:cors_preflight]")
}
