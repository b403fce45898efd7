package format

import (
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uxtrace/src/internal/core"
)

func TestCSVFormatter_Format(t *testing.T) {
	f := NewCSVFormatter()

	t.Run("FullRecord", func(t *testing.T) {
		rec := core.Record{
			Timestamp: "2026-08-30T10:00:00Z",
			EventName: "http_request",
			SessionID: "sess-1",
			Route:     "/menu",
			UserID:    "user-9",
			Component: "MenuPage",
			BrowserID: "br-7",
			Details: map[string]any{
				"method":     "GET",
				"statusCode": float64(200),
				"ip_address": "10.0.0.5",
				"action":     "fetch_menu",
				"attempt_id": "att-3",
			},
		}

		line, err := f.Format(rec)
		require.NoError(t, err)
		assert.False(t, strings.HasSuffix(string(line), "\n"))

		fields, err := csv.NewReader(strings.NewReader(string(line))).Read()
		require.NoError(t, err)
		require.Len(t, fields, len(CSVHeaders))
		assert.Equal(t, "2026-08-30T10:00:00Z", fields[0])
		assert.Equal(t, "http_request", fields[1])
		assert.Equal(t, "sess-1", fields[2])
		assert.Equal(t, "/menu", fields[3])
		assert.Equal(t, "GET", fields[4])
		assert.Equal(t, "200", fields[5])
		assert.Equal(t, "user-9", fields[6])
		assert.Equal(t, "10.0.0.5", fields[7])
		assert.Equal(t, "MenuPage", fields[8])
		assert.Equal(t, "fetch_menu", fields[9])
		assert.Equal(t, "br-7", fields[10])
		assert.Equal(t, "att-3", fields[11])
		assert.Contains(t, fields[12], `"method":"GET"`)
	})

	t.Run("MissingFieldsSerializeEmpty", func(t *testing.T) {
		line, err := f.Format(core.Record{EventName: "click"})
		require.NoError(t, err)

		fields, err := csv.NewReader(strings.NewReader(string(line))).Read()
		require.NoError(t, err)
		require.Len(t, fields, len(CSVHeaders))
		assert.Equal(t, "click", fields[1])
		for i, v := range fields {
			if i == 1 {
				continue
			}
			assert.Empty(t, v, "column %s should be empty", CSVHeaders[i])
		}
	})

	t.Run("QuotesValuesWithCommas", func(t *testing.T) {
		rec := core.Record{
			EventName: "error",
			Details:   map[string]any{"action": "load, then fail"},
		}
		line, err := f.Format(rec)
		require.NoError(t, err)

		fields, err := csv.NewReader(strings.NewReader(string(line))).Read()
		require.NoError(t, err)
		assert.Equal(t, "load, then fail", fields[9])
	})
}

func TestJSONFormatter_FormatBatch(t *testing.T) {
	f := NewJSONFormatter()

	out, err := f.FormatBatch([]core.Record{
		{ID: "r1", EventName: "click"},
		{ID: "r2", EventName: "page_view"},
	})
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.HasPrefix(s, `{"logs":[`))
	assert.Contains(t, s, `"id":"r1"`)
	assert.Contains(t, s, `"id":"r2"`)
}
