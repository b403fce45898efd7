package store

import (
	"path/filepath"
	"testing"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uxtrace/src/internal/core"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func record(id, event, session, user string) core.Record {
	return core.Record{
		ID:        id,
		Timestamp: core.NowISO(),
		EventTime: core.NowISO(),
		EventName: event,
		SessionID: session,
		UserID:    user,
		Details:   map[string]any{"n": 1},
		Viewport:  core.Viewport{Width: 1024, Height: 768},
	}
}

func TestStore_InsertAndQuery(t *testing.T) {
	s := openTestStore(t)

	stored, err := s.InsertBatch([]core.Record{
		record("r1", "click", "s1", "alice"),
		record("r2", "page_view", "s1", "alice"),
		record("r3", "click", "s2", "bob"),
	}, "frontend")
	require.NoError(t, err)
	assert.Equal(t, 3, stored)

	t.Run("All", func(t *testing.T) {
		records, err := s.Query(Filter{})
		require.NoError(t, err)
		assert.Len(t, records, 3)
	})

	t.Run("ByAction", func(t *testing.T) {
		records, err := s.Query(Filter{Action: "click"})
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("BySession", func(t *testing.T) {
		records, err := s.Query(Filter{SessionID: "s2"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "r3", records[0].ID)
	})

	t.Run("ByUser", func(t *testing.T) {
		records, err := s.Query(Filter{UserID: "alice"})
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("LimitOffset", func(t *testing.T) {
		page1, err := s.Query(Filter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, page1, 2)

		page2, err := s.Query(Filter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, page2, 1)
	})

	t.Run("DetailsRoundTrip", func(t *testing.T) {
		records, err := s.Query(Filter{SessionID: "s2"})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, float64(1), records[0].Details["n"])
		assert.Equal(t, core.Viewport{Width: 1024, Height: 768}, records[0].Viewport)
	})
}

func TestStore_InsertSkipsInvalid(t *testing.T) {
	s := openTestStore(t)

	stored, err := s.InsertBatch([]core.Record{
		record("r1", "click", "s1", "alice"),
		{ID: "", EventName: "click", Timestamp: core.NowISO()},
		{ID: "r2", EventName: "", Timestamp: core.NowISO()},
	}, "frontend")
	require.NoError(t, err)
	assert.Equal(t, 1, stored)
}

func TestStore_Stats(t *testing.T) {
	s := openTestStore(t)

	rec := record("r1", "click", "s1", "alice")
	rec.Component = "MenuPage"
	_, err := s.InsertBatch([]core.Record{
		rec,
		record("r2", "click", "s1", "alice"),
		record("r3", "scroll", "s2", "bob"),
	}, "frontend")
	require.NoError(t, err)

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalLogs)
	assert.Equal(t, int64(2), stats.TotalSessions)
	assert.Equal(t, int64(3), stats.RecentActivity24h)
	assert.Equal(t, int64(2), stats.ActionsBreakdown["click"])
	assert.Equal(t, int64(1), stats.ActionsBreakdown["scroll"])
	assert.Equal(t, int64(1), stats.ComponentsBreakdown["MenuPage"])
}

func TestStore_Reset(t *testing.T) {
	s := openTestStore(t)

	_, err := s.InsertBatch([]core.Record{record("r1", "click", "s1", "alice")}, "frontend")
	require.NoError(t, err)
	require.NoError(t, s.Reset())

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalLogs)
	assert.Equal(t, int64(0), stats.TotalSessions)
}

func TestStore_MalformedDetailsDoNotFailQuery(t *testing.T) {
	s := openTestStore(t)

	rec := record("r1", "click", "s1", "alice")
	rec.Details = nil
	_, err := s.InsertBatch([]core.Record{rec}, "frontend")
	require.NoError(t, err)

	records, err := s.Query(Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotNil(t, records[0].Details)
	assert.Empty(t, records[0].Details)
}

func TestCSVFiles(t *testing.T) {
	dir := t.TempDir()
	c, err := NewCSVFiles(dir, newTestLogger())
	require.NoError(t, err)

	t.Run("HeaderOnCreate", func(t *testing.T) {
		stats, err := c.Stats()
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.Lines)
		assert.Greater(t, stats.SizeBytes, int64(0))
	})

	t.Run("AppendAndCount", func(t *testing.T) {
		require.NoError(t, c.AppendLines([]string{
			`2026-08-30T10:00:00Z,click,s1,,,,,,,,,,`,
			`2026-08-30T10:00:01Z,scroll,s1,,,,,,,,,,`,
		}))
		stats, err := c.Stats()
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.Lines)
	})

	t.Run("Export", func(t *testing.T) {
		path, err := c.Export(filepath.Join(dir, "exports"))
		require.NoError(t, err)
		assert.FileExists(t, path)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, c.Clear())
		stats, err := c.Stats()
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.Lines)
	})
}
