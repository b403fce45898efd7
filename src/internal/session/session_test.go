package session

import (
	"testing"
	"time"

	"uxtrace/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(sessionID, userID string) core.Record {
	return core.Record{
		ID:        "r1",
		Timestamp: core.NowISO(),
		EventName: core.EventButtonClick,
		SessionID: sessionID,
		UserID:    userID,
		Route:     "/menu",
	}
}

func TestTracker_ObserveCreatesAndUpdates(t *testing.T) {
	tracker := NewTracker(time.Minute)
	defer tracker.Stop()

	s := tracker.Observe(record("sess-1", core.AnonymousUser), "10.0.0.1")
	require.NotNil(t, s)
	assert.Equal(t, 1, s.Interactions)
	assert.Empty(t, s.UserID)

	// Same session again, now identified
	s = tracker.Observe(record("sess-1", "user-42"), "10.0.0.1")
	assert.Equal(t, 2, s.Interactions)
	assert.Equal(t, "user-42", s.UserID)
	assert.Equal(t, "/menu", s.LastRoute)

	assert.Equal(t, 1, tracker.Count())
}

func TestTracker_ObserveIgnoresEmptySessionID(t *testing.T) {
	tracker := NewTracker(time.Minute)
	defer tracker.Stop()

	assert.Nil(t, tracker.Observe(record("", ""), "10.0.0.1"))
	assert.Equal(t, 0, tracker.Count())
}

func TestTracker_IsActive(t *testing.T) {
	tracker := NewTracker(50 * time.Millisecond)
	defer tracker.Stop()

	tracker.Observe(record("sess-1", ""), "10.0.0.1")
	assert.True(t, tracker.IsActive("sess-1"))
	assert.False(t, tracker.IsActive("sess-2"))

	time.Sleep(80 * time.Millisecond)
	assert.False(t, tracker.IsActive("sess-1"))
}

func TestTracker_Stats(t *testing.T) {
	tracker := NewTracker(time.Minute)
	defer tracker.Stop()

	tracker.Observe(record("sess-1", "user-1"), "10.0.0.1")
	tracker.Observe(record("sess-1", "user-1"), "10.0.0.1")
	tracker.Observe(record("sess-2", core.AnonymousUser), "10.0.0.2")

	stats := tracker.GetStats()
	assert.Equal(t, 2, stats["active_sessions"])
	assert.Equal(t, 1, stats["identified_sessions"])
	assert.Equal(t, 3, stats["total_interactions"])
}

func TestTracker_ExpiryCallback(t *testing.T) {
	tracker := NewTracker(50 * time.Millisecond)
	defer tracker.Stop()

	expired := make(chan string, 1)
	tracker.OnExpiry(func(sessionID, userID string) {
		expired <- sessionID + "/" + userID
	})

	tracker.Observe(record("sess-1", "user-1"), "10.0.0.1")
	time.Sleep(80 * time.Millisecond)
	tracker.cleanupIdle()

	select {
	case got := <-expired:
		assert.Equal(t, "sess-1/user-1", got)
	case <-time.After(time.Second):
		t.Fatal("expiry callback never fired")
	}
	assert.Equal(t, 0, tracker.Count())
}

func TestTracker_Reset(t *testing.T) {
	tracker := NewTracker(time.Minute)
	defer tracker.Stop()

	tracker.Observe(record("sess-1", ""), "10.0.0.1")
	tracker.Reset()
	assert.Equal(t, 0, tracker.Count())
}
