package feed

import (
	"testing"

	"uxtrace/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func testRecord(id string) core.Record {
	return core.Record{
		ID:        id,
		Timestamp: core.NowISO(),
		EventName: core.EventButtonClick,
		SessionID: "sess-1",
	}
}

func TestHub_SubscribeReceivesBackfill(t *testing.T) {
	hub := NewHub(100, 10, newTestLogger())

	hub.Publish(testRecord("a"))
	hub.Publish(testRecord("b"))

	id, ch := hub.Subscribe()
	defer hub.Unsubscribe(id)

	first := <-ch
	require.Equal(t, EventBuffer, first.Type)
	require.Len(t, first.Records, 2)
	assert.Equal(t, "a", first.Records[0].ID)
	assert.Equal(t, "b", first.Records[1].ID)
}

func TestHub_PublishFansOut(t *testing.T) {
	hub := NewHub(100, 10, newTestLogger())

	id1, ch1 := hub.Subscribe()
	defer hub.Unsubscribe(id1)
	id2, ch2 := hub.Subscribe()
	defer hub.Unsubscribe(id2)

	// Drain backfill events
	<-ch1
	<-ch2

	hub.Publish(testRecord("x"))

	for _, ch := range []<-chan Event{ch1, ch2} {
		event := <-ch
		require.Equal(t, EventNewLog, event.Type)
		require.NotNil(t, event.Record)
		assert.Equal(t, "x", event.Record.ID)
	}
}

func TestHub_BackfillBounded(t *testing.T) {
	hub := NewHub(3, 10, newTestLogger())

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		hub.Publish(testRecord(id))
	}

	id, ch := hub.Subscribe()
	defer hub.Unsubscribe(id)

	first := <-ch
	require.Len(t, first.Records, 3)
	assert.Equal(t, "c", first.Records[0].ID)
	assert.Equal(t, "e", first.Records[2].ID)
}

func TestHub_SlowViewerDropsNotBlocks(t *testing.T) {
	hub := NewHub(100, 2, newTestLogger())

	id, ch := hub.Subscribe()
	defer hub.Unsubscribe(id)
	<-ch

	// More events than the channel can hold, never drained
	for i := 0; i < 10; i++ {
		hub.Publish(testRecord("r"))
	}

	stats := hub.GetStats()
	assert.Equal(t, uint64(10), stats["total_published"])
	assert.Greater(t, stats["total_dropped"].(uint64), uint64(0))
}

func TestHub_ResetClearsBackfillAndBroadcasts(t *testing.T) {
	hub := NewHub(100, 10, newTestLogger())
	hub.Publish(testRecord("a"))

	id, ch := hub.Subscribe()
	defer hub.Unsubscribe(id)
	<-ch

	hub.Reset()

	event := <-ch
	assert.Equal(t, EventReset, event.Type)

	// A fresh subscriber sees an empty buffer
	id2, ch2 := hub.Subscribe()
	defer hub.Unsubscribe(id2)
	first := <-ch2
	assert.Empty(t, first.Records)
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(100, 10, newTestLogger())

	id, ch := hub.Subscribe()
	<-ch
	hub.Unsubscribe(id)

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.Viewers())
}
