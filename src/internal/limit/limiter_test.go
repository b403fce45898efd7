package limit

import (
	"testing"

	"uxtrace/src/internal/config"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

func TestLimiter_DisabledAllowsAll(t *testing.T) {
	l := New(config.NetLimitConfig{Enabled: false}, newTestLogger())
	require.Nil(t, l)

	// nil receiver is the allow-all path
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("10.0.0.1"))
	}
}

func TestLimiter_BurstThenDeny(t *testing.T) {
	l := New(config.NetLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 1,
		BurstSize:         3,
	}, newTestLogger())
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "request %d inside burst", i)
	}
	assert.False(t, l.Allow("10.0.0.1"))

	stats := l.GetStats()
	assert.Equal(t, uint64(3), stats["total_allowed"])
	assert.Equal(t, uint64(1), stats["total_denied"])
}

func TestLimiter_ClientsIndependent(t *testing.T) {
	l := New(config.NetLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 1,
		BurstSize:         1,
	}, newTestLogger())
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	// A different client has its own bucket
	assert.True(t, l.Allow("10.0.0.2"))

	stats := l.GetStats()
	assert.Equal(t, 2, stats["active_clients"])
}
