package limit

import (
	"sync"
	"sync/atomic"
	"time"

	"uxtrace/src/internal/config"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// Limiter provides per-client rate limiting for the ingest endpoints.
// Each client IP gets its own token bucket; idle clients are evicted
// periodically.
type Limiter struct {
	clients         sync.Map // map[string]*clientLimiter
	requestsPerSec  float64
	burstSize       int
	cleanupInterval time.Duration
	done            chan struct{}
	logger          *log.Logger

	// Statistics
	totalAllowed atomic.Uint64
	totalDenied  atomic.Uint64
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// New creates a rate limiter from config. Returns nil when limiting is
// disabled, which callers treat as allow-all.
func New(cfg config.NetLimitConfig, logger *log.Logger) *Limiter {
	if !cfg.Enabled {
		return nil
	}

	l := &Limiter{
		requestsPerSec:  cfg.RequestsPerSecond,
		burstSize:       int(cfg.BurstSize),
		cleanupInterval: 5 * time.Minute,
		done:            make(chan struct{}),
		logger:          logger,
	}

	go l.cleanup()

	return l
}

// Allow reports whether a request from the given client IP may proceed.
func (l *Limiter) Allow(clientIP string) bool {
	if l == nil {
		return true
	}

	client := l.getClient(clientIP)
	if client.limiter.Allow() {
		l.totalAllowed.Add(1)
		return true
	}

	l.totalDenied.Add(1)
	l.logger.Debug("msg", "Rate limit exceeded",
		"component", "limit",
		"client", clientIP)
	return false
}

func (l *Limiter) getClient(clientIP string) *clientLimiter {
	now := time.Now().UnixNano()

	if val, ok := l.clients.Load(clientIP); ok {
		client := val.(*clientLimiter)
		client.lastSeen.Store(now)
		return client
	}

	client := &clientLimiter{
		limiter: rate.NewLimiter(rate.Limit(l.requestsPerSec), l.burstSize),
	}
	client.lastSeen.Store(now)

	// LoadOrStore handles the race with a concurrent first request
	actual, _ := l.clients.LoadOrStore(clientIP, client)
	return actual.(*clientLimiter)
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.removeIdleClients()
		}
	}
}

func (l *Limiter) removeIdleClients() {
	threshold := time.Now().Add(-l.cleanupInterval * 2).UnixNano()

	l.clients.Range(func(key, value any) bool {
		client := value.(*clientLimiter)
		if client.lastSeen.Load() < threshold {
			l.clients.Delete(key)
		}
		return true
	})
}

// Stop shuts down the limiter's cleanup goroutine.
func (l *Limiter) Stop() {
	if l == nil {
		return
	}
	close(l.done)
}

// GetStats returns current limiter statistics.
func (l *Limiter) GetStats() map[string]any {
	if l == nil {
		return map[string]any{"enabled": false}
	}

	clients := 0
	l.clients.Range(func(_, _ any) bool {
		clients++
		return true
	})

	return map[string]any{
		"enabled":        true,
		"active_clients": clients,
		"total_allowed":  l.totalAllowed.Load(),
		"total_denied":   l.totalDenied.Load(),
	}
}
