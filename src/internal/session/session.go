package session

import (
	"sync"
	"time"

	"uxtrace/src/internal/core"
)

// Session is one live browsing session observed by the collector.
// Sessions are keyed by the session_id each client generates on page
// load, so every record belonging to the same visit lands here.
type Session struct {
	ID           string
	BrowserID    string
	UserID       string
	RemoteAddr   string
	FirstSeen    time.Time
	LastActivity time.Time
	Interactions int
	LastRoute    string
}

// Tracker keeps the set of currently active browsing sessions in
// memory. It is fed from the ingest path and queried by the stats
// endpoint. Idle sessions expire after maxIdleTime.
type Tracker struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	maxIdleTime   time.Duration
	cleanupTicker *time.Ticker
	done          chan struct{}

	expiryCallback func(sessionID, userID string)
	callbackMu     sync.RWMutex
}

// NewTracker creates a session tracker with the given idle timeout.
func NewTracker(maxIdleTime time.Duration) *Tracker {
	if maxIdleTime == 0 {
		maxIdleTime = 30 * time.Minute
	}

	t := &Tracker{
		sessions:    make(map[string]*Session),
		maxIdleTime: maxIdleTime,
		done:        make(chan struct{}),
	}

	t.startCleanup()

	return t
}

// Observe updates the tracker from one ingested record, creating the
// session on first sight.
func (t *Tracker) Observe(rec core.Record, remoteAddr string) *Session {
	if rec.SessionID == "" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	s, exists := t.sessions[rec.SessionID]
	if !exists {
		s = &Session{
			ID:         rec.SessionID,
			BrowserID:  rec.BrowserID,
			RemoteAddr: remoteAddr,
			FirstSeen:  now,
		}
		t.sessions[rec.SessionID] = s
	}

	s.LastActivity = now
	s.Interactions++
	if rec.UserID != "" && rec.UserID != core.AnonymousUser {
		s.UserID = rec.UserID
	}
	if rec.Route != "" {
		s.LastRoute = rec.Route
	}
	return s
}

// Get retrieves a session by its ID.
func (t *Tracker) Get(sessionID string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, exists := t.sessions[sessionID]
	return s, exists
}

// Remove drops a session from the tracker.
func (t *Tracker) Remove(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}

// IsActive reports whether a session exists and has not gone idle.
func (t *Tracker) IsActive(sessionID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if s, exists := t.sessions[sessionID]; exists {
		return time.Since(s.LastActivity) < t.maxIdleTime
	}
	return false
}

// Active returns a snapshot of all sessions still inside the idle window.
func (t *Tracker) Active() []*Session {
	t.mu.RLock()
	defer t.mu.RUnlock()

	sessions := make([]*Session, 0, len(t.sessions))
	now := time.Now()
	for _, s := range t.sessions {
		if now.Sub(s.LastActivity) < t.maxIdleTime {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

// Count returns the number of tracked sessions.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// Reset drops all tracked sessions.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions = make(map[string]*Session)
}

// GetStats returns tracker statistics for the stats endpoint.
func (t *Tracker) GetStats() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var identified int
	var totalInteractions int
	var oldest time.Time

	for _, s := range t.sessions {
		totalInteractions += s.Interactions
		if s.UserID != "" {
			identified++
		}
		if oldest.IsZero() || s.FirstSeen.Before(oldest) {
			oldest = s.FirstSeen
		}
	}

	stats := map[string]any{
		"active_sessions":     len(t.sessions),
		"identified_sessions": identified,
		"total_interactions":  totalInteractions,
		"max_idle_time":       t.maxIdleTime.String(),
	}

	if !oldest.IsZero() {
		stats["oldest_session_age"] = time.Since(oldest).String()
	}

	return stats
}

// Stop gracefully stops the tracker and its cleanup goroutine.
func (t *Tracker) Stop() {
	close(t.done)
	if t.cleanupTicker != nil {
		t.cleanupTicker.Stop()
	}
}

// OnExpiry registers a callback invoked when an idle session is evicted.
func (t *Tracker) OnExpiry(callback func(sessionID, userID string)) {
	t.callbackMu.Lock()
	defer t.callbackMu.Unlock()
	t.expiryCallback = callback
}

func (t *Tracker) startCleanup() {
	t.cleanupTicker = time.NewTicker(5 * time.Minute)

	go func() {
		for {
			select {
			case <-t.cleanupTicker.C:
				t.cleanupIdle()
			case <-t.done:
				return
			}
		}
	}()
}

func (t *Tracker) cleanupIdle() {
	t.mu.Lock()

	now := time.Now()
	expired := make([]*Session, 0)

	for id, s := range t.sessions {
		if now.Sub(s.LastActivity) > t.maxIdleTime {
			expired = append(expired, s)
			delete(t.sessions, id)
		}
	}
	t.mu.Unlock()

	// Callbacks run outside the lock
	if len(expired) > 0 {
		t.callbackMu.RLock()
		defer t.callbackMu.RUnlock()

		if t.expiryCallback != nil {
			for _, s := range expired {
				go t.expiryCallback(s.ID, s.UserID)
			}
		}
	}
}
