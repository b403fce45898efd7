package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"uxtrace/src/internal/core"

	"github.com/lixenwraith/log"
	_ "modernc.org/sqlite" // CGO-free SQLite
)

// Store is the collector's append-only record store.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Filter narrows a query. Zero values mean "no constraint"; Limit
// defaults to 100.
type Filter struct {
	Limit     int
	Offset    int
	Action    string
	Component string
	SessionID string
	UserID    string
	StartTime string
	EndTime   string
}

// Stats aggregates stored records.
type Stats struct {
	TotalLogs           int64            `json:"total_logs"`
	TotalSessions       int64            `json:"total_sessions"`
	RecentActivity24h   int64            `json:"recent_activity_24h"`
	ActionsBreakdown    map[string]int64 `json:"actions_breakdown"`
	ComponentsBreakdown map[string]int64 `json:"components_breakdown"`
}

// Open opens (creating if needed) the store at path.
func Open(path string, logger *log.Logger) (*Store, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("msg", "Record store opened",
		"component", "store",
		"path", path)

	return &Store{db: db, logger: logger}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS user_interactions(
	  id              TEXT PRIMARY KEY,
	  timestamp       TEXT NOT NULL,
	  event_time      TEXT,
	  event_name      TEXT NOT NULL,
	  log_type        TEXT NOT NULL DEFAULT 'frontend',
	  session_id      TEXT,
	  browser_id      TEXT,
	  user_id         TEXT,
	  route           TEXT,
	  url             TEXT,
	  component       TEXT,
	  details         TEXT NOT NULL DEFAULT '{}' CHECK (json_valid(details)),
	  system_noise    INTEGER NOT NULL DEFAULT 0,
	  noise_reason    TEXT,
	  viewport_width  INTEGER,
	  viewport_height INTEGER,
	  received_at     TEXT,
	  created_at      TEXT DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_ts      ON user_interactions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_interactions_event   ON user_interactions(event_name);
	CREATE INDEX IF NOT EXISTS idx_interactions_session ON user_interactions(session_id);
	CREATE INDEX IF NOT EXISTS idx_interactions_user    ON user_interactions(user_id);

	CREATE TABLE IF NOT EXISTS log_sessions(
	  session_id         TEXT PRIMARY KEY,
	  start_time         TEXT,
	  user_id            TEXT,
	  total_interactions INTEGER DEFAULT 0
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create database tables: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ValidateRecord checks the fields a stored record cannot live without.
func ValidateRecord(rec core.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if rec.Timestamp == "" {
		return fmt.Errorf("timestamp cannot be empty")
	}
	if rec.EventName == "" {
		return fmt.Errorf("event_name cannot be empty")
	}
	return nil
}

// InsertBatch stores the batch in one transaction, skipping invalid
// records rather than failing the whole batch, and bumps per-session
// interaction counts. Returns the number of records stored.
func (s *Store) InsertBatch(records []core.Record, logType string) (int, error) {
	if logType == "" {
		logType = "frontend"
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	insert, err := tx.Prepare(`INSERT OR REPLACE INTO user_interactions
		(id, timestamp, event_time, event_name, log_type, session_id, browser_id, user_id,
		 route, url, component, details, system_noise, noise_reason,
		 viewport_width, viewport_height, received_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,json(?),?,?,?,?,?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer insert.Close()

	session, err := tx.Prepare(`INSERT INTO log_sessions (session_id, start_time, user_id, total_interactions)
		VALUES(?,?,?,1)
		ON CONFLICT(session_id) DO UPDATE SET total_interactions = total_interactions + 1`)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to prepare session statement: %w", err)
	}
	defer session.Close()

	stored := 0
	for _, rec := range records {
		if err := ValidateRecord(rec); err != nil {
			s.logger.Warn("msg", "Skipping invalid record",
				"component", "store",
				"error", err)
			continue
		}

		detailsJSON, err := json.Marshal(rec.Details)
		if err != nil {
			s.logger.Warn("msg", "Skipping record with unserializable details",
				"component", "store",
				"id", rec.ID,
				"error", err)
			continue
		}
		if rec.Details == nil {
			detailsJSON = []byte("{}")
		}

		if _, err := insert.Exec(
			rec.ID, rec.Timestamp, rec.EventTime, rec.EventName, logType,
			rec.SessionID, rec.BrowserID, rec.UserID,
			rec.Route, rec.URL, rec.Component, string(detailsJSON),
			boolToInt(rec.SystemNoise), rec.NoiseReason,
			rec.Viewport.Width, rec.Viewport.Height, rec.ReceivedAt,
		); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("failed to insert record: %w", err)
		}

		if rec.SessionID != "" {
			if _, err := session.Exec(rec.SessionID, rec.Timestamp, rec.UserID); err != nil {
				_ = tx.Rollback()
				return 0, fmt.Errorf("failed to update session: %w", err)
			}
		}
		stored++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stored, nil
}

// Query returns matching records, newest first.
func (s *Store) Query(f Filter) ([]core.Record, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}

	query := `SELECT id, timestamp, event_time, event_name, session_id, browser_id, user_id,
		route, url, component, details, system_noise, noise_reason,
		viewport_width, viewport_height, received_at
		FROM user_interactions WHERE 1=1`
	var args []any

	if f.Action != "" {
		query += " AND event_name = ?"
		args = append(args, f.Action)
	}
	if f.Component != "" {
		query += " AND component = ?"
		args = append(args, f.Component)
	}
	if f.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, f.SessionID)
	}
	if f.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, f.UserID)
	}
	if f.StartTime != "" {
		query += " AND timestamp >= ?"
		args = append(args, f.StartTime)
	}
	if f.EndTime != "" {
		query += " AND timestamp <= ?"
		args = append(args, f.EndTime)
	}

	query += " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ExportAll returns every stored record, newest first.
func (s *Store) ExportAll() ([]core.Record, error) {
	rows, err := s.db.Query(`SELECT id, timestamp, event_time, event_name, session_id, browser_id, user_id,
		route, url, component, details, system_noise, noise_reason,
		viewport_width, viewport_height, received_at
		FROM user_interactions ORDER BY timestamp DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Stats aggregates totals and breakdowns.
func (s *Store) Stats() (Stats, error) {
	stats := Stats{
		ActionsBreakdown:    make(map[string]int64),
		ComponentsBreakdown: make(map[string]int64),
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM user_interactions`).Scan(&stats.TotalLogs); err != nil {
		return stats, fmt.Errorf("failed to count records: %w", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM log_sessions`).Scan(&stats.TotalSessions); err != nil {
		return stats, fmt.Errorf("failed to count sessions: %w", err)
	}

	// Timestamps are RFC3339 UTC strings, so string comparison against
	// a cutoff in the same format is chronological
	cutoff := time.Now().UTC().Add(-24 * time.Hour).Format(time.RFC3339Nano)
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM user_interactions WHERE timestamp >= ?`, cutoff).
		Scan(&stats.RecentActivity24h); err != nil {
		return stats, fmt.Errorf("failed to count recent activity: %w", err)
	}

	if err := s.breakdown(`SELECT event_name, COUNT(*) FROM user_interactions GROUP BY event_name`, stats.ActionsBreakdown); err != nil {
		return stats, err
	}
	if err := s.breakdown(`SELECT component, COUNT(*) FROM user_interactions WHERE component != '' GROUP BY component`, stats.ComponentsBreakdown); err != nil {
		return stats, err
	}

	return stats, nil
}

// Reset deletes every stored record and session.
func (s *Store) Reset() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM user_interactions`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to clear records: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM log_sessions`); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	s.logger.Info("msg", "All stored records cleared", "component", "store")
	return nil
}

func (s *Store) breakdown(query string, into map[string]int64) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return fmt.Errorf("failed to query breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("failed to scan breakdown row: %w", err)
		}
		into[key] = count
	}
	return rows.Err()
}

func scanRecords(rows *sql.Rows) ([]core.Record, error) {
	var records []core.Record
	for rows.Next() {
		var rec core.Record
		var detailsJSON string
		var systemNoise int
		var eventTime, sessionID, browserID, userID, route, url, component, noiseReason, receivedAt sql.NullString

		if err := rows.Scan(
			&rec.ID, &rec.Timestamp, &eventTime, &rec.EventName,
			&sessionID, &browserID, &userID,
			&route, &url, &component, &detailsJSON, &systemNoise, &noiseReason,
			&rec.Viewport.Width, &rec.Viewport.Height, &receivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		rec.EventTime = eventTime.String
		rec.SessionID = sessionID.String
		rec.BrowserID = browserID.String
		rec.UserID = userID.String
		rec.Route = route.String
		rec.URL = url.String
		rec.Component = component.String
		rec.NoiseReason = noiseReason.String
		rec.ReceivedAt = receivedAt.String
		rec.SystemNoise = systemNoise != 0

		// A record with corrupt details still renders; the viewer shows
		// an empty detail block
		if err := json.Unmarshal([]byte(detailsJSON), &rec.Details); err != nil {
			rec.Details = map[string]any{}
		}

		records = append(records, rec)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
