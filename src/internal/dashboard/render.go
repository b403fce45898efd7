package dashboard

import (
	"encoding/json"
	"fmt"
	"time"

	"uxtrace/src/internal/core"
)

// Display fallbacks for records with missing fields. Old capture
// clients sent partial records; the viewer renders them anyway.
const (
	unknownTime = "Unknown time"
	unknownUser = "anonymous"
)

// FormatRecord renders one record as a single dashboard line.
func FormatRecord(rec core.Record) string {
	line := fmt.Sprintf("%s  %-20s  user=%s  session=%s",
		DisplayTime(rec), rec.Action(), DisplayUser(rec), shortID(rec.SessionID))

	if rec.Component != "" {
		line += "  component=" + rec.Component
	}
	if rec.Route != "" {
		line += "  route=" + rec.Route
	}
	if rec.SystemNoise {
		line += "  [noise:" + rec.NoiseReason + "]"
	}
	return line
}

// FormatDetails renders a record's details map for the expanded view.
func FormatDetails(rec core.Record) string {
	if len(rec.Details) == 0 {
		return "{}"
	}
	data, err := json.MarshalIndent(rec.Details, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// DisplayTime returns the record's timestamp in local display form.
func DisplayTime(rec core.Record) string {
	ts := rec.Timestamp
	if ts == "" {
		ts = rec.EventTime
	}
	if ts == "" {
		return unknownTime
	}

	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		// Show the raw value rather than hiding it
		return ts
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}

// DisplayUser returns the record's user identity with a fallback.
func DisplayUser(rec core.Record) string {
	if rec.UserID == "" {
		return unknownUser
	}
	return rec.UserID
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}
