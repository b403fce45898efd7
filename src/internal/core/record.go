package core

import "time"

// Viewport is the window size snapshot taken at capture time.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Record is a single client interaction flowing through the pipeline.
// Timestamp and EventTime carry the same creation time; older consumers
// read timestamp, newer ones event_time, so both stay on the wire.
// A Record is immutable once enqueued: classification and debouncing
// complete before it enters the batching queue.
type Record struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	EventTime string `json:"event_time"`
	EventName string `json:"event_name"`

	// Backend submitters carry the name under "event" or "action"
	// instead of "event_name"; ingest folds these into EventName.
	Event      string `json:"event,omitempty"`
	ActionName string `json:"action,omitempty"`

	SessionID   string         `json:"session_id"`
	BrowserID   string         `json:"browser_id,omitempty"`
	UserID      string         `json:"user_id"`
	Route       string         `json:"route,omitempty"`
	URL         string         `json:"url,omitempty"`
	Component   string         `json:"component,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	SystemNoise bool           `json:"system_noise"`
	NoiseReason string         `json:"noise_reason,omitempty"`
	Viewport    Viewport       `json:"viewport"`
	ReceivedAt  string         `json:"received_at,omitempty"`
}

// Batch is the ingest envelope posted by the capture library.
type Batch struct {
	Logs []Record `json:"logs"`
}

// CSVBatch is the envelope posted by the CSV delivery path.
type CSVBatch struct {
	CSVData []string `json:"csv_data"`
	Headers []string `json:"headers"`
}

// NowISO returns the current UTC time in the wire timestamp format.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Action returns the record's effective action name.
func (r Record) Action() string {
	event := r.Event
	if event == "" {
		event, _ = r.Details["event"].(string)
	}
	action := r.ActionName
	if action == "" {
		action, _ = r.Details["action"].(string)
	}
	return ResolveAction(r.EventName, event, action)
}

// NormalizeEventName folds the event/action aliases into EventName.
// A record carrying none of the three is left untouched and fails
// validation downstream.
func (r *Record) NormalizeEventName() {
	if r.EventName != "" {
		return
	}
	switch {
	case r.Event != "":
		r.EventName = r.Event
	case r.ActionName != "":
		r.EventName = r.ActionName
	}
}

// ResolveAction returns the effective action name of a stored record.
// Backend records historically carried the name under "event" or
// "action" instead of "event_name"; consumers accept any of the three.
func ResolveAction(eventName, event, action string) string {
	switch {
	case eventName != "":
		return eventName
	case event != "":
		return event
	case action != "":
		return action
	default:
		return UnknownAction
	}
}
