package dashboard

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"uxtrace/src/internal/core"
	"uxtrace/src/internal/feed"

	"github.com/valyala/fasthttp"
)

// Event is one live feed push received from the collector.
type Event struct {
	Type    string
	Record  *core.Record
	Records []core.Record
}

// Subscribe opens the collector's live feed and delivers events until
// ctx is cancelled or the stream ends. The returned channel is closed
// when the subscription terminates.
func (v *Viewer) Subscribe(ctx context.Context) (<-chan Event, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	req.SetRequestURI(v.baseURL() + "/api/logs/stream")
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "text/event-stream")

	if err := v.client.Do(req, resp); err != nil {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
		return nil, fmt.Errorf("stream request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		status := resp.StatusCode()
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
		return nil, fmt.Errorf("stream request returned status %d", status)
	}

	events := make(chan Event, 64)
	closed := make(chan struct{})

	// Unblock the scanner when the caller cancels
	go func() {
		select {
		case <-ctx.Done():
			resp.CloseBodyStream()
		case <-closed:
		}
	}()

	go func() {
		defer close(events)
		defer close(closed)
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		scanner := bufio.NewScanner(resp.BodyStream())
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var eventName string
		var data strings.Builder

		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if event, ok := parseEvent(eventName, data.String()); ok {
					select {
					case events <- event:
					case <-ctx.Done():
						return
					}
				}
				eventName = ""
				data.Reset()

			case strings.HasPrefix(line, ":"):
				// Heartbeat comment

			case strings.HasPrefix(line, "event:"):
				eventName = strings.TrimSpace(line[len("event:"):])

			case strings.HasPrefix(line, "data:"):
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(strings.TrimSpace(line[len("data:"):]))
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			v.logger.Warn("msg", "Live feed stream ended",
				"component", "dashboard",
				"error", err)
		}
	}()

	return events, nil
}

func parseEvent(name, data string) (Event, bool) {
	switch name {
	case feed.EventNewLog:
		var rec core.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return Event{}, false
		}
		return Event{Type: name, Record: &rec}, true

	case feed.EventBuffer:
		var payload struct {
			Records []core.Record `json:"records"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			return Event{}, false
		}
		return Event{Type: name, Records: payload.Records}, true

	case feed.EventReset:
		return Event{Type: name}, true

	default:
		// connected, disconnect and unknown events are not surfaced
		return Event{}, false
	}
}
