package server

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"uxtrace/src/internal/core"
	"uxtrace/src/internal/feed"

	"github.com/valyala/fasthttp"
)

// handleStream serves the live feed over SSE. Each viewer gets the
// backfill buffer first, then every accepted record as it arrives,
// plus periodic heartbeats so proxies keep the connection open.
func (s *Server) handleStream(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("Content-Type", "text/event-stream")
	ctx.Response.Header.Set("Cache-Control", "no-cache")
	ctx.Response.Header.Set("Connection", "keep-alive")
	ctx.Response.Header.Set("X-Accel-Buffering", "no")

	subID, events := s.hub.Subscribe()

	streamFunc := func(w *bufio.Writer) {
		s.wg.Add(1)
		defer func() {
			s.hub.Unsubscribe(subID)
			s.wg.Done()
		}()

		connectionInfo := map[string]any{
			"client_id":   subID,
			"buffer_size": s.cfg.StreamBufferSize,
		}
		data, _ := json.Marshal(connectionInfo)
		fmt.Fprintf(w, "event: connected\ndata: %s\n\n", data)
		if err := w.Flush(); err != nil {
			return
		}

		var tickerChan <-chan time.Time
		if s.cfg.HeartbeatIntervalSeconds > 0 {
			ticker := time.NewTicker(time.Duration(s.cfg.HeartbeatIntervalSeconds) * time.Second)
			tickerChan = ticker.C
			defer ticker.Stop()
		}

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeEvent(w, event); err != nil {
					return
				}

			case <-tickerChan:
				fmt.Fprintf(w, ": heartbeat %s viewers=%d\n\n",
					time.Now().UTC().Format(time.RFC3339), s.hub.Viewers())
				if err := w.Flush(); err != nil {
					return
				}

			case <-s.done:
				fmt.Fprintf(w, "event: disconnect\ndata: {\"reason\":\"server_shutdown\"}\n\n")
				w.Flush()
				return
			}
		}
	}

	ctx.SetBodyStreamWriter(streamFunc)
}

func writeEvent(w *bufio.Writer, event feed.Event) error {
	var payload any
	switch event.Type {
	case feed.EventNewLog:
		payload = event.Record
	case feed.EventBuffer:
		records := event.Records
		if records == nil {
			records = []core.Record{}
		}
		payload = map[string]any{"records": records}
	case feed.EventReset:
		payload = map[string]any{}
	default:
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}
	return w.Flush()
}
