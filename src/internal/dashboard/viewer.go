package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"uxtrace/src/internal/config"
	"uxtrace/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
)

// Filter narrows the records a viewer displays. Zero fields match
// everything.
type Filter struct {
	Action    string
	Component string
	SessionID string
	UserID    string
	Limit     int
	Offset    int
}

// Match reports whether a record passes the filter. Used for
// client-side narrowing of the live feed, where the collector sends
// everything.
func (f Filter) Match(rec core.Record) bool {
	if f.Action != "" && rec.Action() != f.Action {
		return false
	}
	if f.Component != "" && rec.Component != f.Component {
		return false
	}
	if f.SessionID != "" && rec.SessionID != f.SessionID {
		return false
	}
	if f.UserID != "" && rec.UserID != f.UserID {
		return false
	}
	return true
}

// Viewer is the dashboard's client side. It fetches stored records and
// stats from the collector and subscribes to the live feed.
type Viewer struct {
	cfg     config.DashboardConfig
	client  *fasthttp.Client
	timeout time.Duration
	logger  *log.Logger
}

func NewViewer(cfg config.DashboardConfig, logger *log.Logger) *Viewer {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Viewer{
		cfg: cfg,
		client: &fasthttp.Client{
			MaxConnsPerHost:     10,
			MaxIdleConnDuration: 10 * time.Second,
			StreamResponseBody:  true,
		},
		timeout: timeout,
		logger:  logger,
	}
}

// Fetch retrieves stored records matching the filter.
func (v *Viewer) Fetch(ctx context.Context, f Filter) ([]core.Record, error) {
	if f.Limit <= 0 {
		f.Limit = int(v.cfg.FetchLimit)
		if f.Limit <= 0 {
			f.Limit = 100
		}
	}

	uri := fmt.Sprintf("%s/api/logs?limit=%d&offset=%d", v.baseURL(), f.Limit, f.Offset)
	if f.Action != "" {
		uri += "&action=" + f.Action
	}
	if f.Component != "" {
		uri += "&component=" + f.Component
	}
	if f.SessionID != "" {
		uri += "&session_id=" + f.SessionID
	}
	if f.UserID != "" {
		uri += "&user_id=" + f.UserID
	}

	body, err := v.get(ctx, uri)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Logs []core.Record `json:"logs"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode log response: %w", err)
	}
	return resp.Logs, nil
}

// Stats retrieves collector statistics.
func (v *Viewer) Stats(ctx context.Context) (map[string]any, error) {
	body, err := v.get(ctx, v.baseURL()+"/api/logs/stats")
	if err != nil {
		return nil, err
	}

	var stats map[string]any
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("failed to decode stats response: %w", err)
	}
	return stats, nil
}

// Reset asks the collector to clear all stored records.
func (v *Viewer) Reset(ctx context.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(v.baseURL() + "/api/logs/reset")
	req.Header.SetMethod(fasthttp.MethodPost)

	if err := v.client.DoTimeout(req, resp, v.timeout); err != nil {
		return fmt.Errorf("reset request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("reset request returned status %d", resp.StatusCode())
	}
	return nil
}

func (v *Viewer) get(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := v.client.DoTimeout(req, resp, v.timeout); err != nil {
		return nil, fmt.Errorf("collector request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("collector returned status %d", resp.StatusCode())
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

func (v *Viewer) baseURL() string {
	return strings.TrimRight(v.cfg.BaseURL, "/")
}
