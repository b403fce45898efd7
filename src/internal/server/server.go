package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"uxtrace/src/internal/config"
	"uxtrace/src/internal/feed"
	"uxtrace/src/internal/limit"
	"uxtrace/src/internal/session"
	"uxtrace/src/internal/store"

	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
)

// Server is the collector's HTTP surface. It accepts interaction
// batches from capture clients, serves queries and stats, and streams
// the live feed to dashboard viewers.
type Server struct {
	cfg      config.ServerConfig
	store    *store.Store
	csvFiles *store.CSVFiles
	hub      *feed.Hub
	sessions *session.Tracker
	limiter  *limit.Limiter
	logger   *log.Logger

	server    *fasthttp.Server
	done      chan struct{}
	wg        sync.WaitGroup
	startTime time.Time

	// Statistics
	totalReceived  atomic.Uint64
	invalidRecords atomic.Uint64
	lastReceived   atomic.Value // time.Time
}

func New(cfg config.ServerConfig, st *store.Store, csvFiles *store.CSVFiles,
	hub *feed.Hub, sessions *session.Tracker, logger *log.Logger) *Server {

	s := &Server{
		cfg:       cfg,
		store:     st,
		csvFiles:  csvFiles,
		hub:       hub,
		sessions:  sessions,
		limiter:   limit.New(cfg.NetLimit, logger),
		logger:    logger,
		done:      make(chan struct{}),
		startTime: time.Now(),
	}
	s.lastReceived.Store(time.Time{})
	return s
}

func (s *Server) Start() error {
	s.server = &fasthttp.Server{
		Handler:          s.requestHandler,
		DisableKeepalive: false,
		CloseOnShutdown:  true,
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("msg", "Collector server starting",
			"component", "server",
			"address", addr)

		if err := s.server.ListenAndServe(addr); err != nil {
			errChan <- err
		}
	}()

	// Catch immediate bind failures
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start collector server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (s *Server) Stop() {
	s.logger.Info("msg", "Stopping collector server", "component", "server")
	close(s.done)

	if s.server != nil {
		if err := s.server.Shutdown(); err != nil {
			s.logger.Error("msg", "Error shutting down collector server",
				"component", "server",
				"error", err)
		}
	}

	s.limiter.Stop()
	s.wg.Wait()

	s.logger.Info("msg", "Collector server stopped", "component", "server")
}

func (s *Server) requestHandler(ctx *fasthttp.RequestCtx) {
	// Capture clients run in browsers on other origins
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	ctx.Response.Header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	ctx.Response.Header.Set("Access-Control-Allow-Headers", "Content-Type")

	method := string(ctx.Method())
	if method == fasthttp.MethodOptions {
		ctx.SetStatusCode(fasthttp.StatusNoContent)
		return
	}

	path := string(ctx.Path())

	switch {
	case path == "/api/logs" && method == fasthttp.MethodPost:
		s.handleIngest(ctx, "frontend")
	case path == "/api/logs/backend" && method == fasthttp.MethodPost:
		s.handleIngest(ctx, "backend")
	case path == "/api/logs" && method == fasthttp.MethodGet:
		s.handleQuery(ctx)
	case path == "/api/logs/csv" && method == fasthttp.MethodPost:
		s.handleCSV(ctx)
	case path == "/api/logs/stats" && method == fasthttp.MethodGet:
		s.handleStats(ctx)
	case path == "/api/logs/reset" && method == fasthttp.MethodPost:
		s.handleReset(ctx)
	case path == "/api/logs/export" && method == fasthttp.MethodGet:
		s.handleExport(ctx)
	case path == "/api/logs/stream" && method == fasthttp.MethodGet:
		s.handleStream(ctx)
	case path == "/api/logs/health" && method == fasthttp.MethodGet:
		s.handleHealth(ctx)
	default:
		writeJSON(ctx, fasthttp.StatusNotFound, map[string]string{
			"error": "Not Found",
		})
	}
}

func (s *Server) allowRequest(ctx *fasthttp.RequestCtx) bool {
	clientIP := ctx.RemoteIP().String()
	if s.limiter.Allow(clientIP) {
		return true
	}

	ctx.Response.Header.Set("Retry-After", "60")
	writeJSON(ctx, fasthttp.StatusTooManyRequests, map[string]string{
		"error": "Rate limit exceeded",
	})
	return false
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	json.NewEncoder(ctx).Encode(v)
}
