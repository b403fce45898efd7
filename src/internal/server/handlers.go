package server

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"uxtrace/src/internal/core"
	"uxtrace/src/internal/store"

	"github.com/valyala/fasthttp"
)

// handleIngest accepts a batch of records, stamps arrival time, stores
// it and mirrors accepted records to the live feed. logType separates
// browser batches from backend-submitted ones.
func (s *Server) handleIngest(ctx *fasthttp.RequestCtx, logType string) {
	if !s.allowRequest(ctx) {
		return
	}

	body := ctx.PostBody()
	if len(body) == 0 {
		writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{
			"error": "Empty request body",
		})
		return
	}

	var batch core.Batch
	if err := json.Unmarshal(body, &batch); err != nil {
		s.invalidRecords.Add(1)
		writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("Invalid log format: %v", err),
		})
		return
	}

	now := core.NowISO()
	remoteAddr := ctx.RemoteIP().String()
	for i := range batch.Logs {
		batch.Logs[i].NormalizeEventName()
		if batch.Logs[i].ReceivedAt == "" {
			batch.Logs[i].ReceivedAt = now
		}
	}

	stored, err := s.store.InsertBatch(batch.Logs, logType)
	if err != nil {
		s.logger.Error("msg", "Failed to store batch",
			"component", "server",
			"log_type", logType,
			"error", err)
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{
			"error": "Failed to store logs",
		})
		return
	}

	// Mirror accepted records to live viewers and session tracking.
	// Records the store skipped as invalid stay out of the feed too.
	for _, rec := range batch.Logs {
		if store.ValidateRecord(rec) != nil {
			continue
		}
		s.hub.Publish(rec)
		s.sessions.Observe(rec, remoteAddr)
	}

	s.totalReceived.Add(uint64(stored))
	s.lastReceived.Store(time.Now())

	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"message": fmt.Sprintf("Received %d logs", stored),
		"status":  "success",
	})
}

func (s *Server) handleQuery(ctx *fasthttp.RequestCtx) {
	args := ctx.QueryArgs()

	f := store.Filter{
		Limit:     queryInt(args, "limit", 100),
		Offset:    queryInt(args, "offset", 0),
		Action:    string(args.Peek("action")),
		Component: string(args.Peek("component")),
		SessionID: string(args.Peek("session_id")),
		UserID:    string(args.Peek("user_id")),
		StartTime: string(args.Peek("start_time")),
		EndTime:   string(args.Peek("end_time")),
	}

	logs, err := s.store.Query(f)
	if err != nil {
		s.logger.Error("msg", "Query failed",
			"component", "server",
			"error", err)
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{
			"error": "Failed to query logs",
		})
		return
	}

	if logs == nil {
		logs = []core.Record{}
	}

	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"logs":   logs,
		"total":  len(logs),
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

// handleCSV appends pre-rendered CSV rows to the flat file store.
func (s *Server) handleCSV(ctx *fasthttp.RequestCtx) {
	if !s.allowRequest(ctx) {
		return
	}

	var batch core.CSVBatch
	if err := json.Unmarshal(ctx.PostBody(), &batch); err != nil {
		s.invalidRecords.Add(1)
		writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{
			"error": fmt.Sprintf("Invalid CSV batch: %v", err),
		})
		return
	}

	if len(batch.CSVData) == 0 {
		writeJSON(ctx, fasthttp.StatusBadRequest, map[string]string{
			"error": "Empty CSV batch",
		})
		return
	}

	if err := s.csvFiles.AppendLines(batch.CSVData); err != nil {
		s.logger.Error("msg", "Failed to append CSV rows",
			"component", "server",
			"error", err)
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{
			"error": "Failed to write CSV data",
		})
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"message": fmt.Sprintf("Received %d CSV rows", len(batch.CSVData)),
		"status":  "success",
	})
}

func (s *Server) handleStats(ctx *fasthttp.RequestCtx) {
	dbStats, err := s.store.Stats()
	if err != nil {
		s.logger.Error("msg", "Stats query failed",
			"component", "server",
			"error", err)
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{
			"error": "Failed to compute stats",
		})
		return
	}

	csvStats, err := s.csvFiles.Stats()
	if err != nil {
		s.logger.Warn("msg", "CSV stats unavailable",
			"component", "server",
			"error", err)
	}

	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"total_logs":           dbStats.TotalLogs,
		"total_sessions":       dbStats.TotalSessions,
		"recent_activity_24h":  dbStats.RecentActivity24h,
		"actions_breakdown":    dbStats.ActionsBreakdown,
		"components_breakdown": dbStats.ComponentsBreakdown,
		"csv_file":             csvStats,
		"sessions":             s.sessions.GetStats(),
		"live_feed":            s.hub.GetStats(),
		"net_limit":            s.limiter.GetStats(),
		"uptime_seconds":       int(time.Since(s.startTime).Seconds()),
	})
}

// handleReset clears both stores, the session tracker and the live
// feed backfill, and tells connected viewers to discard their state.
func (s *Server) handleReset(ctx *fasthttp.RequestCtx) {
	if err := s.store.Reset(); err != nil {
		s.logger.Error("msg", "Database reset failed",
			"component", "server",
			"error", err)
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{
			"error": "Failed to reset logs",
		})
		return
	}

	if err := s.csvFiles.Clear(); err != nil {
		s.logger.Warn("msg", "CSV clear failed",
			"component", "server",
			"error", err)
	}

	s.sessions.Reset()
	s.hub.Reset()

	s.logger.Info("msg", "All logs cleared", "component", "server")

	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"message": "All logs cleared",
		"status":  "success",
	})
}

func (s *Server) handleExport(ctx *fasthttp.RequestCtx) {
	records, err := s.store.ExportAll()
	if err != nil {
		s.logger.Error("msg", "Export query failed",
			"component", "server",
			"error", err)
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{
			"error": "Failed to export logs",
		})
		return
	}

	exportDir := s.cfg.ExportDir
	if exportDir == "" {
		exportDir = "./"
	}
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{
			"error": "Failed to create export directory",
		})
		return
	}

	filename := fmt.Sprintf("user_logs_export_%s.json", time.Now().Format("20060102_150405"))
	payload, err := json.MarshalIndent(map[string]any{
		"exported_at": core.NowISO(),
		"total_logs":  len(records),
		"logs":        records,
	}, "", "  ")
	if err != nil {
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{
			"error": "Failed to serialize export",
		})
		return
	}

	path := filepath.Join(exportDir, filename)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		s.logger.Error("msg", "Export write failed",
			"component", "server",
			"path", path,
			"error", err)
		writeJSON(ctx, fasthttp.StatusInternalServerError, map[string]string{
			"error": "Failed to write export file",
		})
		return
	}

	// The CSV file gets its own timestamped copy next to the JSON dump
	csvPath, err := s.csvFiles.Export(exportDir)
	if err != nil {
		s.logger.Warn("msg", "CSV export copy failed",
			"component", "server",
			"error", err)
	}
	csvFilename := ""
	if csvPath != "" {
		csvFilename = filepath.Base(csvPath)
	}

	s.logger.Info("msg", "Logs exported",
		"component", "server",
		"filename", filename,
		"csv_filename", csvFilename,
		"total_logs", len(records))

	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"message":      "Logs exported",
		"filename":     filename,
		"csv_filename": csvFilename,
		"total_logs":   len(records),
	})
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "uxtrace",
		"timestamp": core.NowISO(),
	})
}

func queryInt(args *fasthttp.Args, key string, fallback int) int {
	raw := string(args.Peek(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
