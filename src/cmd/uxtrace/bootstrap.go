package main

import (
	"fmt"
	"strings"
	"time"

	"uxtrace/src/internal/config"
	"uxtrace/src/internal/feed"
	"uxtrace/src/internal/server"
	"uxtrace/src/internal/session"
	"uxtrace/src/internal/store"

	"github.com/lixenwraith/log"
)

// collector bundles the running server with the components it owns, so
// shutdown can tear them down in order.
type collector struct {
	server   *server.Server
	store    *store.Store
	sessions *session.Tracker
}

func bootstrapCollector(cfg *config.Config) (*collector, error) {
	st, err := store.Open(cfg.Server.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	csvFiles, err := store.NewCSVFiles(cfg.Server.CSVDirectory, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open CSV store: %w", err)
	}

	hub := feed.NewHub(int(cfg.Server.BackfillSize), int(cfg.Server.StreamBufferSize), logger)
	sessions := session.NewTracker(30 * time.Minute)
	sessions.OnExpiry(func(sessionID, userID string) {
		logger.Info("msg", "Session expired",
			"component", "session",
			"session_id", sessionID,
			"user_id", userID)
	})

	srv := server.New(cfg.Server, st, csvFiles, hub, sessions, logger)
	if err := srv.Start(); err != nil {
		sessions.Stop()
		st.Close()
		return nil, err
	}

	return &collector{
		server:   srv,
		store:    st,
		sessions: sessions,
	}, nil
}

func (c *collector) Shutdown() {
	c.server.Stop()
	c.sessions.Stop()

	if err := c.store.Close(); err != nil {
		logger.Error("msg", "Error closing database", "error", err)
	}
}

func initializeLogger(cfg *config.Config) error {
	logger = log.NewLogger()

	var configArgs []string

	levelValue, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	configArgs = append(configArgs, fmt.Sprintf("level=%d", levelValue))

	switch cfg.Logging.Output {
	case "none":
		configArgs = append(configArgs, "disable_file=true", "enable_stdout=false")

	case "stdout":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stdout")

	case "stderr":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stderr")

	case "file":
		configArgs = append(configArgs, "enable_stdout=false")
		configureFileLogging(&configArgs, cfg)

	case "both":
		configArgs = append(configArgs, "enable_stdout=true")
		configureFileLogging(&configArgs, cfg)
		configureConsoleTarget(&configArgs, cfg)

	default:
		return fmt.Errorf("invalid log output mode: %s", cfg.Logging.Output)
	}

	if cfg.Logging.Console != nil && cfg.Logging.Console.Format != "" {
		configArgs = append(configArgs, fmt.Sprintf("format=%s", cfg.Logging.Console.Format))
	}

	if err := logger.ApplyConfigString(configArgs...); err != nil {
		return err
	}
	return logger.Start()
}

func configureFileLogging(configArgs *[]string, cfg *config.Config) {
	if cfg.Logging.File != nil {
		*configArgs = append(*configArgs,
			fmt.Sprintf("directory=%s", cfg.Logging.File.Directory),
			fmt.Sprintf("name=%s", cfg.Logging.File.Name),
			fmt.Sprintf("max_size_mb=%d", cfg.Logging.File.MaxSizeMB),
			fmt.Sprintf("max_total_size_mb=%d", cfg.Logging.File.MaxTotalSizeMB))

		if cfg.Logging.File.RetentionHours > 0 {
			*configArgs = append(*configArgs,
				fmt.Sprintf("retention_period_hrs=%.1f", cfg.Logging.File.RetentionHours))
		}
	}
}

func configureConsoleTarget(configArgs *[]string, cfg *config.Config) {
	target := "stderr"

	if cfg.Logging.Console != nil && cfg.Logging.Console.Target != "" {
		target = cfg.Logging.Console.Target
	}

	if target == "split" {
		*configArgs = append(*configArgs, "stdout_split_mode=true")
		*configArgs = append(*configArgs, "stdout_target=split")
	} else {
		*configArgs = append(*configArgs, fmt.Sprintf("stdout_target=%s", target))
	}
}

func parseLogLevel(level string) (int, error) {
	switch strings.ToLower(level) {
	case "debug":
		return int(log.LevelDebug), nil
	case "info":
		return int(log.LevelInfo), nil
	case "warn", "warning":
		return int(log.LevelWarn), nil
	case "error":
		return int(log.LevelError), nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}
