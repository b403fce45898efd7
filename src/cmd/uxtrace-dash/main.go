package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"uxtrace/src/internal/config"
	"uxtrace/src/internal/core"
	"uxtrace/src/internal/dashboard"
	"uxtrace/src/internal/feed"
	"uxtrace/src/internal/version"

	"github.com/lixenwraith/log"
)

var (
	baseURL     = flag.String("url", "", "Collector base URL (overrides config)")
	limit       = flag.Int("limit", 0, "Number of stored records to fetch")
	follow      = flag.Bool("follow", false, "Stay connected and print the live feed")
	showStats   = flag.Bool("stats", false, "Print collector statistics and exit")
	showDetails = flag.Bool("details", false, "Print each record's details map")
	showVersion = flag.Bool("version", false, "Show version information")

	// Client-side filters
	action    = flag.String("action", "", "Only show records with this action")
	component = flag.String("component", "", "Only show records from this component")
	sessionID = flag.String("session", "", "Only show records from this session")
	userID    = flag.String("user", "", "Only show records from this user")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	cfg, err := config.LoadWithCLI(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *baseURL != "" {
		cfg.Dashboard.BaseURL = *baseURL
	}

	logger := log.NewLogger()
	if err := logger.ApplyConfigString("level=16", "disable_file=true", "enable_stdout=true", "stdout_target=stderr"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Shutdown(time.Second)

	viewer := dashboard.NewViewer(cfg.Dashboard, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if *showStats {
		if err := printStats(ctx, viewer); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	filter := dashboard.Filter{
		Action:    *action,
		Component: *component,
		SessionID: *sessionID,
		UserID:    *userID,
		Limit:     *limit,
	}

	if err := printStored(ctx, viewer, filter); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *follow {
		if err := followLive(ctx, viewer, filter); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

func printStored(ctx context.Context, viewer *dashboard.Viewer, filter dashboard.Filter) error {
	records, err := viewer.Fetch(ctx, filter)
	if err != nil {
		return err
	}

	// Stored records arrive newest first; print oldest first
	for i := len(records) - 1; i >= 0; i-- {
		printRecord(records[i])
	}
	fmt.Printf("-- %d stored records --\n", len(records))
	return nil
}

func followLive(ctx context.Context, viewer *dashboard.Viewer, filter dashboard.Filter) error {
	events, err := viewer.Subscribe(ctx)
	if err != nil {
		return err
	}

	fmt.Println("-- live feed connected --")

	for event := range events {
		switch event.Type {
		case feed.EventNewLog:
			if event.Record != nil && filter.Match(*event.Record) {
				printRecord(*event.Record)
			}

		case feed.EventBuffer:
			matched := 0
			for _, rec := range event.Records {
				if filter.Match(rec) {
					matched++
				}
			}
			fmt.Printf("-- backfill: %d buffered records (%d match filter) --\n",
				len(event.Records), matched)

		case feed.EventReset:
			fmt.Println("-- collector reset: all logs cleared --")
		}
	}

	return ctx.Err()
}

func printRecord(rec core.Record) {
	fmt.Println(dashboard.FormatRecord(rec))
	if *showDetails {
		fmt.Println(dashboard.FormatDetails(rec))
	}
}

func printStats(ctx context.Context, viewer *dashboard.Viewer) error {
	stats, err := viewer.Stats(ctx)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
