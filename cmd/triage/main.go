// Command triage classifies, quality-gates, and extracts every file in a
// directory, writing per-file JSON records, extracted-text sidecars, and an
// index into the output directory, then prints a batch report.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hazyhaar/triage/runlog"
	"github.com/hazyhaar/triage/triage"
)

func main() {
	os.Exit(run())
}

// run carries the whole invocation so deferred cleanup (the run-history
// store flush in particular) happens on every exit path.
func run() int {
	inDir := flag.String("in", "", "input directory to triage (required)")
	outDir := flag.String("out", "triage-out", "output directory for records and extracted text")
	configPath := flag.String("config", "", "YAML config file (optional)")
	historyPath := flag.String("history", "", "SQLite file for run history (optional)")
	workers := flag.Int("workers", 0, "concurrent workers (overrides config)")
	timeout := flag.Duration("timeout", 0, "per-file timeout (overrides config)")
	flag.Parse()

	logger := newLogger()
	slog.SetDefault(logger)

	if *inDir == "" {
		slog.Error("missing -in directory")
		flag.Usage()
		return 1
	}

	var cfg triage.Config
	if *configPath != "" {
		var err error
		cfg, err = triage.LoadConfig(*configPath)
		if err != nil {
			slog.Error("load config", "error", err)
			return 1
		}
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *timeout > 0 {
		cfg.FileTimeout = *timeout
	}
	cfg.Logger = logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var onRecord func(triage.FileRecord)
	if *historyPath != "" {
		store, err := runlog.Open(*historyPath)
		if err != nil {
			slog.Error("run history", "error", err)
			return 1
		}
		defer store.Close()
		onRecord = func(rec triage.FileRecord) {
			store.RecordAsync(runlog.FromRecord(rec))
		}
	}

	pipeline := triage.New(cfg)
	start := time.Now()
	records, err := pipeline.Run(ctx, *inDir, *outDir, onRecord)
	if err != nil {
		slog.Error("batch run", "error", err)
		return 1
	}

	report := triage.Aggregate(records)
	fmt.Print(report.Text())
	fmt.Printf("\nCompleted in %s, results in %s\n", time.Since(start).Round(time.Millisecond), *outDir)
	return 0
}

func newLogger() *slog.Logger {
	var lvl slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
