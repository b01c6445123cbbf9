// Command triage-mcp exposes the triage pipeline as MCP tools over stdio:
// triage_process, triage_detect, triage_formats.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/triage/triage"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (optional)")
	root := flag.String("root", "", "confine tool paths to this directory (optional)")
	flag.Parse()

	logger := newLogger()
	slog.SetDefault(logger)

	var cfg triage.Config
	if *configPath != "" {
		var err error
		cfg, err = triage.LoadConfig(*configPath)
		if err != nil {
			slog.Error("load config", "error", err)
			os.Exit(1)
		}
	}
	if *root != "" {
		cfg.Root = *root
	}
	cfg.Logger = logger

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "triage",
		Version: "1.0.0",
	}, nil)
	triage.New(cfg).RegisterMCP(srv)

	slog.Info("triage MCP server starting", "transport", "stdio")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		slog.Error("mcp server", "error", err)
		os.Exit(1)
	}
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
