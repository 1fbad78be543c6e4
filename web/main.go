package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/df07/go-view-analysis/web/server"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 8080, "Port to serve on")
	workers := flag.Int("workers", 0, "Goroutines per request (0 = one per CPU)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	webServer := server.NewServer(*port, *workers, slog.Default())
	slog.Info("view analysis web server", "url", fmt.Sprintf("http://localhost:%d/api/health", *port))

	if err := webServer.Start(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}
