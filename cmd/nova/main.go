package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Priya-Diwakar/nova-voice-assistant/internal/config"
	"github.com/Priya-Diwakar/nova-voice-assistant/server"
)

func main() {
	initLogging()

	addr := os.Getenv("NOVA_ADDR")
	if addr == "" {
		addr = ":8000"
	}

	keys := config.NewStoreFromEnv()
	srv := server.New(keys)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-done
		slog.Info("Shutting down")
		if err := srv.Shutdown(); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
	}()

	slog.Info("Listening", "addr", addr)
	if err := srv.Listen(addr); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func initLogging() {
	level := slog.LevelInfo
	if os.Getenv("NOVA_DEBUG") != "" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if os.Getenv("GO_ENV") == "production" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))
	}
}
