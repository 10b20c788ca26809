package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/idcard-assistant/internal/config"
	"github.com/tjfontaine/idcard-assistant/internal/greeter"
	"github.com/tjfontaine/idcard-assistant/internal/server"
	"github.com/tjfontaine/idcard-assistant/internal/telemetry"
	"github.com/tjfontaine/idcard-assistant/internal/wizard"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer(cfg.Telemetry, nil, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	personalizer := greeter.New(cfg.LLM, logger, nil)
	conv := wizard.New(personalizer, wizard.WithLogger(logger))

	srv := server.New(cfg.Server, logger)
	server.NewConversationHandler(conv, logger).Register(srv.Router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	case <-sigChan:
	}

	logger.Info("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Server shutdown complete")
}
