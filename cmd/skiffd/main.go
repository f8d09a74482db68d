package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skiffhttp/skiff/internal/handler"
	"github.com/skiffhttp/skiff/internal/logger"
	"github.com/skiffhttp/skiff/internal/server"
	"github.com/skiffhttp/skiff/pkg/config"
	"github.com/skiffhttp/skiff/pkg/source/badger"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	logLevel := flag.String("log-level", "", "Log level override (DEBUG, INFO, WARN, ERROR)")
	listen := flag.String("listen", "", "Listen address override, e.g. :8080")
	dumpConfig := flag.Bool("dump-config", false, "Print the effective configuration as YAML and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// CLI flags take precedence over file and environment.
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}

	if *dumpConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			log.Fatalf("Failed to marshal configuration: %v", err)
		}
		fmt.Print(string(out))
		return
	}

	logger.SetLevel(cfg.Logging.Level)
	if err := setupLogOutput(cfg.Logging.Output); err != nil {
		log.Fatalf("Failed to set up log output: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("skiff - embeddable HTTP content server")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	// Metrics first so the store and engine pick up live collectors.
	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server != nil {
		go func() {
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Metrics server error: %v", err)
			}
		}()
	}

	store, err := config.CreateSourceStore(ctx, &cfg.Source)
	if err != nil {
		log.Fatalf("Failed to create source store: %v", err)
	}
	if bs, ok := store.(*badger.BadgerStore); ok {
		defer func() {
			if err := bs.Close(); err != nil {
				logger.Error("Badger close error: %v", err)
			}
		}()
	}

	logger.Info("Server configuration:")
	logger.Info("  Listen: %s", cfg.Server.Listen)
	logger.Info("  Source: %s", cfg.Source.Type)
	logger.Info("  Read timeout: %v", cfg.Server.ReadTimeout)
	logger.Info("  Shutdown timeout: %v", cfg.Server.ShutdownTimeout)
	if cfg.Server.ConnsPerSecond > 0 {
		logger.Info("  Accept rate: %d conns/s (burst %d)", cfg.Server.ConnsPerSecond, cfg.Server.Burst)
	} else {
		logger.Info("  Accept rate: unlimited")
	}

	srv := server.New(server.Config{
		Addr:           cfg.Server.Listen,
		ReadTimeout:    cfg.Server.ReadTimeout,
		ConnsPerSecond: cfg.Server.ConnsPerSecond,
		Burst:          cfg.Server.Burst,
	}, handler.NewFileHandler(store), metricsResult.HTTP)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running on %s. Press Ctrl+C to stop.", cfg.Server.Listen)

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
		cancel()

		select {
		case err := <-serverDone:
			if err != nil {
				logger.Error("Server shutdown error: %v", err)
				os.Exit(1)
			}
			logger.Info("Server stopped gracefully")
		case <-time.After(cfg.Server.ShutdownTimeout):
			logger.Error("Shutdown timed out after %v", cfg.Server.ShutdownTimeout)
			os.Exit(1)
		}

	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error: %v", err)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	}
}

// setupLogOutput points the logger at the configured destination.
func setupLogOutput(output string) error {
	switch output {
	case "", "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file %s: %w", output, err)
		}
		logger.SetOutput(f)
	}
	return nil
}
