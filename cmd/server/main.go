package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/microhttpd/internal/config"
	"example.com/microhttpd/internal/handlers/staticfile"
	"example.com/microhttpd/internal/logger"
	"example.com/microhttpd/internal/metrics"
	"example.com/microhttpd/internal/router"
	"example.com/microhttpd/internal/server"
)

var configFilePath string

func main() {
	flag.StringVar(&configFilePath, "config", "", "Path to the configuration file (JSON or TOML)")
	flag.Parse()

	if configFilePath == "" {
		fmt.Fprintln(os.Stderr, "Error: Configuration file path must be provided via -config flag.")
		flag.Usage()
		os.Exit(1)
	}

	absConfigPath, err := filepath.Abs(configFilePath)
	if err != nil {
		log.Fatalf("Error getting absolute path for config file %s: %v", configFilePath, err)
	}

	cfg, err := config.LoadConfig(absConfigPath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", absConfigPath, err)
	}

	appLogger, err := logger.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		if err := appLogger.CloseLogFiles(); err != nil {
			log.Printf("Error closing log files during shutdown: %v", err)
		}
	}()
	appLogger.Info("Logger initialized", nil)

	if cfg.Server.MetricsAddress != "" {
		startMetricsEndpoint(cfg.Server.MetricsAddress, appLogger)
	}

	resolver := staticfile.NewResolver(cfg.Files, appLogger)
	files := staticfile.New(cfg.Files, appLogger)
	var auth router.Authorizer
	if ac := cfg.Files.Authentication; ac != nil {
		auth = &router.BasicAuthorizer{Realm: ac.Realm, Users: ac.Users}
		appLogger.Info("Basic authentication enabled", logger.LogFields{"realm": ac.Realm})
	}
	appRouter := router.New(cfg, resolver, files, auth, appLogger)
	appLogger.Info("Router initialized", nil)

	srv, err := server.NewServer(cfg, appLogger, appRouter)
	if err != nil {
		appLogger.Error("Failed to initialize server", logger.LogFields{"error": err.Error()})
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLogger.Info("Received signal, shutting down", logger.LogFields{"signal": sig.String()})
		srv.Shutdown()
	}()

	appLogger.Info("Starting server", logger.LogFields{"address": cfg.Server.Address})
	if err := srv.Start(); err != nil {
		appLogger.Error("Server terminated", logger.LogFields{"error": err.Error()})
		os.Exit(1)
	}
	appLogger.Info("Server stopped", nil)
}

// startMetricsEndpoint exposes Prometheus metrics on its own listener so
// scrapes never contend with the serving path.
func startMetricsEndpoint(addr string, appLogger *logger.Logger) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.MustRegister(registry)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			appLogger.Error("Metrics endpoint terminated", logger.LogFields{"error": err.Error()})
		}
	}()
	appLogger.Info("Metrics endpoint listening", logger.LogFields{"address": addr})
}
