package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"cardrender/internal/app"
	"cardrender/internal/config"
	"cardrender/internal/httpapi"
	"cardrender/internal/pkg/logger"
	"cardrender/internal/pkg/shutdown"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{ServiceName: "cardrender"}).LogFatal("invalid configuration", err)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "cardrender",
		AddSource:   cfg.Log.Source,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
	})

	log.Info("starting card render service",
		"version", cfg.Version,
		"storage", cfg.Storage.Provider,
		"browser_mode", cfg.Browser.Mode,
		"ledger", cfg.Database.URL != "",
	)

	ctx := context.Background()

	// Initialize shutdown manager. Cleanups run LIFO: the log file closes last.
	shutdownMgr := shutdown.NewManager(log, cfg.Server.ShutdownTimeout)
	shutdownMgr.Register("logger", func(ctx context.Context) error {
		return log.Close()
	})

	// Wire components
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.LogFatal("failed to initialize service", err)
	}
	a.RegisterShutdown(shutdownMgr)

	// Create HTTP router
	deps := httpapi.Deps{
		Pipeline:       a.Pipeline,
		Templates:      a.Templates,
		SP:             a.Storage,
		Log:            log,
		Version:        cfg.Version,
		APIKey:         cfg.APIKey,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		ServeFiles:     cfg.Storage.Provider == config.ProviderLocalFS,
	}
	if a.Ledger != nil {
		deps.Ledger = a.Ledger
	}
	if cfg.APIKey == "" {
		log.Warn("API_KEY is not set, render endpoints are unauthenticated")
	}
	router := httpapi.NewRouter(deps)

	// Create HTTP server
	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Render.Timeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Register server shutdown
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	// Start server in goroutine
	go func() {
		log.Info("HTTP server listening",
			"addr", server.Addr,
			"port", cfg.Server.Port,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	// Wait for shutdown signal
	if err := shutdownMgr.Wait(ctx); err != nil {
		os.Exit(1)
	}
}
