// Package main is the entry point for the lesson assistant server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"lesson-assistant/internal/api"
	"lesson-assistant/internal/config"
	"lesson-assistant/internal/logging"
	"lesson-assistant/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "info", "text").Error("failed to load configuration", tint.Err(err))
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	db, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DatabasePath, tint.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	srv, err := api.NewServer(context.Background(), cfg, db, logger)
	if err != nil {
		logger.Error("failed to initialize server", tint.Err(err))
		os.Exit(1)
	}
	router := api.NewRouter(srv)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // Disable for streaming
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.ServerAddr, "skills_root", cfg.SkillsRoot)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", tint.Err(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", tint.Err(err))
		return
	}

	logger.Info("server stopped")
}
