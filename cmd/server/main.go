package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"smabt/internal/advisor"
	"smabt/internal/config"
	"smabt/internal/engine"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	config.SetupLogging(os.Stderr, cfg.LogLevel, cfg.LogJSON)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	processID := uuid.NewString()
	eng, closeEngine, err := engine.FromConfig(ctx, cfg, processID)
	if err != nil {
		log.Fatalf("engine setup error: %v", err)
	}
	defer func() {
		if err := closeEngine(); err != nil {
			log.Printf("failed to close engine resources: %v", err)
		}
	}()

	adv, advErr := advisor.FromConfig(cfg)
	switch {
	case errors.Is(advErr, advisor.ErrDisabled):
		adv, advErr = nil, nil
	case advErr != nil:
		slog.Warn("advisory unavailable", "provider", cfg.Advisor, "error", advErr)
		adv = nil
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(&server{engine: eng, advisor: adv, advisorErr: advErr, defaults: cfg}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Printf("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
	}()

	slog.Info("starting server", "addr", cfg.HTTPAddr, "source", cfg.Source, "cache", cfg.Cache, "advisor", cfg.Advisor, "process_id", processID)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server: %v", err)
	}
	log.Printf("server shutdown complete")
}
