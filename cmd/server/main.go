package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meatlens/backend/config"
	"github.com/meatlens/backend/internal/app"
	httpDelivery "github.com/meatlens/backend/internal/delivery/http"
	"github.com/meatlens/backend/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Environment: cfg.Server.Environment,
	})

	log.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("cache", cfg.Cache.Type).
		Str("learning_store", cfg.Learning.Store).
		Bool("sink", cfg.Sink.DatabaseURL != "").
		Msg("starting MeatLens backend v1.0.0")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize services")
	}

	go func() {
		if err := services.WatchReference(ctx); err != nil {
			log.Error().Err(err).Msg("reference watcher stopped")
		}
	}()

	handler := httpDelivery.NewHandler(httpDelivery.Services{
		Classifier: services.Classifier,
		Learner:    services.Learner,
		Unifier:    services.Unifier,
		Filter:     services.Filter,
		Sink:       services.Sink,
	}, log)
	router := httpDelivery.SetupRouter(cfg, handler, log)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := services.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to close services")
	}
	log.Info().Msg("stopped")
}
