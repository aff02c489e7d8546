package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/yipyip1/Thesis-Sync-sub000/internal/auth"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/logging"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/server"
	"github.com/yipyip1/Thesis-Sync-sub000/internal/signaling"
)

func main() {
	log := logging.New(zerolog.InfoLevel)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	verifier, err := auth.NewVerifier(os.Getenv("JWT_SECRET"))
	if err != nil {
		log.Fatal().Err(err).Msg("auth setup failed")
	}

	registry := signaling.NewRegistry(log)
	hub := signaling.NewHub(registry, log)
	go hub.Run()

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: server.New(hub, verifier, log).Router(),
	}

	go func() {
		log.Info().Str("port", port).Msg("starting signaling server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	hub.Stop()
	log.Info().Msg("server exited")
}
