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

	"github.com/mcdev12/standup/go/internal/config"
	"github.com/mcdev12/standup/go/internal/meeting"
	"github.com/mcdev12/standup/go/internal/meeting/gateway"
	"github.com/mcdev12/standup/go/internal/meeting/publisher"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServeCmd(deps *dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the meeting timer over HTTP and WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, deps.config)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	pub, err := newPublisher(ctx, cfg.NATS)
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close publisher")
		}
	}()

	engine := meeting.New(cfg.Meeting.LengthInMinutes, cfg.Meeting.Attendees,
		meeting.WithFrequency(cfg.Timer.Frequency))
	defer engine.Close()

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.PublishTimeout = cfg.Server.PublishTimeout
	service := gateway.NewService(gatewayConfig, engine, cfg.Meeting.Title, pub)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	serviceDone := make(chan error, 1)
	go func() {
		serviceDone <- service.Run(runCtx)
	}()

	server := setupServer(cfg.Server.Port, service)
	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("meeting_id", engine.ID().String()).
			Str("title", cfg.Meeting.Title).
			Int("length_in_minutes", cfg.Meeting.LengthInMinutes).
			Msg("starting standup server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down standup server")
	case err := <-serverErr:
		cancel()
		return fmt.Errorf("server failed: %w", err)
	case err := <-serviceDone:
		if err != nil {
			return fmt.Errorf("gateway service failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	cancel()

	log.Info().Msg("standup server exited")
	return nil
}

func newPublisher(ctx context.Context, cfg config.NATSConfig) (publisher.EventPublisher, error) {
	if !cfg.Enabled {
		log.Info().Msg("NATS disabled, logging meeting events")
		return publisher.NewLogPublisher(), nil
	}

	jsConfig := publisher.DefaultJetStreamConfig()
	jsConfig.URL = cfg.URL
	if cfg.StreamName != "" {
		jsConfig.StreamName = cfg.StreamName
	}
	if cfg.SubjectPrefix != "" {
		jsConfig.SubjectPrefix = cfg.SubjectPrefix
	}

	pub, err := publisher.NewJetStreamPublisher(ctx, jsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
	}
	return pub, nil
}
