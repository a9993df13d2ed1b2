package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/liveintake/intake/internal/config"
	"github.com/liveintake/intake/internal/domain/areas"
	"github.com/liveintake/intake/internal/domain/intake"
	"github.com/liveintake/intake/internal/domain/staff"
	"github.com/liveintake/intake/internal/platform/middleware"
	"github.com/liveintake/intake/internal/platform/realtime"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the intake API and realtime channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// server holds the components wired behind the HTTP API.
type server struct {
	echo       *echo.Echo
	hub        *realtime.Hub
	sessions   *intake.Manager
	aggregator *staff.Aggregator
	directory  *areas.Directory
}

func newServer(cfg *config.Config, dir *areas.Directory, logger zerolog.Logger) *server {
	hub := realtime.NewHub(logger)

	pub := intake.NewPublisher(hub, cfg.ChannelName, logger)
	sessions := intake.NewManager(pub, intake.Options{
		IdleTimeout: cfg.IdleTimeout,
		Directory:   dir,
		Validator:   intake.Validator{Region: cfg.PhoneRegion, Language: cfg.MessageLang},
		Logger:      logger,
	})

	agg := staff.NewAggregator(logger)
	agg.Attach(hub, cfg.ChannelName)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger, "/health"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-ID"},
	}))

	s := &server{echo: e, hub: hub, sessions: sessions, aggregator: agg, directory: dir}

	e.GET("/health", s.health)

	apiV1 := e.Group("/api/v1")
	apiV1.Use(middleware.SecurityHeaders())
	apiV1.Use(middleware.BodyLimit(cfg.BodyLimit))
	limits := middleware.DefaultRateLimitConfig()
	limits.RequestsPerSecond = cfg.RateLimitRPS
	limits.BurstSize = cfg.RateLimitBurst
	limits.Key = middleware.SessionKey
	apiV1.Use(middleware.RateLimit(limits))

	areas.NewHandler(dir).RegisterRoutes(apiV1)
	intake.NewHandler(sessions).RegisterRoutes(apiV1)
	staff.NewHandler(agg).RegisterRoutes(apiV1)

	realtime.NewHandler(hub, logger).RegisterRoutes(e.Group("/realtime"))

	return s
}

func (s *server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"version":  "0.1.0",
		"clients":  s.hub.ClientCount(),
		"sessions": s.sessions.Len(),
		"patients": s.aggregator.Len(),
		"areas":    !s.directory.Empty(),
	})
}

// Close releases form timers and the staff subscription.
func (s *server) Close() {
	s.sessions.CloseAll()
	s.aggregator.Close()
}

func runServer() error {
	logger := newLogger(os.Stdout, os.Getenv("ENV"), "info")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger = newLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	dir := areas.NewLoader(logger).Load(ctx, cfg.AreasSource)
	logger.Info().Str("source", cfg.AreasSource).Int("provinces", len(dir.Provinces)).Msg("area directory loaded")

	srv := newServer(cfg, dir, logger)
	defer srv.Close()

	if cfg.UsesKafka() {
		instanceID := uuid.NewString()
		groupID := cfg.KafkaGroupID
		if groupID == "" {
			groupID = "intake-" + instanceID
		}
		bridge := realtime.NewKafkaBridge(realtime.KafkaConfig{
			Brokers:    cfg.KafkaBrokers,
			Topic:      cfg.KafkaTopic,
			GroupID:    groupID,
			InstanceID: instanceID,
		}, srv.hub, logger)
		defer bridge.Close()

		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("kafka bridge stopped")
			}
		}()
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka bridge started")
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("channel", cfg.ChannelName).Msg("starting server")
		if err := srv.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
