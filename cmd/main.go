package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CDeX-Labs/CDeX-Contest-Service/config"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/auth"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/gateway"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/handlers"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/hub"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/kafka"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/metrics"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/middleware"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/presence"
	redisclient "github.com/CDeX-Labs/CDeX-Contest-Service/internal/redis"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/session"
	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/workspace"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	devMode := flag.Bool("dev", false, "load .env and log in console format")
	flag.Parse()

	cfg := config.Load(*devMode)

	var logger zerolog.Logger
	if *devMode {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	logger = logger.With().Timestamp().Str("service", cfg.App.Name).Logger()

	if cfg.JWT.Secret == "" {
		logger.Fatal().Msg("JWT_SECRET is required")
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	m := metrics.New()
	presenceManager := presence.NewManager(redisClient, cfg.App.InstanceID, logger)
	workspaceStore := workspace.NewRedisStore(redisClient, cfg.Session.WorkspaceTTL)

	// Registration and submissions must be attributed to the participant,
	// so each session talks to the platform with the connection's own token.
	// The service token only covers tooling that runs without a user.
	sessionFactory := func(contestID, userID, userToken string, observer session.Observer) *session.Controller {
		token := userToken
		if token == "" {
			token = cfg.Platform.Token
		}
		return session.NewController(session.Config{
			ContestID:         contestID,
			UserID:            userID,
			Registry:          gateway.NewRegistryClient(cfg.Platform.BaseURL, token, cfg.Platform.Timeout, logger),
			Judge:             gateway.NewJudgeClient(cfg.Judge.BaseURL, token, cfg.Judge.Timeout, logger),
			Workspace:         workspace.NewCache(contestID, userID, workspaceStore, logger),
			TickInterval:      cfg.Session.TickInterval,
			ExitSubmitTimeout: cfg.Session.ExitSubmitTimeout,
			Observer:          observer,
			Logger:            logger,
		})
	}

	wsHub := hub.NewHub(sessionFactory, m, presenceManager, logger)
	go wsHub.Run()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, []string{
		"submission.judged",
		"leaderboard.updated",
		"contest.started",
		"contest.ended",
	}, m, logger)
	kafka.NewHandlers(wsHub, logger).RegisterAll(consumer)
	consumer.Start()

	validator := auth.NewJWTValidator(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window, m, logger)
	wsHandler := handlers.NewWebSocketHandler(wsHub, presenceManager, logger)

	mux := http.NewServeMux()
	mux.Handle("/v1/ws", rateLimiter.Middleware(auth.AuthMiddleware(validator, m)(wsHandler)))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handlers.HealthHandler())
	mux.HandleFunc("/readyz", handlers.ReadyHandler(wsHub))

	server := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: mux,
	}

	go func() {
		logger.Info().Str("port", cfg.App.Port).Msg("Server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := consumer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Kafka consumer shutdown failed")
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}

	logger.Info().Msg("Server stopped")
}
