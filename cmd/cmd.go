package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meetup-backend/internal/config"
	"meetup-backend/internal/handlers"
	"meetup-backend/internal/metrics"
	"meetup-backend/internal/repository"
	"meetup-backend/internal/services"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func Run() {
	configPath := pflag.String("config", "config.yaml", "Config file location")
	pflag.Parse()

	// .env is optional
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	var bg workers

	// Metrics
	var (
		m        *metrics.Metrics
		registry *prometheus.Registry
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(registry)
	}

	// Pair history
	var (
		history     services.HistoryRecorder
		historyRepo handlers.PairHistory
	)
	if cfg.Database.Enabled {
		db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		if err := db.Ping(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping database")
		}
		log.Info().Msg("Database connection established")

		pairRepo := repository.NewPairRepository(db)
		if cfg.Database.AutoMigrate {
			if err := pairRepo.Migrate(context.Background()); err != nil {
				log.Fatal().Err(err).Msg("Failed to migrate database")
			}
		}

		writer := services.NewHistoryWriter(pairRepo, cfg.Database.QueueSize, m)
		bg.startHistory(writer)

		history = writer
		historyRepo = pairRepo
	}

	// Matchmaking
	matchmaking := services.NewMatchmakingService(services.Options{
		PairTTL:         cfg.Matching.PairTTL,
		PresenceTTL:     cfg.Matching.PresenceTTL,
		EnforceExpiry:   cfg.Matching.EnforceExpiry,
		StrictDecisions: cfg.Matching.StrictDecisions,
		History:         history,
		Metrics:         m,
	})
	if registry != nil {
		metrics.RegisterStats(registry, matchmaking.Stats)
	}

	bg.startSweeper(matchmaking, cfg.Matching.SweepInterval)

	deps := routerDeps{
		matchmaking: matchmaking,
		history:     historyRepo,
		metrics:     m,
		metricsPath: cfg.Metrics.Path,
		logger:      log.Logger,
	}
	if registry != nil {
		deps.gatherer = registry
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      newRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Dur("pair_ttl", cfg.Matching.PairTTL).
			Bool("enforce_expiry", cfg.Matching.EnforceExpiry).
			Bool("strict_decisions", cfg.Matching.StrictDecisions).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop the sweeper, then flush pending history before the pool closes
	bg.stop()

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if format != "json" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.DefaultContextLogger = &log.Logger

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
