package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gout/internal/api"
	"gout/internal/config"
	"gout/internal/database"
	"gout/internal/domain"
	"gout/internal/events"
	"gout/internal/export"
	"gout/internal/idempotency"
	"gout/internal/logging"
	"gout/internal/metrics"
	"gout/internal/scheduler"
	"gout/internal/service"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}
	cache := buildReplayCache(cfg, redisClient, logger)

	bus := events.NewBus()
	subscribeAuditLog(bus, logger)

	sched := scheduler.New(logger, scheduler.DefaultRetryPolicy())

	bookingService := service.NewBookingService(db, cache, bus, cfg.Booking, logger)
	paymentService := service.NewPaymentService(db, cache, bus, logger)
	walletService := service.NewWalletService(db, cache, bus, logger)
	tourService := service.NewTourService(db, sched, cfg.Booking, logger)
	reportService := export.NewReportService(db, cfg.Exports.Path, logger)

	httpServer := api.NewHTTPServer(cfg.API, bookingService, paymentService, walletService, tourService, reportService, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.RunEvery(ctx, cfg.Booking.SweepInterval(), "pending-booking-sweep", bookingService.ExpirePendingBookings)

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, logger)
		go backup.Start(ctx)
	}

	startMetrics(ctx, cfg, logger)

	return serve(ctx, httpServer, sched, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, &logger, closer, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := idempotency.NewRedisClient(cfg.Redis)
	if err := idempotency.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// buildReplayCache wires redis as the primary replay cache with the
// in-memory cache behind it. Without redis the memory cache serves
// alone; dedup correctness still rests on the database keys.
func buildReplayCache(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) domain.ReplayCache {
	memory := idempotency.NewMemoryCache(cfg.Redis.TTL())
	if redisClient == nil {
		return memory
	}
	primary := idempotency.NewRedisCache(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.TTL())
	return idempotency.NewFailoverCache(primary, memory, logger)
}

func subscribeAuditLog(bus *events.Bus, logger *zerolog.Logger) {
	auditLogger := logger.With().Str("component", "audit").Logger()
	handler := func(event *events.Event) error {
		auditLogger.Info().
			Str("event_type", event.Type).
			RawJSON("payload", event.Payload).
			Msg("domain event")
		return nil
	}

	for _, eventType := range []string{
		events.EventBookingCreated,
		events.EventBookingCompleted,
		events.EventBookingCancelled,
		events.EventBookingExpired,
		events.EventWalletTopUp,
		events.EventPaymentSettled,
		events.EventPaymentRefunded,
	} {
		bus.Subscribe(eventType, handler)
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func serve(ctx context.Context, httpServer *api.HTTPServer, sched *scheduler.Scheduler, logger *zerolog.Logger) error {
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)
	sched.Stop()

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
