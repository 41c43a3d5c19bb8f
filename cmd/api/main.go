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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"

	"eventbook/internal/api"
	"eventbook/internal/config"
	"eventbook/internal/database"
	"eventbook/internal/domain"
	"eventbook/internal/events"
	"eventbook/internal/google"
	"eventbook/internal/logging"
	"eventbook/internal/metrics"
	"eventbook/internal/models"
	"eventbook/internal/notify"
	"eventbook/internal/otp"
	"eventbook/internal/repository"
	"eventbook/internal/service"
	"eventbook/internal/worker"
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
		defer (func() { _ = closer.Close() })()
	}

	vendors, err := loadVendors(cfg, &logger)
	if err != nil {
		return err
	}

	db, err := initDatabase(cfg, vendors, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	throttle := initThrottle(redisClient, &logger)
	sheetsService := initGoogleSheets(cfg, &logger)

	bus := events.NewEventBus()
	initTelegram(cfg, bus, &logger)

	outbox := worker.NewOutboxWorker(db, sheetsSink(sheetsService), redisClient, worker.RetryPolicy{}, nil)

	svc := service.NewBookingService(
		db,
		throttle,
		bus,
		outbox,
		service.NewAccessService(cfg.Admins),
		otp.NewProvider(time.Duration(cfg.Booking.OtpTTLMinutes)*time.Minute),
		cfg.Booking,
		&logger,
	)

	httpServer := api.NewHTTPServer(cfg.API, svc, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startMetrics(ctx, cfg, &logger)

	go outbox.Start(ctx)
	go worker.NewSweeper(svc, time.Minute, &logger).Start(ctx)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// loadVendors reads the vendor catalog. A separate file keeps the catalog
// editable without touching the main config; vendors from config.yaml are
// used as the fallback.
func loadVendors(cfg *config.Config, logger *zerolog.Logger) ([]models.Vendor, error) {
	vendorsPath := os.Getenv("VENDORS_PATH")
	if vendorsPath == "" {
		vendorsPath = "configs/vendors.yaml"
	}

	vendorsData, err := os.ReadFile(vendorsPath)
	if err != nil {
		if len(cfg.Vendors) > 0 {
			logger.Warn().Err(err).Str("vendors_path", vendorsPath).Msg("vendors file missing, using config vendors")
			return cfg.Vendors, nil
		}
		logger.Error().Err(err).Str("vendors_path", vendorsPath).Msg("read vendors")
		return nil, err
	}

	var vendorsConfig struct {
		Vendors []models.Vendor `yaml:"vendors"`
	}
	if err := yaml.Unmarshal(vendorsData, &vendorsConfig); err != nil {
		logger.Error().Err(err).Str("vendors_path", vendorsPath).Msg("parse vendors")
		return nil, err
	}

	if err := config.ValidateVendors(vendorsConfig.Vendors); err != nil {
		return nil, fmt.Errorf("validate vendors: %w", err)
	}

	return vendorsConfig.Vendors, nil
}

func initDatabase(cfg *config.Config, vendors []models.Vendor, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}

	vendorPointers := make([]*models.Vendor, len(vendors))
	for i := range vendors {
		vendorPointers[i] = &vendors[i]
	}
	db.SetVendors(vendorPointers)
	return db, nil
}

func initRedis(cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initThrottle wires the transition rate limiter: redis primary with an
// in-memory fallback, or memory only when redis is absent.
func initThrottle(redisClient *redis.Client, logger *zerolog.Logger) domain.ThrottleRepository {
	memory := repository.NewMemoryThrottleRepository()
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverThrottleRepository(
		repository.NewRedisThrottleRepository(redisClient),
		memory,
		logger,
	)
}

func initGoogleSheets(cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.SpreadsheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

// sheetsSink avoids storing a typed nil inside the interface.
func sheetsSink(s *google.SheetsService) worker.StatusSink {
	if s == nil {
		return nil
	}
	return s
}

func initTelegram(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	tg := cfg.Notifications.Telegram
	if !tg.Enabled || tg.BotToken == "" {
		return
	}

	bot, err := notify.NewBotAPI(tg.BotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}

	notifier := notify.NewTelegramNotifier(bot, tg.ChatIDs, logger)
	notifier.Register(bus)
	logger.Info().Int("chats", len(tg.ChatIDs)).Msg("telegram notifications enabled")
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

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			logger.Warn().Msg("HTTP API is disabled in config")
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

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
