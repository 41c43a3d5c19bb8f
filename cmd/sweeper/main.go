package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventbook/internal/config"
	"eventbook/internal/database"
	"eventbook/internal/events"
	"eventbook/internal/logging"
	"eventbook/internal/notify"
	"eventbook/internal/otp"
	"eventbook/internal/repository"
	"eventbook/internal/service"
	"eventbook/internal/worker"
)

// The sweeper can run as a sidecar when the API process is deployed with
// its built-in sweeper disabled, or as a one-shot job with -once.
func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	interval := flag.Duration("interval", time.Minute, "time between sweeps")
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger := baseLogger.With().Str("component", "sweeper").Logger()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	bus := events.NewEventBus()
	if tg := cfg.Notifications.Telegram; tg.Enabled && tg.BotToken != "" {
		if bot, err := notify.NewBotAPI(tg.BotToken); err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		} else {
			notify.NewTelegramNotifier(bot, tg.ChatIDs, &logger).Register(bus)
		}
	}

	svc := service.NewBookingService(
		db,
		repository.NewMemoryThrottleRepository(),
		bus,
		nil,
		service.NewAccessService(cfg.Admins),
		otp.NewProvider(time.Duration(cfg.Booking.OtpTTLMinutes)*time.Minute),
		cfg.Booking,
		&logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		affected, err := svc.CheckTimeouts(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		logger.Info().Int("moved", len(affected)).Msg("One-shot sweep finished")
		return nil
	}

	worker.NewSweeper(svc, *interval, &logger).Start(ctx)
	return nil
}
