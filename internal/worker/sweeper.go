package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"eventbook/internal/domain"
)

// Sweeper periodically applies time-driven transitions: expired OTPs,
// events that have passed and review windows that ran out.
type Sweeper struct {
	svc      domain.BookingService
	interval time.Duration
	logger   *zerolog.Logger
}

func NewSweeper(svc domain.BookingService, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{svc: svc, interval: interval, logger: logger}
}

// Start runs one sweep immediately and then on every tick until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().Dur("interval", s.interval).Msg("Timeout sweeper started")
	defer s.logger.Info().Msg("Timeout sweeper stopped")

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	affected, err := s.svc.CheckTimeouts(ctx, time.Now())
	if err != nil {
		s.logger.Error().Err(err).Msg("Timeout sweep failed")
	}
	if len(affected) > 0 {
		s.logger.Info().Ints64("booking_ids", affected).Msg("Timeout sweep moved bookings")
	}
}
