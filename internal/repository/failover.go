package repository

import (
	"context"
	"sync/atomic"
	"time"

	"eventbook/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverThrottleRepository prefers the primary (Redis) store and falls
// back to the in-memory one when the primary errors, probing it again
// after a minute.
type FailoverThrottleRepository struct {
	primary  domain.ThrottleRepository
	fallback domain.ThrottleRepository
	logger   *zerolog.Logger
	isDown   atomic.Bool
	// Unix nanos of the last failed primary call. Atomic because
	// concurrent transitions race through here.
	lastCheck atomic.Int64
}

func NewFailoverThrottleRepository(primary, fallback domain.ThrottleRepository, logger *zerolog.Logger) *FailoverThrottleRepository {
	return &FailoverThrottleRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverThrottleRepository) CheckRateLimit(ctx context.Context, actorID int64, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() {
		allowed, err := r.primary.CheckRateLimit(ctx, actorID, limit, window)
		if err == nil {
			return allowed, nil
		}
		r.logger.Error().Err(err).Msg("primary throttle repository failed, falling back to memory")
		r.isDown.Store(true)
		r.lastCheck.Store(time.Now().UnixNano())
	}

	if r.isDown.Load() && time.Since(time.Unix(0, r.lastCheck.Load())) > time.Minute {
		allowed, err := r.primary.CheckRateLimit(ctx, actorID, limit, window)
		if err == nil {
			r.isDown.Store(false)
			return allowed, nil
		}
		r.lastCheck.Store(time.Now().UnixNano())
	}

	return r.fallback.CheckRateLimit(ctx, actorID, limit, window)
}
