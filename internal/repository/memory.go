package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryThrottleRepository is the single-process fallback used when Redis
// is unavailable.
type MemoryThrottleRepository struct {
	rateLimits sync.Map
}

func NewMemoryThrottleRepository() *MemoryThrottleRepository {
	return &MemoryThrottleRepository{}
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemoryThrottleRepository) CheckRateLimit(ctx context.Context, actorID int64, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	val, ok := r.rateLimits.Load(actorID)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{
			count:     1,
			expiresAt: now.Add(window),
		}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(actorID, entry)
	return entry.count <= limit, nil
}
