package repository

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisThrottleRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	repo := NewRedisThrottleRepository(client)
	ctx := context.Background()

	t.Run("AllowsUnderLimit", func(t *testing.T) {
		actorID := int64(789)
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, actorID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, actorID, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, actorID, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("WindowResets", func(t *testing.T) {
		actorID := int64(790)

		allowed, err := repo.CheckRateLimit(ctx, actorID, 1, time.Second)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, actorID, 1, time.Second)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(2 * time.Second)

		allowed, err = repo.CheckRateLimit(ctx, actorID, 1, time.Second)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		nilRepo := NewRedisThrottleRepository(nil)
		_, err := nilRepo.CheckRateLimit(ctx, 1, 1, time.Second)
		assert.Error(t, err)
	})
}

func TestMemoryThrottleRepository(t *testing.T) {
	repo := NewMemoryThrottleRepository()
	ctx := context.Background()

	allowed, err := repo.CheckRateLimit(ctx, 1, 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.CheckRateLimit(ctx, 1, 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.CheckRateLimit(ctx, 1, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Another actor has its own counter.
	allowed, err = repo.CheckRateLimit(ctx, 2, 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

type failingThrottle struct{}

func (f *failingThrottle) CheckRateLimit(ctx context.Context, actorID int64, limit int, window time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestFailoverThrottleRepository(t *testing.T) {
	logger := zerolog.New(io.Discard)
	fallback := NewMemoryThrottleRepository()
	repo := NewFailoverThrottleRepository(&failingThrottle{}, fallback, &logger)
	ctx := context.Background()

	// Primary fails; the fallback answers and keeps counting.
	allowed, err := repo.CheckRateLimit(ctx, 1, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.CheckRateLimit(ctx, 1, 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestFailoverConcurrentChecks(t *testing.T) {
	logger := zerolog.New(io.Discard)
	repo := NewFailoverThrottleRepository(&failingThrottle{}, NewMemoryThrottleRepository(), &logger)
	ctx := context.Background()

	// Hammer the failing primary from many goroutines; the race detector
	// watches the recovery-probe bookkeeping.
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(actor int64) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := repo.CheckRateLimit(ctx, actor, 1000, time.Minute); err != nil {
					t.Errorf("check rate limit: %v", err)
					return
				}
			}
		}(int64(i))
	}
	wg.Wait()
}

func TestFailoverPrefersPrimary(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	logger := zerolog.New(io.Discard)
	primary := NewRedisThrottleRepository(client)
	fallback := NewMemoryThrottleRepository()
	repo := NewFailoverThrottleRepository(primary, fallback, &logger)
	ctx := context.Background()

	allowed, err := repo.CheckRateLimit(ctx, 5, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	// Counter lives in redis, not in the fallback.
	val, err := s.Get("transition_limit:5")
	require.NoError(t, err)
	assert.Equal(t, "1", val)
}
