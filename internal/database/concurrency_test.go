package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"eventbook/internal/lifecycle"
	"eventbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentTransitions(t *testing.T) {
	logger := zerolog.New(zerolog.NewConsoleWriter())
	dbPath := filepath.Join(t.TempDir(), "concurrency.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	booking, entry := newTestBooking()
	require.NoError(t, db.CreateBooking(ctx, booking, entry))

	// Vendor accept and customer cancel race on the same version: the
	// version check must let exactly one of them through.
	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			b := &models.Booking{ID: booking.ID, Status: models.StatusCancelled}
			if id%2 == 0 {
				b.Status = models.StatusPendingAdmin
			}
			results <- db.UpdateBookingWithVersion(ctx, b, 1, &models.HistoryEntry{
				Status:    b.Status,
				ActorID:   int64(id),
				ActorRole: models.RoleCustomer,
			})
		}(i)
	}

	wg.Wait()
	close(results)

	successCount := 0
	conflictCount := 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case errors.Is(err, lifecycle.ErrVersionConflict):
			conflictCount++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successCount, "exactly one writer should win the version race")
	assert.Equal(t, numGoroutines-1, conflictCount)

	got, err := db.GetBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Len(t, got.History, 2)
	assert.Equal(t, got.Status, got.History[len(got.History)-1].Status)
}
