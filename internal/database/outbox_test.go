package database

import (
	"context"
	"testing"
	"time"

	"eventbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.OutboxTask{
		TaskType:  "status_row",
		BookingID: 1,
		Payload:   `{"booking_id":1,"status":"pending_vendor_response"}`,
		Status:    "pending",
	}
	require.NoError(t, db.CreateOutboxTask(ctx, task))
	assert.NotZero(t, task.ID)

	pending, err := db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "status_row", pending[0].TaskType)

	// Mark for retry: the task stays pending until next_retry_at.
	nextRetry := time.Now().Add(time.Hour)
	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, "retry", "send failed", &nextRetry))

	pending, err = db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "retry scheduled in the future must not be picked up")

	// Complete it.
	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, "completed", "", nil))
	pending, err = db.GetPendingOutboxTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOutboxFailedTasks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.OutboxTask{TaskType: "status_row", BookingID: 2, Payload: "{}", Status: "pending"}
	require.NoError(t, db.CreateOutboxTask(ctx, task))
	require.NoError(t, db.UpdateOutboxTaskStatus(ctx, task.ID, "failed", "gave up", nil))

	failed, err := db.GetFailedOutboxTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "gave up", failed[0].LastError)
	assert.NotNil(t, failed[0].ProcessedAt)
}
