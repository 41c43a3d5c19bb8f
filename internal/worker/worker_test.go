package worker

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"eventbook/internal/database"
	"eventbook/internal/domain"
	"eventbook/internal/models"
)

type fakeSink struct {
	appendCalls int
	err         error
	lastRole    models.Role
}

func (f *fakeSink) AppendBookingRow(booking *models.Booking, actorRole models.Role) error {
	f.appendCalls++
	f.lastRole = actorRole
	return f.err
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (string, int, sql.NullTime) {
	t.Helper()
	var status string
	var retryCount int
	var nextRetry sql.NullTime
	err := db.QueryRow(`SELECT status, retry_count, next_retry_at FROM notification_outbox WHERE id = ?`, id).
		Scan(&status, &retryCount, &nextRetry)
	if err != nil {
		t.Fatalf("load task: %v", err)
	}
	return status, retryCount, nextRetry
}

func testWorkerBooking(id int64) *models.Booking {
	return &models.Booking{
		ID:         id,
		CustomerID: 1,
		VendorID:   2,
		VendorName: "vendor",
		EventDate:  time.Now().AddDate(0, 0, 10),
		Status:     models.StatusPendingVendor,
		Version:    1,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sink := &fakeSink{}
	worker := NewOutboxWorker(db, sink, nil, RetryPolicy{}, nil)

	ctx := context.Background()
	if err := worker.EnqueueStatusRow(ctx, testWorkerBooking(1), models.RoleVendor); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "completed" {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if sink.appendCalls != 1 {
		t.Fatalf("expected append call, got %d", sink.appendCalls)
	}
	if sink.lastRole != models.RoleVendor {
		t.Fatalf("expected vendor role in payload, got %s", sink.lastRole)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sink := &fakeSink{err: errors.New("boom")}
	worker := NewOutboxWorker(db, sink, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, nil)

	ctx := context.Background()
	if err := worker.EnqueueStatusRow(ctx, testWorkerBooking(2), models.RoleAdmin); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := worker.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	worker.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "retry" {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	sink := &fakeSink{err: errors.New("fatal")}
	worker := NewOutboxWorker(db, sink, nil, RetryPolicy{MaxRetries: 1}, nil)

	ctx := context.Background()
	worker.EnqueueStatusRow(ctx, testWorkerBooking(3), models.RoleSystem)
	task, _ := worker.tryLocalQueue()
	worker.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != "failed" {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestEnqueueStatusRowValidation(t *testing.T) {
	db := newTestDB(t)
	worker := NewOutboxWorker(db, &fakeSink{}, nil, RetryPolicy{}, nil)
	ctx := context.Background()

	if err := worker.EnqueueStatusRow(ctx, nil, models.RoleSystem); err == nil {
		t.Fatalf("expected error for nil booking")
	}
	if err := worker.EnqueueStatusRow(ctx, &models.Booking{}, models.RoleSystem); err == nil {
		t.Fatalf("expected error for missing booking id")
	}
}

func TestHandleTaskUnknownType(t *testing.T) {
	worker := NewOutboxWorker(nil, &fakeSink{}, nil, RetryPolicy{}, nil)
	if err := worker.handleTask("bogus", statusRowPayload{}); err == nil {
		t.Fatalf("expected error for unknown task type")
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}
	d1 := policy.NextDelay(1)
	d2 := policy.NextDelay(2)
	d3 := policy.NextDelay(5)

	if d1 != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d1)
	}
	if d2 != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d2)
	}
	if d3 != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d3)
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3}
	if policy.Exhausted(2) {
		t.Fatal("attempt 2 of 3 should not be exhausted")
	}
	if !policy.Exhausted(3) {
		t.Fatal("attempt 3 of 3 should be exhausted")
	}
}

type fakeBookingService struct {
	sweeps atomic.Int64
}

func (f *fakeBookingService) Create(ctx context.Context, customerID, vendorID int64, eventDate time.Time, details string) (*models.Booking, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeBookingService) Transition(ctx context.Context, req domain.TransitionRequest) (*models.Booking, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeBookingService) Get(ctx context.Context, id int64) (*models.Booking, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeBookingService) List(ctx context.Context, filter domain.BookingFilter) ([]*models.Booking, error) {
	return nil, nil
}
func (f *fakeBookingService) CheckTimeouts(ctx context.Context, now time.Time) ([]int64, error) {
	f.sweeps.Add(1)
	return nil, nil
}

func TestSweeperRunsImmediately(t *testing.T) {
	svc := &fakeBookingService{}
	logger := zerolog.New(io.Discard)
	sweeper := NewSweeper(svc, time.Hour, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for svc.sweeps.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("expected at least one sweep")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	cancel()
	<-done
}
