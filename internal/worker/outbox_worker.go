package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"eventbook/internal/database"
	"eventbook/internal/metrics"
	"eventbook/internal/models"
)

const (
	TaskStatusRow = "status_row"
)

// statusRowPayload is persisted in OutboxTask.Payload as JSON.
type statusRowPayload struct {
	Booking   *models.Booking `json:"booking"`
	ActorRole models.Role     `json:"actor_role,omitempty"`
}

// StatusSink receives booking status rows, usually a spreadsheet mirror.
type StatusSink interface {
	AppendBookingRow(booking *models.Booking, actorRole models.Role) error
}

// OutboxWorker drains the notification outbox and pushes status rows to the
// sink. Tasks are persisted first, then scheduled through redis when
// available, with DB polling as the safety net.
type OutboxWorker struct {
	db            *database.DB
	sink          StatusSink
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.OutboxTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *log.Logger
}

// NewOutboxWorker builds a worker with sane defaults.
func NewOutboxWorker(db *database.DB, sink StatusSink, redisClient *redis.Client, retry RetryPolicy, logger *log.Logger) *OutboxWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		logger = log.Default()
	}

	return &OutboxWorker{
		db:            db,
		sink:          sink,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.OutboxTask, models.OutboxQueueSize),
		redisQueueKey: "outbox:queue",
		deadLetterKey: "outbox:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// EnqueueStatusRow persists a status row task and schedules it via redis or
// the in-memory queue.
func (w *OutboxWorker) EnqueueStatusRow(ctx context.Context, booking *models.Booking, actorRole models.Role) error {
	if booking == nil || booking.ID == 0 {
		return errors.New("booking id is required")
	}

	payloadBytes, err := json.Marshal(statusRowPayload{Booking: booking, ActorRole: actorRole})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.OutboxTask{
		TaskType:  TaskStatusRow,
		BookingID: booking.ID,
		Payload:   string(payloadBytes),
		Status:    "pending",
		CreatedAt: time.Now(),
	}
	if err := w.db.CreateOutboxTask(ctx, &task); err != nil {
		return fmt.Errorf("persist outbox task: %w", err)
	}

	// Try redis first for durability.
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Printf("outbox_worker: redis push failed, fallback to memory queue: %v", err)
		} else {
			return nil
		}
	}

	// Fallback to in-memory queue if redis missing or failed.
	select {
	case w.queue <- task:
	default:
		w.logger.Printf("outbox_worker: in-memory queue full, task %d dropped to polling", task.ID)
	}

	return nil
}

// Start launches the main loop; stops when ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Printf("outbox_worker: started")
	defer w.logger.Printf("outbox_worker: stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		tasks, err := w.db.GetPendingOutboxTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Printf("outbox_worker: fetch pending: %v", err)
			time.Sleep(w.pollInterval)
			continue
		}
		if len(tasks) == 0 {
			time.Sleep(w.pollInterval)
			continue
		}

		for i := range tasks {
			w.processTask(ctx, &tasks[i])
		}
	}
}

func (w *OutboxWorker) tryLocalQueue() (models.OutboxTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.OutboxTask{}, false
	}
}

func (w *OutboxWorker) tryRedis(ctx context.Context) (models.OutboxTask, bool) {
	if w.redis == nil {
		return models.OutboxTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.OutboxTask{}, false
		}
		w.logger.Printf("outbox_worker: redis BRPOP error: %v", err)
		return models.OutboxTask{}, false
	}
	if len(res) != 2 {
		return models.OutboxTask{}, false
	}
	var task models.OutboxTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Printf("outbox_worker: decode redis task: %v", err)
		return models.OutboxTask{}, false
	}
	return task, true
}

func (w *OutboxWorker) processTask(ctx context.Context, task *models.OutboxTask) {
	var payload statusRowPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.handleTask(task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.db.UpdateOutboxTaskStatus(ctx, task.ID, "completed", "", nil); err != nil {
		w.logger.Printf("outbox_worker: mark completed %d: %v", task.ID, err)
	}
	metrics.IncNotification("sheet", "ok")
}

func (w *OutboxWorker) handleTask(taskType string, payload statusRowPayload) error {
	switch taskType {
	case TaskStatusRow:
		if payload.Booking == nil {
			return errors.New("booking payload missing")
		}
		if w.sink == nil {
			return nil
		}
		return w.sink.AppendBookingRow(payload.Booking, payload.ActorRole)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, task *models.OutboxTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		if err := w.db.UpdateOutboxTaskStatus(ctx, task.ID, "failed", cause.Error(), nil); err != nil {
			w.logger.Printf("outbox_worker: mark failed %d: %v", task.ID, err)
		}
		w.pushDeadLetter(ctx, task)
		metrics.IncNotification("sheet", "failed")
		return
	}

	nextDelay := w.retryPolicy.NextDelay(attempt)
	nextTime := time.Now().Add(nextDelay)
	if err := w.db.UpdateOutboxTaskStatus(ctx, task.ID, "retry", cause.Error(), &nextTime); err != nil {
		w.logger.Printf("outbox_worker: mark retry %d: %v", task.ID, err)
	}
}

func (w *OutboxWorker) failTask(ctx context.Context, task *models.OutboxTask, err error) {
	if err := w.db.UpdateOutboxTaskStatus(ctx, task.ID, "failed", err.Error(), nil); err != nil {
		w.logger.Printf("outbox_worker: mark failed %d: %v", task.ID, err)
	}
	w.pushDeadLetter(ctx, task)
	metrics.IncNotification("sheet", "failed")
}

func (w *OutboxWorker) pushRedis(ctx context.Context, task models.OutboxTask) error {
	if w.redis == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *OutboxWorker) pushDeadLetter(ctx context.Context, task *models.OutboxTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Printf("outbox_worker: encode deadletter %d: %v", task.ID, err)
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Printf("outbox_worker: deadletter push %d: %v", task.ID, err)
	}
}
