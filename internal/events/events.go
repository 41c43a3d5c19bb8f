package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"eventbook/internal/models"
)

const (
	EventBookingCreated   = "booking_created"
	EventVendorAccepted   = "vendor_accepted"
	EventVendorRejected   = "vendor_rejected"
	EventAdminApproved    = "admin_approved"
	EventAdminRejected    = "admin_rejected"
	EventOtpIssued        = "otp_issued"
	EventOtpFailed        = "otp_failed"
	EventBookingConfirmed = "booking_confirmed"
	EventAwaitingReview   = "awaiting_review"
	EventBookingCompleted = "booking_completed"
	EventBookingCancelled = "booking_cancelled"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID  int64         `json:"booking_id"`
	CustomerID int64         `json:"customer_id"`
	VendorID   int64         `json:"vendor_id"`
	VendorName string        `json:"vendor_name,omitempty"`
	Status     models.Status `json:"status"`
	EventDate  time.Time     `json:"event_date"`
	ActorID    int64         `json:"actor_id,omitempty"`
	ActorRole  models.Role   `json:"actor_role,omitempty"`
	Note       string        `json:"note,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for lifecycle events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for every lifecycle event type.
func (b *EventBus) SubscribeAll(handler EventHandler) {
	for _, eventType := range []string{
		EventBookingCreated, EventVendorAccepted, EventVendorRejected,
		EventAdminApproved, EventAdminRejected, EventOtpIssued, EventOtpFailed,
		EventBookingConfirmed, EventAwaitingReview, EventBookingCompleted,
		EventBookingCancelled,
	} {
		b.Subscribe(eventType, handler)
	}
}

// Publish notifies subscribers of the event type. Handler errors are the
// handler's problem; publishing never fails because of a consumer.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
