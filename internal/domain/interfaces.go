package domain

import (
	"context"
	"time"

	"eventbook/internal/models"
)

// BookingFilter narrows List queries. Zero values mean "any".
// WithHistory also loads each booking's audit trail.
type BookingFilter struct {
	Status      models.Status
	VendorID    int64
	CustomerID  int64
	WithHistory bool
}

type Repository interface {
	CreateBooking(ctx context.Context, booking *models.Booking, entry *models.HistoryEntry) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]*models.Booking, error)
	ListBookingsByStatus(ctx context.Context, status models.Status) ([]*models.Booking, error)
	UpdateBookingWithVersion(ctx context.Context, booking *models.Booking, fromVersion int64, entry *models.HistoryEntry) error
	GetBookingHistory(ctx context.Context, bookingID int64) ([]models.HistoryEntry, error)
	GetVendorByID(ctx context.Context, id int64) (*models.Vendor, error)
	SetVendors(vendors []*models.Vendor)
}

// ThrottleRepository limits how often an actor may hit the transition path.
type ThrottleRepository interface {
	CheckRateLimit(ctx context.Context, actorID int64, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// OutboxEnqueuer persists notification tasks for asynchronous delivery.
type OutboxEnqueuer interface {
	EnqueueStatusRow(ctx context.Context, booking *models.Booking, actorRole models.Role) error
}

// OtpProvider issues and checks one-time confirmation codes.
type OtpProvider interface {
	Generate(now time.Time) (code string, expiresAt time.Time, err error)
	Verify(submitted, stored string, expiresAt, now time.Time) error
}

// AccessResolver maps an actor id to its role relative to a booking.
// An empty role means the actor has no relationship to the booking.
type AccessResolver interface {
	ResolveRole(actorID int64, booking *models.Booking) models.Role
}

// TransitionRequest carries the caller-supplied parts of a transition.
type TransitionRequest struct {
	BookingID       int64
	ActorID         int64
	Action          models.Action
	OtpCode         string
	Comment         string
	ExpectedVersion int64
}

type BookingService interface {
	Create(ctx context.Context, customerID, vendorID int64, eventDate time.Time, details string) (*models.Booking, error)
	Transition(ctx context.Context, req TransitionRequest) (*models.Booking, error)
	Get(ctx context.Context, id int64) (*models.Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]*models.Booking, error)
	CheckTimeouts(ctx context.Context, now time.Time) ([]int64, error)
}
