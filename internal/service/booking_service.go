package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"eventbook/internal/config"
	"eventbook/internal/domain"
	"eventbook/internal/events"
	"eventbook/internal/lifecycle"
	"eventbook/internal/metrics"
	"eventbook/internal/models"
)

// BookingService drives the booking lifecycle. All status changes go
// through Transition or CheckTimeouts so that the transition table, role
// checks and optimistic locking are applied uniformly.
type BookingService struct {
	repo     domain.Repository
	throttle domain.ThrottleRepository
	bus      domain.EventPublisher
	outbox   domain.OutboxEnqueuer
	access   domain.AccessResolver
	otp      domain.OtpProvider
	cfg      config.BookingConfig
	logger   *zerolog.Logger

	// now is swappable in tests.
	now func() time.Time
}

func NewBookingService(
	repo domain.Repository,
	throttle domain.ThrottleRepository,
	bus domain.EventPublisher,
	outbox domain.OutboxEnqueuer,
	access domain.AccessResolver,
	otp domain.OtpProvider,
	cfg config.BookingConfig,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		repo:     repo,
		throttle: throttle,
		bus:      bus,
		outbox:   outbox,
		access:   access,
		otp:      otp,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Create registers a new booking in pending_vendor_response and writes the
// first history entry. The event date must be in the future and within the
// configured advance window, and the vendor must exist and be active.
func (s *BookingService) Create(ctx context.Context, customerID, vendorID int64, eventDate time.Time, details string) (*models.Booking, error) {
	now := s.now()

	if !eventDate.After(now) {
		return nil, fmt.Errorf("event date must be in the future")
	}
	if s.cfg.MaxAdvanceDays > 0 {
		limit := now.AddDate(0, 0, s.cfg.MaxAdvanceDays)
		if eventDate.After(limit) {
			return nil, fmt.Errorf("event date is more than %d days ahead", s.cfg.MaxAdvanceDays)
		}
	}

	vendor, err := s.repo.GetVendorByID(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("vendor %d: %w", vendorID, err)
	}
	if !vendor.IsActive {
		return nil, fmt.Errorf("vendor %d is not active", vendorID)
	}

	booking := &models.Booking{
		CustomerID: customerID,
		VendorID:   vendorID,
		VendorName: vendor.Name,
		EventDate:  eventDate,
		Details:    details,
		Status:     models.StatusPendingVendor,
	}
	entry := &models.HistoryEntry{
		Status:    models.StatusPendingVendor,
		ActorID:   customerID,
		ActorRole: models.RoleCustomer,
	}

	if err := s.repo.CreateBooking(ctx, booking, entry); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("customer_id", customerID).
		Int64("vendor_id", vendorID).
		Time("event_date", eventDate).
		Msg("Booking created")

	s.publish(events.EventBookingCreated, booking, customerID, models.RoleCustomer, "")
	s.enqueue(ctx, booking, models.RoleCustomer)
	metrics.IncTransition("create", "ok")

	return booking, nil
}

// Transition applies one actor-driven lifecycle action. It resolves the
// actor's role, validates the edge against the transition table, runs the
// action-specific logic and persists the change under optimistic locking.
func (s *BookingService) Transition(ctx context.Context, req domain.TransitionRequest) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	role := s.access.ResolveRole(req.ActorID, booking)
	if role == "" {
		metrics.IncTransition(string(req.Action), "unauthorized")
		return nil, fmt.Errorf("actor %d on booking %d: %w", req.ActorID, req.BookingID, lifecycle.ErrUnauthorized)
	}

	if err := s.checkThrottle(ctx, req.ActorID); err != nil {
		metrics.IncTransition(string(req.Action), "throttled")
		return nil, err
	}

	if !lifecycle.RoleAllowed(req.Action, role) {
		metrics.IncTransition(string(req.Action), "unauthorized")
		return nil, fmt.Errorf("role %s may not %s: %w", role, req.Action, lifecycle.ErrUnauthorized)
	}

	next, err := lifecycle.Next(booking.Status, req.Action)
	if err != nil {
		metrics.IncTransition(string(req.Action), "invalid")
		return nil, fmt.Errorf("%s from %s: %w", req.Action, booking.Status, err)
	}

	fromVersion := booking.Version
	if req.ExpectedVersion > 0 {
		fromVersion = req.ExpectedVersion
	}

	if req.Action == models.ActionSubmitOtp {
		return s.submitOtp(ctx, booking, req, role, fromVersion)
	}

	switch req.Action {
	case models.ActionAdminApprove, models.ActionRegenerateOtp:
		code, expiresAt, err := s.otp.Generate(s.now())
		if err != nil {
			return nil, fmt.Errorf("generate otp: %w", err)
		}
		booking.OtpCode = code
		booking.OtpExpiresAt = &expiresAt
		booking.OtpAttempts = 0
	case models.ActionAdminReject:
		booking.AdminNote = req.Comment
	case models.ActionCancel:
		if booking.Status == models.StatusConfirmed {
			switch s.cfg.ConfirmedCancelPolicy {
			case models.CancelPolicyAdminOnly:
				if role != models.RoleAdmin {
					metrics.IncTransition(string(req.Action), "unauthorized")
					return nil, fmt.Errorf("cancel of confirmed booking: %w", lifecycle.ErrUnauthorized)
				}
			default:
				metrics.IncTransition(string(req.Action), "invalid")
				return nil, fmt.Errorf("cancel of confirmed booking: %w", lifecycle.ErrInvalidTransition)
			}
		}
		booking.OtpCode = ""
		booking.OtpExpiresAt = nil
	}

	booking.Status = next
	entry := &models.HistoryEntry{Status: next, ActorID: req.ActorID, ActorRole: role}
	if err := s.repo.UpdateBookingWithVersion(ctx, booking, fromVersion, entry); err != nil {
		metrics.IncTransition(string(req.Action), "conflict")
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("action", string(req.Action)).
		Str("status", string(next)).
		Int64("actor_id", req.ActorID).
		Str("actor_role", string(role)).
		Msg("Booking transitioned")

	s.publish(eventForAction(req.Action, next), booking, req.ActorID, role, req.Comment)
	if req.Action == models.ActionAdminApprove {
		// Separate event so OTP delivery can be subscribed independently.
		// The code itself stays out of event payloads.
		s.publish(events.EventOtpIssued, booking, req.ActorID, role, "")
	}
	s.enqueue(ctx, booking, role)
	metrics.IncTransition(string(req.Action), "ok")

	return booking, nil
}

// submitOtp resolves the verification synchronously. A correct, unexpired
// code confirms the booking. A wrong code burns one attempt; the last
// attempt flips the booking to otp_failed. An expired code is rejected
// without touching the booking at all, the sweep moves it later.
func (s *BookingService) submitOtp(ctx context.Context, booking *models.Booking, req domain.TransitionRequest, role models.Role, fromVersion int64) (*models.Booking, error) {
	now := s.now()
	var expiresAt time.Time
	if booking.OtpExpiresAt != nil {
		expiresAt = *booking.OtpExpiresAt
	}

	verifyErr := s.otp.Verify(req.OtpCode, booking.OtpCode, expiresAt, now)
	switch {
	case verifyErr == nil:
		booking.Status = models.StatusConfirmed
		booking.OtpCode = ""
		booking.OtpExpiresAt = nil
		entry := &models.HistoryEntry{Status: models.StatusConfirmed, ActorID: req.ActorID, ActorRole: role}
		if err := s.repo.UpdateBookingWithVersion(ctx, booking, fromVersion, entry); err != nil {
			metrics.IncTransition(string(req.Action), "conflict")
			return nil, err
		}
		s.logger.Info().Int64("booking_id", booking.ID).Msg("Booking confirmed")
		s.publish(events.EventBookingConfirmed, booking, req.ActorID, role, "")
		s.enqueue(ctx, booking, role)
		metrics.IncTransition(string(req.Action), "ok")
		return booking, nil

	case errors.Is(verifyErr, lifecycle.ErrOtpExpired):
		metrics.IncTransition(string(req.Action), "expired")
		return nil, verifyErr

	case errors.Is(verifyErr, lifecycle.ErrOtpMismatch):
		booking.OtpAttempts++
		if booking.OtpAttempts >= s.cfg.OtpMaxAttempts {
			booking.Status = models.StatusOtpFailed
			booking.OtpCode = ""
			booking.OtpExpiresAt = nil
			entry := &models.HistoryEntry{Status: models.StatusOtpFailed, ActorID: req.ActorID, ActorRole: role}
			if err := s.repo.UpdateBookingWithVersion(ctx, booking, fromVersion, entry); err != nil {
				metrics.IncTransition(string(req.Action), "conflict")
				return nil, err
			}
			s.logger.Warn().Int64("booking_id", booking.ID).Int("attempts", booking.OtpAttempts).Msg("OTP attempts exhausted")
			s.publish(events.EventOtpFailed, booking, req.ActorID, role, "")
			s.enqueue(ctx, booking, role)
			metrics.IncTransition(string(req.Action), "failed")
			return nil, verifyErr
		}
		// Attempt counter only; the status stays put so no history entry.
		if err := s.repo.UpdateBookingWithVersion(ctx, booking, fromVersion, nil); err != nil {
			metrics.IncTransition(string(req.Action), "conflict")
			return nil, err
		}
		metrics.IncTransition(string(req.Action), "mismatch")
		return nil, verifyErr

	default:
		return nil, verifyErr
	}
}

// Get returns one booking with its history.
func (s *BookingService) Get(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// List returns bookings matching the filter.
func (s *BookingService) List(ctx context.Context, filter domain.BookingFilter) ([]*models.Booking, error) {
	return s.repo.ListBookings(ctx, filter)
}

// CheckTimeouts is the single entry point for time-driven transitions:
// expired OTPs, events that have passed and review windows that elapsed.
// It returns the ids of bookings it moved. Version conflicts are skipped,
// the next sweep picks those bookings up again.
func (s *BookingService) CheckTimeouts(ctx context.Context, now time.Time) ([]int64, error) {
	var affected []int64

	pendingOtp, err := s.repo.ListBookingsByStatus(ctx, models.StatusPendingOtp)
	if err != nil {
		return affected, fmt.Errorf("list pending otp: %w", err)
	}
	for _, b := range pendingOtp {
		if b.OtpExpiresAt == nil || !now.After(*b.OtpExpiresAt) {
			continue
		}
		if s.applyTimeDriven(ctx, b, models.ActionOtpExpire, events.EventOtpFailed) {
			affected = append(affected, b.ID)
			metrics.IncSweep("otp_expire")
		}
	}

	confirmed, err := s.repo.ListBookingsByStatus(ctx, models.StatusConfirmed)
	if err != nil {
		return affected, fmt.Errorf("list confirmed: %w", err)
	}
	for _, b := range confirmed {
		if !now.After(b.EventDate) {
			continue
		}
		if s.applyTimeDriven(ctx, b, models.ActionEventPassed, events.EventAwaitingReview) {
			affected = append(affected, b.ID)
			metrics.IncSweep("event_passed")
		}
	}

	awaiting, err := s.repo.ListBookingsByStatus(ctx, models.StatusAwaitingReview)
	if err != nil {
		return affected, fmt.Errorf("list awaiting review: %w", err)
	}
	window := time.Duration(s.cfg.ReviewWindowDays) * 24 * time.Hour
	for _, b := range awaiting {
		if !now.After(b.EventDate.Add(window)) {
			continue
		}
		if s.applyTimeDriven(ctx, b, models.ActionReviewElapsed, events.EventBookingCompleted) {
			affected = append(affected, b.ID)
			metrics.IncSweep("review_window_elapsed")
		}
	}

	return affected, nil
}

func (s *BookingService) applyTimeDriven(ctx context.Context, booking *models.Booking, action models.Action, eventType string) bool {
	next, err := lifecycle.Next(booking.Status, action)
	if err != nil {
		return false
	}

	fromVersion := booking.Version
	booking.Status = next
	if next == models.StatusOtpFailed {
		booking.OtpCode = ""
		booking.OtpExpiresAt = nil
	}
	entry := &models.HistoryEntry{Status: next, ActorRole: models.RoleSystem}
	if err := s.repo.UpdateBookingWithVersion(ctx, booking, fromVersion, entry); err != nil {
		if errors.Is(err, lifecycle.ErrVersionConflict) {
			s.logger.Debug().Int64("booking_id", booking.ID).Str("action", string(action)).Msg("Sweep lost the race, skipping")
			return false
		}
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("action", string(action)).Msg("Sweep update failed")
		return false
	}

	s.publish(eventType, booking, 0, models.RoleSystem, "")
	s.enqueue(ctx, booking, models.RoleSystem)
	return true
}

func (s *BookingService) checkThrottle(ctx context.Context, actorID int64) error {
	if s.throttle == nil || s.cfg.TransitionLimit <= 0 {
		return nil
	}
	window := time.Duration(s.cfg.TransitionWindow) * time.Second
	allowed, err := s.throttle.CheckRateLimit(ctx, actorID, s.cfg.TransitionLimit, window)
	if err != nil {
		// Throttling is advisory, a broken limiter must not block bookings.
		s.logger.Warn().Err(err).Int64("actor_id", actorID).Msg("Rate limit check failed")
		return nil
	}
	if !allowed {
		return fmt.Errorf("actor %d: %w", actorID, lifecycle.ErrRateLimited)
	}
	return nil
}

func (s *BookingService) publish(eventType string, booking *models.Booking, actorID int64, role models.Role, note string) {
	if s.bus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:  booking.ID,
		CustomerID: booking.CustomerID,
		VendorID:   booking.VendorID,
		VendorName: booking.VendorName,
		Status:     booking.Status,
		EventDate:  booking.EventDate,
		ActorID:    actorID,
		ActorRole:  role,
		Note:       note,
	}
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Int64("booking_id", booking.ID).Msg("Event publish failed")
	}
}

func (s *BookingService) enqueue(ctx context.Context, booking *models.Booking, role models.Role) {
	if s.outbox == nil {
		return
	}
	if err := s.outbox.EnqueueStatusRow(ctx, booking, role); err != nil {
		s.logger.Warn().Err(err).Int64("booking_id", booking.ID).Msg("Outbox enqueue failed")
	}
}

// eventForAction maps an actor-driven action to its lifecycle event type.
func eventForAction(action models.Action, next models.Status) string {
	switch action {
	case models.ActionVendorAccept:
		return events.EventVendorAccepted
	case models.ActionVendorReject:
		return events.EventVendorRejected
	case models.ActionAdminApprove:
		return events.EventAdminApproved
	case models.ActionAdminReject:
		return events.EventAdminRejected
	case models.ActionRegenerateOtp:
		return events.EventOtpIssued
	case models.ActionCancel:
		return events.EventBookingCancelled
	case models.ActionSubmitReview:
		return events.EventBookingCompleted
	default:
		if next == models.StatusAwaitingReview {
			return events.EventAwaitingReview
		}
		return events.EventBookingConfirmed
	}
}
