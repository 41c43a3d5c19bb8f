package models

type Status string

const (
	StatusPendingVendor  Status = "pending_vendor_response"
	StatusPendingAdmin   Status = "accepted_by_vendor_pending_admin"
	StatusVendorRejected Status = "vendor_rejected"
	StatusPendingOtp     Status = "approved_by_admin_pending_otp"
	StatusAdminRejected  Status = "admin_rejected"
	StatusOtpInProgress  Status = "otp_verification_in_progress"
	StatusOtpFailed      Status = "otp_failed"
	StatusConfirmed      Status = "booking_confirmed"
	StatusAwaitingReview Status = "awaiting_review"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
)

type Action string

const (
	ActionVendorAccept  Action = "vendor_accept"
	ActionVendorReject  Action = "vendor_reject"
	ActionAdminApprove  Action = "admin_approve"
	ActionAdminReject   Action = "admin_reject"
	ActionSubmitOtp     Action = "submit_otp"
	ActionRegenerateOtp Action = "regenerate_otp"
	ActionCancel        Action = "cancel"
	ActionSubmitReview  Action = "submit_review"

	// Time-driven actions, applied only by the timeout sweep.
	ActionOtpExpire     Action = "otp_expire"
	ActionEventPassed   Action = "event_passed"
	ActionReviewElapsed Action = "review_window_elapsed"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// Cancellation policies for bookings that already reached booking_confirmed.
const (
	CancelPolicyDeny      = "deny"
	CancelPolicyAdminOnly = "admin_only"
)

const (
	// DefaultOtpTTLMinutes is how long an issued OTP stays valid.
	DefaultOtpTTLMinutes = 10

	// DefaultOtpMaxAttempts is the number of wrong codes before otp_failed.
	DefaultOtpMaxAttempts = 5

	// DefaultReviewWindowDays is how long after the event date a customer
	// may still submit a review before the booking auto-completes.
	DefaultReviewWindowDays = 7

	// DefaultMaxAdvanceDays limits how far ahead a booking can be created.
	DefaultMaxAdvanceDays = 365

	// Rate limit for transition attempts per actor.
	DefaultTransitionLimit  = 30
	DefaultTransitionWindow = 60 // seconds

	// OutboxQueueSize is the in-memory fallback queue capacity of the
	// notification outbox worker.
	OutboxQueueSize = 128
)
