package models

import "time"

type Booking struct {
	ID           int64          `json:"id"`
	CustomerID   int64          `json:"customer_id"`
	VendorID     int64          `json:"vendor_id"`
	VendorName   string         `json:"vendor_name"`
	EventDate    time.Time      `json:"event_date"`
	Details      string         `json:"details,omitempty"`
	Status       Status         `json:"status"`
	AdminNote    string         `json:"admin_note,omitempty"`
	OtpCode      string         `json:"-"`
	OtpExpiresAt *time.Time     `json:"otp_expires_at,omitempty"`
	OtpAttempts  int            `json:"otp_attempts"`
	Version      int64          `json:"version"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	History      []HistoryEntry `json:"history,omitempty"`
}

// HistoryEntry is one step of a booking's audit trail. Entries are
// append-only; the last entry always matches the booking's current status.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	BookingID int64     `json:"booking_id"`
	Status    Status    `json:"status"`
	ActorID   int64     `json:"actor_id"`
	ActorRole Role      `json:"actor_role"`
	CreatedAt time.Time `json:"created_at"`
}

type Vendor struct {
	ID       int64  `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Service  string `json:"service" yaml:"service"`
	IsActive bool   `json:"is_active" yaml:"is_active"`
}
