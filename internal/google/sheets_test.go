package google

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"eventbook/internal/models"
)

func TestBookingRowValues(t *testing.T) {
	eventDate := time.Date(2026, 10, 1, 18, 0, 0, 0, time.UTC)
	updatedAt := time.Date(2026, 8, 21, 11, 0, 0, 0, time.UTC)

	booking := &models.Booking{
		ID:         123,
		CustomerID: 456,
		VendorID:   789,
		VendorName: "Blue Note Catering",
		EventDate:  eventDate,
		Status:     models.StatusConfirmed,
		Version:    4,
		UpdatedAt:  updatedAt,
	}

	values := bookingRowValues(booking, models.RoleCustomer)

	expected := []interface{}{
		int64(123),
		int64(456),
		int64(789),
		"Blue Note Catering",
		"2026-10-01",
		"booking_confirmed",
		"customer",
		int64(4),
		"2026-08-21 11:00:00",
	}

	if len(values) != len(expected) {
		t.Fatalf("expected %d values, got %d", len(expected), len(values))
	}
	for i := range expected {
		if values[i] != expected[i] {
			t.Errorf("value %d: expected %v, got %v", i, expected[i], values[i])
		}
	}
}

func TestGetServiceAccountEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, []byte(`{"client_email":"svc@project.iam.gserviceaccount.com"}`), 0o600); err != nil {
		t.Fatalf("write creds: %v", err)
	}

	s := &SheetsService{}
	email, err := s.GetServiceAccountEmail(path)
	if err != nil {
		t.Fatalf("get email: %v", err)
	}
	if email != "svc@project.iam.gserviceaccount.com" {
		t.Errorf("unexpected email: %s", email)
	}

	if _, err := s.GetServiceAccountEmail(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("expected error for missing file")
	}
}
