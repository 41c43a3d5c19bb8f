package config

import (
	"os"
	"path/filepath"
	"testing"

	"eventbook/internal/models"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
database:
  path: "test.db"
booking:
  otp_ttl_minutes: 15
admins:
  - 100
vendors:
  - id: 1
    name: "Grand Hall"
    service: "venue"
    is_active: true
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Database.Path != "test.db" {
		t.Errorf("expected database path test.db, got %s", cfg.Database.Path)
	}
	if cfg.Booking.OtpTTLMinutes != 15 {
		t.Errorf("expected otp ttl 15, got %d", cfg.Booking.OtpTTLMinutes)
	}
	if len(cfg.Vendors) != 1 || cfg.Vendors[0].ID != 1 {
		t.Errorf("expected 1 vendor with ID 1")
	}
	if len(cfg.Admins) != 1 || cfg.Admins[0] != 100 {
		t.Errorf("expected admin 100")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Booking:  BookingConfig{ConfirmedCancelPolicy: models.CancelPolicyDeny},
				Vendors:  []models.Vendor{{ID: 1, Name: "Vendor 1"}},
			},
			wantErr: false,
		},
		{
			name: "missing database path",
			cfg: Config{
				Booking: BookingConfig{ConfirmedCancelPolicy: models.CancelPolicyDeny},
			},
			wantErr: true,
		},
		{
			name: "unknown cancel policy",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Booking:  BookingConfig{ConfirmedCancelPolicy: "maybe"},
			},
			wantErr: true,
		},
		{
			name: "telegram enabled without token",
			cfg: Config{
				Database:      DatabaseConfig{Path: "path"},
				Booking:       BookingConfig{ConfirmedCancelPolicy: models.CancelPolicyAdminOnly},
				Notifications: NotificationsConfig{Telegram: TelegramConfig{Enabled: true}},
			},
			wantErr: true,
		},
		{
			name: "duplicate vendor id",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				Booking:  BookingConfig{ConfirmedCancelPolicy: models.CancelPolicyDeny},
				Vendors: []models.Vendor{
					{ID: 1, Name: "Vendor 1"},
					{ID: 1, Name: "Vendor 2"},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default HTTP port 8080, got %d", cfg.API.HTTP.Port)
	}
	if cfg.Booking.OtpTTLMinutes != models.DefaultOtpTTLMinutes {
		t.Errorf("expected default otp ttl %d, got %d", models.DefaultOtpTTLMinutes, cfg.Booking.OtpTTLMinutes)
	}
	if cfg.Booking.OtpMaxAttempts != models.DefaultOtpMaxAttempts {
		t.Errorf("expected default otp attempts %d, got %d", models.DefaultOtpMaxAttempts, cfg.Booking.OtpMaxAttempts)
	}
	if cfg.Booking.ReviewWindowDays != models.DefaultReviewWindowDays {
		t.Errorf("expected default review window %d, got %d", models.DefaultReviewWindowDays, cfg.Booking.ReviewWindowDays)
	}
	if cfg.Booking.ConfirmedCancelPolicy != models.CancelPolicyDeny {
		t.Errorf("expected default cancel policy deny, got %s", cfg.Booking.ConfirmedCancelPolicy)
	}
	if cfg.API.Auth.HeaderAPIKey != "x-api-key" {
		t.Errorf("expected default api key header, got %s", cfg.API.Auth.HeaderAPIKey)
	}
}

func TestValidateVendors(t *testing.T) {
	tests := []struct {
		name    string
		vendors []models.Vendor
		wantErr bool
	}{
		{
			name: "valid vendors",
			vendors: []models.Vendor{
				{ID: 1, Name: "Vendor 1"},
				{ID: 2, Name: "Vendor 2"},
			},
			wantErr: false,
		},
		{
			name: "duplicate ID",
			vendors: []models.Vendor{
				{ID: 1, Name: "Vendor 1"},
				{ID: 1, Name: "Vendor 2"},
			},
			wantErr: true,
		},
		{
			name: "ID 0",
			vendors: []models.Vendor{
				{ID: 0, Name: "Vendor 1"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVendors(tt.vendors)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVendors() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
