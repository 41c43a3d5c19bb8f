package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"eventbook/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

type DB struct {
	*sql.DB
	mu           sync.RWMutex
	vendorsCache map[int64]*models.Vendor
	logger       *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers anyway, and a single pooled connection keeps
	// :memory: databases coherent across goroutines.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, vendorsCache: make(map[int64]*models.Vendor), logger: logger}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            customer_id INTEGER NOT NULL,
            vendor_id INTEGER NOT NULL,
            vendor_name TEXT NOT NULL,
            event_date DATETIME NOT NULL,
            details TEXT,
            status TEXT NOT NULL DEFAULT 'pending_vendor_response',
            admin_note TEXT,
            otp_code TEXT,
            otp_expires_at DATETIME,
            otp_attempts INTEGER NOT NULL DEFAULT 0,
            version INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS booking_history (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL,
            status TEXT NOT NULL,
            actor_id INTEGER NOT NULL,
            actor_role TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS notification_outbox (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            booking_id INTEGER NOT NULL,
            payload TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_vendor_id ON bookings(vendor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_customer_id ON bookings(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_event_date ON bookings(event_date)`,
		`CREATE INDEX IF NOT EXISTS idx_history_booking_id ON booking_history(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_status ON notification_outbox(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SetVendors replaces the in-memory vendor cache. Vendors come from the
// config seed file, not from user input.
func (db *DB) SetVendors(vendors []*models.Vendor) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.vendorsCache = make(map[int64]*models.Vendor, len(vendors))
	for _, v := range vendors {
		db.vendorsCache[v.ID] = v
	}
}

func (db *DB) GetVendorByID(ctx context.Context, id int64) (*models.Vendor, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	v, ok := db.vendorsCache[id]
	if !ok {
		return nil, fmt.Errorf("vendor not found: %d", id)
	}
	return v, nil
}
