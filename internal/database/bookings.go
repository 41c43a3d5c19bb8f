package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"eventbook/internal/domain"
	"eventbook/internal/lifecycle"
	"eventbook/internal/models"
)

const bookingColumns = `id, customer_id, vendor_id, vendor_name, event_date, details,
                 status, admin_note, otp_code, otp_expires_at, otp_attempts,
                 version, created_at, updated_at`

// CreateBooking inserts the booking and its first history entry in one
// transaction, so a booking row never exists without an audit trail.
func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking, entry *models.HistoryEntry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (
			customer_id, vendor_id, vendor_name, event_date, details,
			status, admin_note, otp_code, otp_expires_at, otp_attempts,
			version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.CustomerID,
		booking.VendorID,
		booking.VendorName,
		booking.EventDate,
		booking.Details,
		booking.Status,
		booking.AdminNote,
		booking.OtpCode,
		booking.OtpExpiresAt,
		booking.OtpAttempts,
		1,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	if entry != nil {
		entry.BookingID = id
		entry.CreatedAt = now
		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var b models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	err := db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.CustomerID, &b.VendorID, &b.VendorName, &b.EventDate, &b.Details,
		&b.Status, &b.AdminNote, &b.OtpCode, &b.OtpExpiresAt, &b.OtpAttempts,
		&b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lifecycle.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	b.History, err = db.GetBookingHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (db *DB) ListBookings(ctx context.Context, filter domain.BookingFilter) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings`
	var conds []string
	var args []interface{}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.VendorID != 0 {
		conds = append(conds, "vendor_id = ?")
		args = append(args, filter.VendorID)
	}
	if filter.CustomerID != 0 {
		conds = append(conds, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	bookings, err := scanBookings(rows)
	if err != nil {
		return nil, err
	}

	if filter.WithHistory {
		for _, b := range bookings {
			b.History, err = db.GetBookingHistory(ctx, b.ID)
			if err != nil {
				return nil, err
			}
		}
	}
	return bookings, nil
}

func (db *DB) ListBookingsByStatus(ctx context.Context, status models.Status) ([]*models.Booking, error) {
	return db.ListBookings(ctx, domain.BookingFilter{Status: status})
}

// UpdateBookingWithVersion applies the mutated booking fields with a
// compare-and-swap on the version column. Zero rows affected means another
// writer got there first.
func (db *DB) UpdateBookingWithVersion(ctx context.Context, booking *models.Booking, fromVersion int64, entry *models.HistoryEntry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, admin_note = ?, otp_code = ?,
			otp_expires_at = ?, otp_attempts = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		booking.Status,
		booking.AdminNote,
		booking.OtpCode,
		booking.OtpExpiresAt,
		booking.OtpAttempts,
		now,
		booking.ID,
		fromVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if scanErr := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings WHERE id = ?`, booking.ID).Scan(&exists); scanErr == nil && exists == 0 {
			return lifecycle.ErrNotFound
		}
		return lifecycle.ErrVersionConflict
	}

	if entry != nil {
		entry.BookingID = booking.ID
		entry.CreatedAt = now
		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking update: %w", err)
	}

	booking.Version = fromVersion + 1
	booking.UpdatedAt = now
	if entry != nil {
		booking.History = append(booking.History, *entry)
	}
	return nil
}

func (db *DB) GetBookingHistory(ctx context.Context, bookingID int64) ([]models.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, booking_id, status, actor_id, actor_role, created_at
		 FROM booking_history WHERE booking_id = ? ORDER BY id ASC`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking history: %w", err)
	}
	defer rows.Close()

	var history []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.BookingID, &e.Status, &e.ActorID, &e.ActorRole, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		history = append(history, e)
	}
	return history, rows.Err()
}

func insertHistory(ctx context.Context, tx *sql.Tx, entry *models.HistoryEntry) error {
	result, err := tx.ExecContext(ctx,
		`INSERT INTO booking_history (booking_id, status, actor_id, actor_role, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.BookingID, entry.Status, entry.ActorID, entry.ActorRole, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get history insert id: %w", err)
	}
	entry.ID = id
	return nil
}

func scanBookings(rows *sql.Rows) ([]*models.Booking, error) {
	var bookings []*models.Booking
	for rows.Next() {
		b := &models.Booking{}
		err := rows.Scan(
			&b.ID, &b.CustomerID, &b.VendorID, &b.VendorName, &b.EventDate, &b.Details,
			&b.Status, &b.AdminNote, &b.OtpCode, &b.OtpExpiresAt, &b.OtpAttempts,
			&b.Version, &b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
