package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"eventbook/internal/models"
)

// SheetsService mirrors booking status changes into a spreadsheet. The
// sheet is an append-only log, one row per transition.
type SheetsService struct {
	service       *sheets.Service
	spreadsheetID string
}

func NewSheetsService(credentialsFile, spreadsheetID string) (*SheetsService, error) {
	ctx := context.Background()

	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %v", err)
	}

	return &SheetsService{service: srv, spreadsheetID: spreadsheetID}, nil
}

// TestConnection reads the header cell to verify access to the sheet.
func (s *SheetsService) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, "Bookings!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %v", err)
	}
	return nil
}

// GetServiceAccountEmail returns the service account email from the
// credentials file, useful for telling admins whom to share the sheet with.
func (s *SheetsService) GetServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}

func bookingRowValues(booking *models.Booking, actorRole models.Role) []interface{} {
	return []interface{}{
		booking.ID,
		booking.CustomerID,
		booking.VendorID,
		booking.VendorName,
		booking.EventDate.Format("2006-01-02"),
		string(booking.Status),
		string(actorRole),
		booking.Version,
		booking.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}

// AppendBookingRow appends one status row for the booking.
func (s *SheetsService) AppendBookingRow(booking *models.Booking, actorRole models.Role) error {
	valueRange := &sheets.ValueRange{Values: [][]interface{}{bookingRowValues(booking, actorRole)}}
	_, err := s.service.Spreadsheets.Values.Append(s.spreadsheetID, "Bookings!A:A", valueRange).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Do()
	if err != nil {
		return fmt.Errorf("append booking row %d: %w", booking.ID, err)
	}
	return nil
}
